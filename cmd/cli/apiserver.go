package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rune-indexer/pkg/config"
	"rune-indexer/walletserver/controllers"
	"rune-indexer/walletserver/routes"
	"rune-indexer/walletserver/services"
)

var apiserverEnv string

func apiserverRun(cmd *cobra.Command, _ []string) error {
	logger := logrus.StandardLogger()

	cfg, err := config.Load(apiserverEnv)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, err := services.NewService(ctx, *cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctrl := controllers.NewWalletController(svc)

	r := mux.NewRouter()
	routes.Register(r, ctrl, svc.APIKeys)

	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("graceful shutdown")
		}
	}()

	logger.Infof("apiserver listening on %s", cfg.API.ListenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var apiserverCmd = &cobra.Command{
	Use:   "apiserver",
	Short: "Run the read-path HTTP API",
	RunE:  apiserverRun,
}

func init() {
	apiserverCmd.Flags().StringVar(&apiserverEnv, "env", "", "config overlay name (merged on top of the default config)")
}

// ApiServerCmd is the exported apiserver command.
var ApiServerCmd = apiserverCmd

// RegisterApiServer attaches ApiServerCmd to root.
func RegisterApiServer(root *cobra.Command) { root.AddCommand(ApiServerCmd) }
