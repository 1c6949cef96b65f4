// Command walletserver runs the read-path HTTP API: balances,
// UTXO listing and reservation, rune lookups, fee estimation, and the raw
// transaction passthroughs, all served from a single mux.Router per network.
package main

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

	"rune-indexer/pkg/config"
	"rune-indexer/walletserver/controllers"
	"rune-indexer/walletserver/routes"
	"rune-indexer/walletserver/services"
)

func main() {
	logger := logrus.StandardLogger()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, err := services.NewService(ctx, *cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("initialize wallet service")
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

	logger.Infof("wallet server listening on %s", cfg.API.ListenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("wallet server stopped")
	}
}
