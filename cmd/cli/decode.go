package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"rune-indexer/core"
	"rune-indexer/rpc"
)

// decodedTxView is the JSON shape printed by decode-tx: a friendlier
// projection of core.DecodedTx plus the decoded runestone, if any.
type decodedTxView struct {
	TxID      string          `json:"txid"`
	Coinbase  bool            `json:"coinbase"`
	Inputs    []decodedInput  `json:"inputs"`
	Outputs   []decodedOutput `json:"outputs"`
	Runestone *core.Runestone `json:"runestone,omitempty"`
}

type decodedInput struct {
	ParentTx   string `json:"parent_tx"`
	ParentVout uint32 `json:"parent_vout"`
}

type decodedOutput struct {
	Value   int64  `json:"value"`
	Address string `json:"address"`
	Type    string `json:"type"`
}

func decodeTxRun(cmd *cobra.Command, args []string) error {
	tx, err := rpc.DecodeRawTx(args[0])
	if err != nil {
		return err
	}

	view := decodedTxView{
		TxID:     tx.TxID.String(),
		Coinbase: tx.Coinbase,
	}
	for _, in := range tx.Inputs {
		view.Inputs = append(view.Inputs, decodedInput{ParentTx: in.ParentTxID.String(), ParentVout: in.ParentVout})
	}

	scripts := make([][]byte, len(tx.Outputs))
	params := core.NetworkParams(decodeNetwork)
	for i, out := range tx.Outputs {
		scripts[i] = out.PkScript
		resolved := core.ResolveAddress(out.PkScript, params)
		view.Outputs = append(view.Outputs, decodedOutput{Value: out.Value, Address: resolved.Address, Type: resolved.Type})
	}
	view.Runestone = core.DecipherRunestone(scripts)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

var decodeNetwork string

var decodeTxCmd = &cobra.Command{
	Use:   "decode-tx <raw-hex>",
	Short: "Decode a raw transaction's outputs and runestone (if any)",
	Args:  cobra.ExactArgs(1),
	RunE:  decodeTxRun,
}

func init() {
	decodeTxCmd.Flags().StringVar(&decodeNetwork, "network", "mainnet", "network used to classify output addresses")
}

// DecodeTxCmd is the exported command.
var DecodeTxCmd = decodeTxCmd

// RegisterDecodeTx attaches DecodeTxCmd to root.
func RegisterDecodeTx(root *cobra.Command) { root.AddCommand(DecodeTxCmd) }
