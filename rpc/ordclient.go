package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"rune-indexer/core"
	"rune-indexer/pkg/utils"
)

// OrdClient queries an ordinals/inscriptions detail service for output-level
// inscription data, implementing core.InscriptionsSource.
type OrdClient struct {
	baseURL string
	client  *http.Client
}

// NewOrdClient builds an OrdClient against baseURL (scheme://host:port).
func NewOrdClient(baseURL string) *OrdClient {
	return &OrdClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 0},
	}
}

// GetOutputs posts a batch of "txid:vout" outpoint strings and returns the
// service's per-outpoint detail rows.
func (c *OrdClient) GetOutputs(ctx context.Context, outpoints []string) ([]core.OrdOutput, error) {
	body, err := json.Marshal(outpoints)
	if err != nil {
		return nil, utils.Wrap(err, "marshal outpoints")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/outputs", bytes.NewReader(body))
	if err != nil {
		return nil, utils.Wrap(err, "build outputs request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, utils.Wrap(err, "query inscriptions service")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inscriptions service: unexpected status %d", resp.StatusCode)
	}

	var out []core.OrdOutput
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, utils.Wrap(err, "decode outputs response")
	}
	return out, nil
}
