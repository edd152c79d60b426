package explorer

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "NeoX-Agent/internal/errors"
)

func newTestServer(t *testing.T, routes map[string]string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient(Config{APIURL: srv.URL + "/api/", HTTPClient: srv.Client()})
}

func TestClientEndpoints(t *testing.T) {
	client := newTestServer(t, map[string]string{
		"/api/v1/addresses/0xabc": `{"hash":"0xabc","coin_balance":"1500000000000000000"}`,
		"/api/v1/blocks":          `{"items":[{"height":123,"timestamp":"2024-01-01T00:00:00Z","hash":"0xblock"}]}`,
		"/api/v1/transactions/0x1": `{"hash":"0x1","status":"ok","block":77,"to":null,"value":"0",
			"token_transfers":[{"token":{"name":"Tether","symbol":"USDT","decimals":"6"},"total":{"value":"2500000","decimals":"6"}}]}`,
		"/api/v1/stats": `{"average_block_time":15000.0,"total_addresses":"12345","gas_prices":{"slow":0.10,"average":null}}`,
	})
	ctx := context.Background()
	assert.False(t, strings.HasSuffix(client.BaseURL(), "/"))

	addr, err := client.GetAddress(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", addr.CoinBalance)

	blocks, err := client.GetBlocks(ctx)
	require.NoError(t, err)
	require.Len(t, blocks.Items, 1)
	assert.Nil(t, blocks.Status)
	assert.Equal(t, "123", blocks.Items[0].Height.String())

	tx, err := client.GetTransaction(ctx, "0x1")
	require.NoError(t, err)
	assert.Nil(t, tx.To)
	assert.Equal(t, "77", tx.Block.String())
	require.Len(t, tx.TokenTransfers, 1)
	assert.Equal(t, "USDT", tx.TokenTransfers[0].Token.Symbol)

	stats, err := client.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "15000", stats.AverageBlockTime.String())
	assert.Equal(t, "0.1", stats.GasPrices.Slow.String())
	assert.Equal(t, "null", stats.GasPrices.Average.String())
	assert.Equal(t, "undefined", stats.GasPrices.Fast.String())
}

func TestClientErrors(t *testing.T) {
	client := newTestServer(t, map[string]string{"/api/v1/blocks": `not json`})
	ctx := context.Background()

	_, err := client.GetAddress(ctx, "0xmissing")
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeNotFound, xerrors.CodeOf(err))
	assert.Contains(t, err.Error(), "Request failed with status code 404")

	_, err = client.GetBlocks(ctx)
	assert.Equal(t, xerrors.CodeExplorerFailure, xerrors.CodeOf(err))
}

func TestClientEmptyBody(t *testing.T) {
	client := newTestServer(t, map[string]string{"/api/v1/stats": ``, "/api/v1/blocks": `null`})

	stats, err := client.GetStats(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stats)

	blocks, err := client.GetBlocks(context.Background())
	require.NoError(t, err)
	assert.Nil(t, blocks)
}

func TestScalarSemantics(t *testing.T) {
	var v struct {
		Num   Scalar `json:"num"`
		Str   Scalar `json:"str"`
		Null  Scalar `json:"null"`
		Empty Scalar `json:"empty"`
		Zero  Scalar `json:"zero"`
		Text  Scalar `json:"text"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"num":1.50,"str":"42","null":null,"empty":"","zero":0,"text":"abc"}`), &v))

	assert.Equal(t, 1.5, v.Num.Float())
	assert.Equal(t, 42.0, v.Str.Float())
	assert.Equal(t, 0.0, v.Null.Float())
	assert.Equal(t, 0.0, v.Empty.Float())
	var missing Scalar
	assert.True(t, math.IsNaN(missing.Float()))
	assert.True(t, math.IsNaN(v.Text.Float()))

	assert.True(t, v.Num.Present())
	assert.True(t, v.Str.Present())
	assert.False(t, v.Null.Present())
	assert.False(t, v.Empty.Present())
	assert.False(t, v.Zero.Present())
	assert.False(t, missing.Present())

	encoded, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"num":1.5,"str":"42","null":null,"empty":"","zero":0,"text":"abc"}`, string(encoded))
}
