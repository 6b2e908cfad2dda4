package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tronUSDT = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"

func TestTronFetchIncoming(t *testing.T) {
	address := "TReceiver111111111111111111111111"

	var gotPath string
	var gotAPIKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		gotAPIKey = r.Header.Get("TRON-PRO-API-KEY")
		fmt.Fprintf(w, `{
			"data": [
				{
					"transaction_id": "txin",
					"from": "TPayer",
					"to": %q,
					"value": "100370000",
					"block_timestamp": 1756700000000,
					"token_info": {"symbol": "USDT", "decimals": 6}
				},
				{
					"transaction_id": "txout",
					"from": %q,
					"to": "TElsewhere",
					"value": "5000000",
					"block_timestamp": 1756700001000,
					"token_info": {"symbol": "USDT", "decimals": 6}
				}
			]
		}`, address, address)
	}))
	defer server.Close()

	p := NewTronProvider(server.URL, "test-key", tronUSDT)
	assert.True(t, p.Supports("trc20"))
	assert.True(t, p.Supports("TRC20"))
	assert.False(t, p.Supports("erc20"))

	txs := p.FetchIncoming(context.Background(), address, 1756699000000)

	assert.Equal(t, "test-key", gotAPIKey)
	assert.Contains(t, gotPath, "/v1/accounts/"+address+"/transactions/trc20")
	assert.Contains(t, gotPath, "only_confirmed=true")
	assert.Contains(t, gotPath, "contract_address="+tronUSDT)
	assert.Contains(t, gotPath, "min_timestamp=1756699000000")

	// 转出交易被过滤
	require.Len(t, txs, 1)
	assert.Equal(t, "txin", txs[0].TxHash)
	assert.Equal(t, "TPayer", txs[0].FromAddress)
	assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("100.37")), "got %s", txs[0].Amount)
	assert.Equal(t, int64(1756700000000), txs[0].Timestamp)
	assert.Zero(t, txs[0].Confirmations, "feed carries no confirmation depth")
}

func TestTronFetchIncomingFailuresAreSwallowed(t *testing.T) {
	t.Run("bad status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		p := NewTronProvider(server.URL, "", tronUSDT)
		assert.Empty(t, p.FetchIncoming(context.Background(), "TAddr", 0))
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "not json")
		}))
		defer server.Close()

		p := NewTronProvider(server.URL, "", tronUSDT)
		assert.Empty(t, p.FetchIncoming(context.Background(), "TAddr", 0))
	})
}

func TestTronConfirmations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/walletsolidity/gettransactioninfobyid"):
			fmt.Fprint(w, `{"id": "txabc", "blockNumber": 65000100}`)
		case strings.HasSuffix(r.URL.Path, "/walletsolidity/getnowblock"):
			fmt.Fprint(w, `{"block_header": {"raw_data": {"number": 65000119}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p := NewTronProvider(server.URL, "", tronUSDT)
	confirmations, err := p.Confirmations(context.Background(), "txabc")
	require.NoError(t, err)
	assert.Equal(t, 20, confirmations)
}

func TestTronConfirmationsUnpacked(t *testing.T) {
	// 尚未打包的交易返回空结构
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	p := NewTronProvider(server.URL, "", tronUSDT)
	confirmations, err := p.Confirmations(context.Background(), "txpending")
	require.NoError(t, err)
	assert.Zero(t, confirmations)
}
