package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ethUSDT = "0xdAC17F958D2ee523a2206206994597C13D831ec7"

func TestEVMFetchIncoming(t *testing.T) {
	address := "0x1111111111111111111111111111111111111111"

	var tokentxQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "getblocknobytime":
			assert.Equal(t, "before", r.URL.Query().Get("closest"))
			fmt.Fprint(w, `{"status": "1", "message": "OK", "result": "18500000"}`)
		case "tokentx":
			tokentxQuery = r.URL.RawQuery
			fmt.Fprintf(w, `{
				"status": "1",
				"message": "OK",
				"result": [
					{
						"hash": "0xin",
						"from": "0xpayer",
						"to": %q,
						"value": "200550000",
						"timeStamp": "1756700000",
						"tokenDecimal": "6",
						"confirmations": "12"
					},
					{
						"hash": "0xout",
						"from": %q,
						"to": "0xelsewhere",
						"value": "1000000",
						"timeStamp": "1756700100",
						"tokenDecimal": "6",
						"confirmations": "3"
					}
				]
			}`, address, address)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p := NewEVMProvider(server.URL, "etherscan-key", ethUSDT)
	assert.True(t, p.Supports("erc20"))
	assert.False(t, p.Supports("trc20"))

	txs := p.FetchIncoming(context.Background(), address, 1756699000000)

	assert.Contains(t, tokentxQuery, "module=account")
	assert.Contains(t, tokentxQuery, "contractaddress="+ethUSDT)
	assert.Contains(t, tokentxQuery, "startblock=18500000")
	assert.Contains(t, tokentxQuery, "apikey=etherscan-key")

	// 转出交易被过滤
	require.Len(t, txs, 1)
	assert.Equal(t, "0xin", txs[0].TxHash)
	assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("200.55")), "got %s", txs[0].Amount)
	assert.Equal(t, int64(1756700000000), txs[0].Timestamp, "seconds converted to millis")
	assert.Equal(t, 12, txs[0].Confirmations, "feed confirmations carried through")
}

func TestEVMFetchIncomingEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Etherscan对空结果返回status=0
		fmt.Fprint(w, `{"status": "0", "message": "No transactions found", "result": []}`)
	}))
	defer server.Close()

	p := NewEVMProvider(server.URL, "", ethUSDT)
	assert.Empty(t, p.FetchIncoming(context.Background(), "0xaddr", 0))
}

func TestEVMConfirmations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "eth_getTransactionReceipt":
			fmt.Fprint(w, `{"result": {"blockNumber": "0x11a45f0"}}`)
		case "eth_blockNumber":
			fmt.Fprint(w, `{"result": "0x11a45fb"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p := NewEVMProvider(server.URL, "", ethUSDT)
	confirmations, err := p.Confirmations(context.Background(), "0xin")
	require.NoError(t, err)
	assert.Equal(t, 12, confirmations)
}

func TestEVMConfirmationsPendingTx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 未打包交易的receipt为null
		fmt.Fprint(w, `{"result": null}`)
	}))
	defer server.Close()

	p := NewEVMProvider(server.URL, "", ethUSDT)
	confirmations, err := p.Confirmations(context.Background(), "0xpending")
	require.NoError(t, err)
	assert.Zero(t, confirmations)
}

func TestParseTokenAmount(t *testing.T) {
	assert.True(t, parseTokenAmount("100370000", 6).Equal(decimal.RequireFromString("100.37")))
	assert.True(t, parseTokenAmount("1", 6).Equal(decimal.RequireFromString("0.000001")))
	assert.True(t, parseTokenAmount("garbage", 6).IsZero())
}
