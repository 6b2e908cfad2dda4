package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// TronProvider TRC20数据源, 基于TronGrid API
// USDT转账记录来自 /v1/accounts/{addr}/transactions/trc20,
// 该接口不携带确认深度, 需要按区块高度差单独计算
type TronProvider struct {
	client   *Client
	contract string
}

// NewTronProvider 创建TRC20数据源
func NewTronProvider(endpoint, apiKey, usdtContract string) *TronProvider {
	return &TronProvider{
		client: NewClient(endpoint, map[string]string{
			"TRON-PRO-API-KEY": apiKey,
		}),
		contract: usdtContract,
	}
}

func (p *TronProvider) Supports(network string) bool {
	return strings.EqualFold(network, "trc20")
}

// FetchIncoming 拉取转入指定地址的USDT转账
func (p *TronProvider) FetchIncoming(ctx context.Context, address string, sinceMillis int64) []ChainTx {
	path := fmt.Sprintf("/v1/accounts/%s/transactions/trc20?only_confirmed=true&limit=50&contract_address=%s",
		address, p.contract)
	if sinceMillis > 0 {
		path += fmt.Sprintf("&min_timestamp=%d", sinceMillis)
	}

	body, err := p.client.Get(ctx, path)
	if err != nil {
		log.Printf("[trc20] Failed to fetch transactions for %s: %v", address, err)
		return nil
	}

	var result struct {
		Data []struct {
			TransactionID  string `json:"transaction_id"`
			From           string `json:"from"`
			To             string `json:"to"`
			Value          string `json:"value"`
			BlockTimestamp int64  `json:"block_timestamp"`
			TokenInfo      struct {
				Symbol   string `json:"symbol"`
				Decimals int    `json:"decimals"`
			} `json:"token_info"`
		} `json:"data"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		log.Printf("[trc20] Failed to unmarshal response for %s: %v", address, err)
		return nil
	}

	var txs []ChainTx
	for _, tx := range result.Data {
		// 只保留转入交易
		if !strings.EqualFold(tx.To, address) {
			continue
		}

		decimals := tx.TokenInfo.Decimals
		if decimals == 0 {
			decimals = 6 // USDT TRC20 精度是6位
		}

		txs = append(txs, ChainTx{
			TxHash:      tx.TransactionID,
			FromAddress: tx.From,
			ToAddress:   tx.To,
			Amount:      parseTokenAmount(tx.Value, decimals),
			Timestamp:   tx.BlockTimestamp,
		})
	}

	return txs
}

// Confirmations 确认深度 = 最新区块高度 - 交易区块高度 + 1
func (p *TronProvider) Confirmations(ctx context.Context, txHash string) (int, error) {
	body, err := p.client.PostJSON(ctx, "/walletsolidity/gettransactioninfobyid", map[string]string{
		"value": txHash,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get transaction info: %w", err)
	}

	var txInfo struct {
		BlockNumber int64 `json:"blockNumber"`
	}
	if err := json.Unmarshal(body, &txInfo); err != nil {
		return 0, fmt.Errorf("failed to unmarshal transaction info: %w", err)
	}
	if txInfo.BlockNumber == 0 {
		// 尚未打包
		return 0, nil
	}

	body, err = p.client.PostJSON(ctx, "/walletsolidity/getnowblock", map[string]string{})
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}

	var nowBlock struct {
		BlockHeader struct {
			RawData struct {
				Number int64 `json:"number"`
			} `json:"raw_data"`
		} `json:"block_header"`
	}
	if err := json.Unmarshal(body, &nowBlock); err != nil {
		return 0, fmt.Errorf("failed to unmarshal latest block: %w", err)
	}

	confirmations := nowBlock.BlockHeader.RawData.Number - txInfo.BlockNumber + 1
	if confirmations < 0 {
		confirmations = 0
	}
	return int(confirmations), nil
}
