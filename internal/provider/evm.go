package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
)

// EVMProvider ERC20数据源, 基于Etherscan账户接口
// tokentx接口自带confirmations字段, 可直接用于确认门槛判断
type EVMProvider struct {
	client   *Client
	apiKey   string
	contract string
}

// NewEVMProvider 创建ERC20数据源
func NewEVMProvider(endpoint, apiKey, usdtContract string) *EVMProvider {
	return &EVMProvider{
		client:   NewClient(endpoint, nil),
		apiKey:   apiKey,
		contract: usdtContract,
	}
}

func (p *EVMProvider) Supports(network string) bool {
	return strings.EqualFold(network, "erc20")
}

// FetchIncoming 拉取转入指定地址的USDT转账
func (p *EVMProvider) FetchIncoming(ctx context.Context, address string, sinceMillis int64) []ChainTx {
	startBlock := int64(0)
	if sinceMillis > 0 {
		// Etherscan按区块过滤, 先把时间戳换算成区块高度
		block, err := p.blockByTime(ctx, sinceMillis/1000)
		if err != nil {
			log.Printf("[erc20] Failed to resolve start block for %s: %v", address, err)
		} else {
			startBlock = block
		}
	}

	path := fmt.Sprintf("/api?module=account&action=tokentx&contractaddress=%s&address=%s&startblock=%d&sort=desc&apikey=%s",
		p.contract, address, startBlock, p.apiKey)

	body, err := p.client.Get(ctx, path)
	if err != nil {
		log.Printf("[erc20] Failed to fetch transactions for %s: %v", address, err)
		return nil
	}

	var result struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Result  []struct {
			Hash          string `json:"hash"`
			From          string `json:"from"`
			To            string `json:"to"`
			Value         string `json:"value"`
			TimeStamp     string `json:"timeStamp"`
			TokenDecimal  string `json:"tokenDecimal"`
			Confirmations string `json:"confirmations"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		log.Printf("[erc20] Failed to unmarshal response for %s: %v", address, err)
		return nil
	}
	// status=0且message为No transactions found属于正常空结果
	if result.Status != "1" && !strings.Contains(result.Message, "No transactions") {
		log.Printf("[erc20] Etherscan error for %s: %s", address, result.Message)
		return nil
	}

	var txs []ChainTx
	for _, tx := range result.Result {
		if !strings.EqualFold(tx.To, address) {
			continue
		}

		decimals, err := strconv.Atoi(tx.TokenDecimal)
		if err != nil || decimals == 0 {
			decimals = 6 // USDT ERC20 精度是6位
		}
		timestamp, _ := strconv.ParseInt(tx.TimeStamp, 10, 64)
		confirmations, _ := strconv.Atoi(tx.Confirmations)

		txs = append(txs, ChainTx{
			TxHash:        tx.Hash,
			FromAddress:   tx.From,
			ToAddress:     tx.To,
			Amount:        parseTokenAmount(tx.Value, decimals),
			Timestamp:     timestamp * 1000,
			Confirmations: confirmations,
		})
	}

	return txs
}

// Confirmations 通过proxy接口计算确认深度
func (p *EVMProvider) Confirmations(ctx context.Context, txHash string) (int, error) {
	body, err := p.client.Get(ctx, fmt.Sprintf("/api?module=proxy&action=eth_getTransactionReceipt&txhash=%s&apikey=%s",
		txHash, p.apiKey))
	if err != nil {
		return 0, fmt.Errorf("failed to get transaction receipt: %w", err)
	}

	var receipt struct {
		Result *struct {
			BlockNumber string `json:"blockNumber"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &receipt); err != nil {
		return 0, fmt.Errorf("failed to unmarshal receipt: %w", err)
	}
	if receipt.Result == nil || receipt.Result.BlockNumber == "" {
		// 尚未打包
		return 0, nil
	}

	txBlock, err := parseHexInt(receipt.Result.BlockNumber)
	if err != nil {
		return 0, fmt.Errorf("invalid block number %s: %w", receipt.Result.BlockNumber, err)
	}

	body, err = p.client.Get(ctx, fmt.Sprintf("/api?module=proxy&action=eth_blockNumber&apikey=%s", p.apiKey))
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}

	var latest struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &latest); err != nil {
		return 0, fmt.Errorf("failed to unmarshal latest block: %w", err)
	}

	latestBlock, err := parseHexInt(latest.Result)
	if err != nil {
		return 0, fmt.Errorf("invalid latest block %s: %w", latest.Result, err)
	}

	confirmations := latestBlock - txBlock + 1
	if confirmations < 0 {
		confirmations = 0
	}
	return int(confirmations), nil
}

// blockByTime 用getblocknobytime把unix秒换算成区块高度
func (p *EVMProvider) blockByTime(ctx context.Context, unixSeconds int64) (int64, error) {
	body, err := p.client.Get(ctx, fmt.Sprintf("/api?module=block&action=getblocknobytime&timestamp=%d&closest=before&apikey=%s",
		unixSeconds, p.apiKey))
	if err != nil {
		return 0, err
	}

	var result struct {
		Status string `json:"status"`
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, err
	}
	if result.Status != "1" {
		return 0, fmt.Errorf("etherscan error: %s", result.Result)
	}
	return strconv.ParseInt(result.Result, 10, 64)
}

func parseHexInt(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimPrefix(s, "0x"), 16, 64)
}
