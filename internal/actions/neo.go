package actions

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/params"

	"NeoX-Agent/internal/explorer"
	"NeoX-Agent/pkg/logger"
)

const (
	// PluginName 是浏览器查询插件的注册名。
	PluginName = "neox-query"

	ActionGetBalance      = "GET_NEO_BALANCE"
	ActionGetBlock        = "GET_NEO_BLOCK"
	ActionGetTransactions = "GET_NEO_TRANSACTIONS"
	ActionGetNetworkStats = "GET_NETWORK_STATS"

	optionAddress = "address"
	optionTxHash  = "txHash"
	optionNetwork = "network"
)

var (
	addressPattern = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)
	txHashPattern  = regexp.MustCompile(`0x[a-fA-F0-9]{64}`)
)

// NetworkResolver 按名称解析浏览器网络。
type NetworkResolver interface {
	Network(name string) (*explorer.Network, error)
}

type neoQuery struct {
	networks NetworkResolver
}

// NewNeoPlugin 基于 networks 构建浏览器查询插件。
func NewNeoPlugin(networks NetworkResolver) *Plugin {
	q := &neoQuery{networks: networks}
	return &Plugin{
		Name:        PluginName,
		Description: "Plugin for querying Neo network data",
		Actions: []*Action{
			{
				Name:        ActionGetBalance,
				Similes:     []string{"CHECK_NEO_BALANCE", "FETCH_NEO_BALANCE"},
				Description: "Get the balance of a Neo network address",
				Examples: [][]Example{{
					{User: "{{user1}}", Content: Content{Text: "What's the balance of 0x742d35Cc6634C0532925a3b844Bc454e4438f44e?"}},
					{User: "{{agentName}}", Content: Content{Text: "Let me check the balance for that address.", Action: ActionGetBalance}},
				}},
				Validate: alwaysValid,
				Handler:  q.getBalance,
			},
			{
				Name:        ActionGetBlock,
				Similes:     []string{"CHECK_NEO_BLOCK", "FETCH_NEO_BLOCK"},
				Description: "Get the latest block information from Neo network",
				Examples: [][]Example{{
					{User: "{{user1}}", Content: Content{Text: "What's the latest block on Neo?"}},
					{User: "{{agentName}}", Content: Content{Text: "I'll check the latest block information.", Action: ActionGetBlock}},
				}},
				Validate: alwaysValid,
				Handler:  q.getLatestBlock,
			},
			{
				Name:        ActionGetTransactions,
				Similes:     []string{"CHECK_NEO_TRANSACTIONS", "FETCH_NEO_TRANSACTIONS"},
				Description: "Get transaction details by hash",
				Examples: [][]Example{{
					{User: "{{user1}}", Content: Content{Text: "Show me transaction 0xc06ec58ee194c4ea625846632808a84ca033f9a1fc1edcf09686cd124b95f05f"}},
					{User: "{{agentName}}", Content: Content{Text: "Let me fetch that transaction details for you.", Action: ActionGetTransactions}},
				}},
				Validate: alwaysValid,
				Handler:  q.getTransaction,
			},
			{
				Name:        ActionGetNetworkStats,
				Similes:     []string{"CHECK_NETWORK_STATS", "FETCH_NETWORK_STATS"},
				Description: "Get Neo network statistics including total addresses, transactions, and average block time",
				Examples: [][]Example{{
					{User: "{{user1}}", Content: Content{Text: "What are the current network statistics?"}},
					{User: "{{agentName}}", Content: Content{Text: "I'll check the current network statistics for you.", Action: ActionGetNetworkStats}},
				}},
				Validate: alwaysValid,
				Handler:  q.getNetworkStats,
			},
		},
	}
}

func alwaysValid(context.Context, Message) bool { return true }

// validAddress 要求带 0x 前缀的 20 字节十六进制地址。
func validAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// validTxHash 要求带 0x 前缀的 32 字节十六进制哈希。
func validTxHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}

func (q *neoQuery) getBalance(ctx context.Context, msg Message, opts Options, cb Callback) {
	if cb == nil {
		return
	}
	log := logger.Named("actions")

	address := addressPattern.FindString(msg.Content.Text)
	if address == "" {
		address = strings.TrimSpace(opts.String(optionAddress))
	}
	if !validAddress(address) {
		cb(Content{Text: "Please provide a valid 0x address"})
		return
	}

	network, err := q.networks.Network(opts.String(optionNetwork))
	if err != nil {
		cb(Content{Text: "Failed to fetch balance: " + errorText(err)})
		return
	}
	info, err := network.Client.GetAddress(ctx, address)
	if err != nil {
		log.Error("查询余额失败", "address", address, "error", err)
		cb(Content{Text: "Failed to fetch balance: " + errorText(err)})
		return
	}
	if info == nil {
		cb(Content{Text: "Failed to fetch balance"})
		return
	}

	balance := formatUnits(info.CoinBalance, network.Decimals, 5)
	log.Info("查询余额", "address", common.HexToAddress(address).Hex(), "balance", balance, "network", network.Name)
	cb(Content{Text: fmt.Sprintf("The balance for %s is %s %s", address, balance, network.Symbol)})
}

func (q *neoQuery) getLatestBlock(ctx context.Context, _ Message, opts Options, cb Callback) {
	if cb == nil {
		return
	}

	network, err := q.networks.Network(opts.String(optionNetwork))
	if err != nil {
		cb(Content{Text: "Failed to fetch latest block: " + errorText(err)})
		return
	}
	page, err := network.Client.GetBlocks(ctx)
	if err != nil {
		logger.Named("actions").Error("查询最新区块失败", "error", err)
		cb(Content{Text: "Failed to fetch latest block: " + errorText(err)})
		return
	}
	if page == nil || (page.Status != nil && *page.Status != "success") || len(page.Items) == 0 {
		text := "Failed to fetch latest block"
		if page != nil && page.Message != "" {
			text = page.Message
		}
		cb(Content{Text: text})
		return
	}

	block := page.Items[0]
	cb(Content{Text: fmt.Sprintf("Latest block:\nNumber: %s\nTimestamp: %s\nHash: %s",
		orNA(block.Height), orNA(block.Timestamp), orNA(block.Hash))})
}

func (q *neoQuery) getTransaction(ctx context.Context, msg Message, opts Options, cb Callback) {
	if cb == nil {
		return
	}

	txHash := txHashPattern.FindString(msg.Content.Text)
	if txHash == "" {
		txHash = strings.TrimSpace(opts.String(optionTxHash))
	}
	if !validTxHash(txHash) {
		cb(Content{Text: "Please provide a valid transaction hash"})
		return
	}

	network, err := q.networks.Network(opts.String(optionNetwork))
	if err != nil {
		cb(Content{Text: "Failed to fetch transaction: " + errorText(err)})
		return
	}
	logger.Named("actions").Info("查询交易", "tx_hash", txHash, "network", network.Name)
	tx, err := network.Client.GetTransaction(ctx, txHash)
	if err != nil {
		logger.Named("actions").Error("查询交易失败", "tx_hash", txHash, "error", err)
		cb(Content{Text: "Failed to fetch transaction: " + errorText(err)})
		return
	}
	if tx == nil {
		cb(Content{Text: "Failed to fetch transaction details"})
		return
	}

	cb(Content{Text: formatTransaction(tx, network.Symbol)})
}

func formatTransaction(tx *explorer.Transaction, symbol string) string {
	var b strings.Builder
	b.WriteString("Transaction Details:\n")
	fmt.Fprintf(&b, "Hash: %s\n", tx.Hash)
	fmt.Fprintf(&b, "Status: %s\n", tx.Status)
	fmt.Fprintf(&b, "Block: %s\n", tx.Block)
	fmt.Fprintf(&b, "Timestamp: %s\n", tx.Timestamp)
	fmt.Fprintf(&b, "From: %s\n", tx.From.Hash)
	switch {
	case tx.To == nil:
		b.WriteString("To: N/A (contract creation)\n")
	case tx.To.Name != "":
		fmt.Fprintf(&b, "To: %s (%s)\n", tx.To.Hash, tx.To.Name)
	default:
		fmt.Fprintf(&b, "To: %s\n", tx.To.Hash)
	}

	if len(tx.TokenTransfers) > 0 {
		transfer := tx.TokenTransfers[0]
		amount := transfer.Total.Value.Float() / math.Pow(10, transfer.Total.Decimals.Float())
		fmt.Fprintf(&b, "Token Transfer: %s %s\n", formatNumber(amount), transfer.Token.Symbol)
		fmt.Fprintf(&b, "Token Contract: %s (%s)\n", transfer.Token.Name, transfer.Token.Symbol)
	} else {
		fmt.Fprintf(&b, "Value: %s %s\n", formatNumber(tx.Value.Float()/params.Ether), symbol)
	}

	fmt.Fprintf(&b, "Gas Used: %s\n", tx.GasUsed)
	fmt.Fprintf(&b, "Gas Price: %s Gwei", formatNumber(tx.GasPrice.Float()/params.GWei))
	return b.String()
}

func (q *neoQuery) getNetworkStats(ctx context.Context, _ Message, opts Options, cb Callback) {
	if cb == nil {
		return
	}

	network, err := q.networks.Network(opts.String(optionNetwork))
	if err != nil {
		cb(Content{Text: "Failed to fetch network statistics: " + errorText(err)})
		return
	}
	stats, err := network.Client.GetStats(ctx)
	if err != nil {
		logger.Named("actions").Error("查询网络统计失败", "error", err)
		cb(Content{Text: "Failed to fetch network statistics: " + errorText(err)})
		return
	}
	if stats == nil {
		cb(Content{Text: "Failed to fetch network statistics"})
		return
	}

	cb(Content{Text: formatStats(stats)})
}

func formatStats(stats *explorer.Stats) string {
	blockTime := strconv.FormatFloat(stats.AverageBlockTime.Float()/1000, 'f', 2, 64)
	return strings.Join([]string{
		"📊 Network Statistics:",
		"",
		"📈 Activity:",
		"• Total Addresses: " + formatGrouped(stats.TotalAddresses.Float()),
		"• Total Transactions: " + formatGrouped(stats.TotalTransactions.Float()),
		"• Network Utilization: " + stats.NetworkUtilizationPercent.String() + "%",
		"",
		"⚡ Performance:",
		"• Average Block Time: " + blockTime + " seconds",
		"",
		"⛽ Gas Prices (Gwei):",
		"• Slow: " + stats.GasPrices.Slow.String(),
		"• Average: " + stats.GasPrices.Average.String(),
		"• Fast: " + stats.GasPrices.Fast.String(),
		"",
		"💰 Token:",
		"• Price Change (24h): " + stats.CoinPriceChangePercentage.String() + "%",
	}, "\n")
}

func orNA(s explorer.Scalar) string {
	if !s.Present() {
		return "N/A"
	}
	return s.String()
}
