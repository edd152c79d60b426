package explorer

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Scalar 保存浏览器返回的原始标量，并按模板字符串的规则渲染：
// 字符串原样输出，数字去掉多余的零，null 输出为 "null"。
type Scalar struct {
	text  string
	isNum bool
	valid bool
}

// UnmarshalJSON 实现 json.Unmarshaler。
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = Scalar{text: "null"}
	case len(data) > 0 && data[0] == '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = Scalar{text: text, valid: true}
	default:
		text := string(data)
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			text = strconv.FormatFloat(v, 'f', -1, 64)
		}
		*s = Scalar{text: text, isNum: true, valid: true}
	}
	return nil
}

// MarshalJSON 实现 json.Marshaler。
func (s Scalar) MarshalJSON() ([]byte, error) {
	if !s.valid {
		return []byte("null"), nil
	}
	if s.isNum {
		return []byte(s.text), nil
	}
	return json.Marshal(s.text)
}

// NewScalar 以字符串构造一个标量。
func NewScalar(text string) Scalar {
	return Scalar{text: text, valid: true}
}

// String 返回渲染后的文本。缺失字段返回 "undefined"。
func (s Scalar) String() string {
	if !s.valid && s.text == "" {
		return "undefined"
	}
	return s.text
}

// Present 判断字段存在、非空且不为数字 0。
func (s Scalar) Present() bool {
	if !s.valid || s.text == "" {
		return false
	}
	return !s.isNum || s.Float() != 0
}

// Float 将标量解析为浮点数，无法解析时返回 NaN。
func (s Scalar) Float() float64 {
	if !s.valid {
		if s.text == "null" {
			return 0
		}
		return math.NaN()
	}
	if s.text == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s.text, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// AddressInfo 对应 /v1/addresses/{address} 的响应。
type AddressInfo struct {
	Hash        string `json:"hash"`
	CoinBalance string `json:"coin_balance"`
}

// Block 是区块列表中的一项。
type Block struct {
	Height    Scalar `json:"height"`
	Timestamp Scalar `json:"timestamp"`
	Hash      Scalar `json:"hash"`
}

// BlocksPage 对应 /v1/blocks 的响应。
type BlocksPage struct {
	Items   []Block `json:"items"`
	Status  *string `json:"status,omitempty"`
	Message string  `json:"message,omitempty"`
}

// AddressRef 引用一个地址，可能带有合约名称。
type AddressRef struct {
	Hash string `json:"hash"`
	Name string `json:"name,omitempty"`
}

// Token 描述代币合约。
type Token struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals Scalar `json:"decimals"`
}

// TokenTotal 是一次代币转账的数量。
type TokenTotal struct {
	Value    Scalar `json:"value"`
	Decimals Scalar `json:"decimals"`
}

// TokenTransfer 是交易中的一次代币转账。
type TokenTransfer struct {
	Token Token      `json:"token"`
	Total TokenTotal `json:"total"`
	From  AddressRef `json:"from"`
	To    AddressRef `json:"to"`
}

// Transaction 对应 /v1/transactions/{hash} 的响应。
type Transaction struct {
	Hash           Scalar          `json:"hash"`
	Status         Scalar          `json:"status"`
	Method         string          `json:"method"`
	Block          Scalar          `json:"block"`
	Timestamp      Scalar          `json:"timestamp"`
	From           AddressRef      `json:"from"`
	To             *AddressRef     `json:"to"`
	Value          Scalar          `json:"value"`
	GasUsed        Scalar          `json:"gas_used"`
	GasPrice       Scalar          `json:"gas_price"`
	TokenTransfers []TokenTransfer `json:"token_transfers"`
}

// GasPrices 是三档 gas 价格（Gwei）。
type GasPrices struct {
	Average Scalar `json:"average"`
	Fast    Scalar `json:"fast"`
	Slow    Scalar `json:"slow"`
}

// Stats 对应 /v1/stats 的响应。
type Stats struct {
	AverageBlockTime          Scalar    `json:"average_block_time"`
	CoinPriceChangePercentage Scalar    `json:"coin_price_change_percentage"`
	GasPrices                 GasPrices `json:"gas_prices"`
	NetworkUtilizationPercent Scalar    `json:"network_utilization_percentage"`
	TotalAddresses            Scalar    `json:"total_addresses"`
	TotalTransactions         Scalar    `json:"total_transactions"`
}
