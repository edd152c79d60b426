package actions

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	xerrors "NeoX-Agent/internal/errors"
)

var printer = message.NewPrinter(language.English)

// formatNumber 按 JavaScript 数字转字符串的规则渲染 v。
func formatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		return "0"
	}
	abs := math.Abs(v)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(v, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		if digits == "" {
			digits = "0"
		}
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatGrouped 使用千分位分隔符渲染 v，最多保留三位小数。
func formatGrouped(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	if math.IsInf(v, 0) {
		if v > 0 {
			return "∞"
		}
		return "-∞"
	}
	return printer.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(3)))
}

// formatUnits 将整数金额字符串除以 10^decimals，保留 precision 位小数并四舍五入。
func formatUnits(amount string, decimals, precision int) string {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		amount = "0"
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return "NaN"
	}
	return value.Shift(int32(-decimals)).StringFixed(int32(precision))
}

// errorText 从 err 中提取可读的原因。
func errorText(err error) string {
	var coded *xerrors.Error
	if errors.As(err, &coded) {
		if cause := coded.Unwrap(); cause != nil {
			return cause.Error()
		}
		return coded.Message()
	}
	return err.Error()
}
