package currency

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

// Base is the currency catalog prices are stored in.
const Base = "USD"

var ErrUnsupportedCurrency = errors.New("unsupported currency")

// Definition describes one display currency. Rate is units of this currency
// per one unit of Base.
type Definition struct {
	Code   string
	Symbol string
	Rate   decimal.Decimal
	Locale language.Tag
}

var table = map[string]Definition{
	"USD": {Code: "USD", Symbol: "$", Rate: decimal.NewFromInt(1), Locale: language.AmericanEnglish},
	"INR": {Code: "INR", Symbol: "₹", Rate: decimal.RequireFromString("83.12"), Locale: language.MustParse("en-IN")},
	"EUR": {Code: "EUR", Symbol: "€", Rate: decimal.RequireFromString("0.92"), Locale: language.German},
	"GBP": {Code: "GBP", Symbol: "£", Rate: decimal.RequireFromString("0.79"), Locale: language.BritishEnglish},
	"JPY": {Code: "JPY", Symbol: "¥", Rate: decimal.RequireFromString("149.50"), Locale: language.Japanese},
	"CAD": {Code: "CAD", Symbol: "CA$", Rate: decimal.RequireFromString("1.36"), Locale: language.MustParse("en-CA")},
	"AUD": {Code: "AUD", Symbol: "A$", Rate: decimal.RequireFromString("1.52"), Locale: language.MustParse("en-AU")},
	"SGD": {Code: "SGD", Symbol: "S$", Rate: decimal.RequireFromString("1.34"), Locale: language.MustParse("en-SG")},
	"AED": {Code: "AED", Symbol: "AED ", Rate: decimal.RequireFromString("3.67"), Locale: language.MustParse("en-AE")},
}

// Lookup finds a currency by ISO code, case-insensitively.
func Lookup(code string) (Definition, error) {
	def, ok := table[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Definition{}, fmt.Errorf("%q: %w", code, ErrUnsupportedCurrency)
	}
	return def, nil
}

// Supported lists the known codes in alphabetical order.
func Supported() []string {
	codes := make([]string, 0, len(table))
	for code := range table {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
