package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
	xcurrency "golang.org/x/text/currency"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Amount is a transient value in a given currency.
type Amount struct {
	Value decimal.Decimal `json:"value"`
	Code  string          `json:"currency"`
}

func (a Amount) String() string {
	s, err := Format(a.Value, a.Code)
	if err != nil {
		return a.Value.String() + " " + a.Code
	}
	return s
}

// Convert returns amount × rate[to] / rate[from]. A zero amount returns
// zero without consulting the rate table.
func Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if amount.IsZero() {
		return decimal.Zero, nil
	}
	src, err := Lookup(from)
	if err != nil {
		return decimal.Zero, err
	}
	dst, err := Lookup(to)
	if err != nil {
		return decimal.Zero, err
	}
	if src.Code == dst.Code {
		return amount, nil
	}
	return amount.Mul(dst.Rate).Div(src.Rate), nil
}

// ConvertAmount converts an amount held in Base.
func ConvertAmount(amount decimal.Decimal, to string) (Amount, error) {
	v, err := Convert(amount, Base, to)
	if err != nil {
		return Amount{}, err
	}
	def, err := Lookup(to)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: v, Code: def.Code}, nil
}

// Scale is the number of minor digits amounts in code are shown with: the
// ISO standard rounding, or 2 when x/text does not know the code.
func Scale(code string) int32 {
	unit, err := xcurrency.ParseISO(code)
	if err != nil {
		return 2
	}
	scale, _ := xcurrency.Standard.Rounding(unit)
	return int32(scale)
}

// Format renders amount with the currency symbol and the grouping and
// decimal separators of the currency's locale, e.g. $1,234.56.
func Format(amount decimal.Decimal, code string) (string, error) {
	def, err := Lookup(code)
	if err != nil {
		return "", err
	}

	scale := Scale(def.Code)
	rounded := amount.Round(scale)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
	}
	f, _ := rounded.Abs().Float64()

	p := message.NewPrinter(def.Locale)
	return fmt.Sprintf("%s%s%s", sign, def.Symbol, p.Sprintf("%v", number.Decimal(f, number.Scale(int(scale))))), nil
}
