package handler

import (
	"errors"

	"github.com/shopspring/decimal"
)

var errQuotedAmount = errors.New("amount must be a JSON number")

// Amount is a request-side decimal that only binds from a bare JSON number.
// decimal.Decimal alone also accepts "10" as a string.
type Amount struct {
	decimal.Decimal
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return errQuotedAmount
	}
	return a.Decimal.UnmarshalJSON(data)
}

func (a *Amount) decimalPtr() *decimal.Decimal {
	if a == nil {
		return nil
	}
	d := a.Decimal
	return &d
}
