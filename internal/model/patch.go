package model

import (
	"time"

	"github.com/shopspring/decimal"

	"cardledger/internal/errors"
)

// correctionDescription marks entries appended by a direct balance overwrite.
const correctionDescription = "balance correction"

// CardPatch lists the mutable card fields. Nil fields are left untouched.
type CardPatch struct {
	Name          *string
	Color         *string
	Balance       *decimal.Decimal
	Operations    []LedgerEntry
	LastOperation *LedgerEntry
	Order         *int
}

// ReplacesHistory reports whether the patch swaps the whole operation history.
func (p CardPatch) ReplacesHistory() bool {
	return p.Operations != nil
}

// ApplyTo writes the patch into card while keeping balance equal to the history total.
// It returns a *errors.ValidationError and leaves card untouched when the patch
// contradicts itself or the card.
func (p CardPatch) ApplyTo(card *Card, now time.Time) error {
	next := *card
	next.Operations = append([]LedgerEntry(nil), card.Operations...)

	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.Color != nil {
		next.Color = *p.Color
	}
	if p.Order != nil {
		next.Order = *p.Order
	}

	switch {
	case p.ReplacesHistory():
		if len(p.Operations) == 0 {
			return errors.NewValidationError("operations", "must contain at least one entry")
		}
		next.Operations = make([]LedgerEntry, len(p.Operations))
		for i, op := range p.Operations {
			if op.Date.IsZero() {
				op.Date = now
			}
			next.Operations[i] = op
		}
		next.Balance = next.HistoryTotal()
		next.LastOperation = next.Operations[len(next.Operations)-1]
		if p.Balance != nil && !p.Balance.Equal(next.Balance) {
			return errors.NewValidationError("balance", "must equal the sum of operations")
		}
	case p.Balance != nil:
		if delta := p.Balance.Sub(card.Balance); !delta.IsZero() {
			next.Append(LedgerEntry{Amount: delta, Description: correctionDescription, Date: now})
		}
	}

	if p.LastOperation != nil {
		last := next.LastOperation
		if !p.LastOperation.Amount.Equal(last.Amount) || p.LastOperation.Description != last.Description {
			return errors.NewValidationError("lastOperation", "must match the most recent operation")
		}
	}

	next.UpdatedAt = now
	*card = next
	return nil
}
