package service

import (
	"strings"

	"github.com/shopspring/decimal"

	"cardledger/internal/errors"
	"cardledger/internal/model"
)

// moneyScale is the number of fractional digits a stored amount may carry.
const moneyScale = 2

// requireText trims value and rejects it when nothing is left.
func requireText(field, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", errors.NewValidationError(field, "must not be empty")
	}
	return trimmed, nil
}

// requireMoney rejects amounts that cannot be stored without rounding.
func requireMoney(field string, amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(moneyScale)) {
		return errors.NewValidationError(field, "must have at most 2 decimal places")
	}
	return nil
}

// normalizePatch validates every supplied field of patch and returns a trimmed copy.
func normalizePatch(patch model.CardPatch) (model.CardPatch, error) {
	out := patch
	if patch.Name != nil {
		name, err := requireText("name", *patch.Name)
		if err != nil {
			return model.CardPatch{}, err
		}
		out.Name = &name
	}
	if patch.Color != nil {
		color, err := requireText("color", *patch.Color)
		if err != nil {
			return model.CardPatch{}, err
		}
		out.Color = &color
	}
	if patch.Balance != nil {
		if err := requireMoney("balance", *patch.Balance); err != nil {
			return model.CardPatch{}, err
		}
	}
	if patch.Operations != nil {
		ops := make([]model.LedgerEntry, len(patch.Operations))
		for i, op := range patch.Operations {
			entry, err := normalizeEntry("operations", op)
			if err != nil {
				return model.CardPatch{}, err
			}
			ops[i] = entry
		}
		out.Operations = ops
	}
	if patch.LastOperation != nil {
		entry, err := normalizeEntry("lastOperation", *patch.LastOperation)
		if err != nil {
			return model.CardPatch{}, err
		}
		out.LastOperation = &entry
	}
	return out, nil
}

func normalizeEntry(field string, entry model.LedgerEntry) (model.LedgerEntry, error) {
	description, err := requireText(field+".description", entry.Description)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	if err := requireMoney(field+".amount", entry.Amount); err != nil {
		return model.LedgerEntry{}, err
	}
	entry.Description = description
	return entry, nil
}
