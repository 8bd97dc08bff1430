package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML layout read by the seed command.
type Fixture struct {
	Cards []FixtureCard `yaml:"cards"`
}

// FixtureCard describes one card and the transactions posted to it after creation.
type FixtureCard struct {
	Name         string               `yaml:"name"`
	Color        string               `yaml:"color"`
	Balance      string               `yaml:"balance"`
	Order        *int                 `yaml:"order"`
	Transactions []FixtureTransaction `yaml:"transactions"`
}

// FixtureTransaction is one posting of a fixture card.
type FixtureTransaction struct {
	Amount      string `yaml:"amount"`
	Description string `yaml:"description"`
}

// parseFixture decodes a fixture and checks that every amount is a number.
func parseFixture(r io.Reader) (*Fixture, error) {
	var fixture Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fixture); err != nil {
		if err == io.EOF {
			return &fixture, nil
		}
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	for i, card := range fixture.Cards {
		if _, err := parseAmount(card.Balance); err != nil {
			return nil, fmt.Errorf("card %d (%s): balance: %w", i, card.Name, err)
		}
		for j, tx := range card.Transactions {
			if _, err := decimal.NewFromString(tx.Amount); err != nil {
				return nil, fmt.Errorf("card %d (%s): transaction %d: amount: %w", i, card.Name, j, err)
			}
		}
	}
	return &fixture, nil
}

// parseAmount reads an optional amount; empty means zero.
func parseAmount(v string) (decimal.Decimal, error) {
	if strings.TrimSpace(v) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(v)
}

// openFixture opens a local file or fetches an http(s) URL.
func openFixture(source string) (io.ReadCloser, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("open fixture: %w", err)
		}
		return f, nil
	}

	resp, err := http.Get(source)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fixture: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fixture source returned status code: %d", resp.StatusCode)
	}
	return resp.Body, nil
}
