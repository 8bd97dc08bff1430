package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cardledger/internal/db"
	"cardledger/internal/repository"
	"cardledger/internal/service"
)

func TestParseFixture(t *testing.T) {
	f, err := os.Open("cards.yaml")
	require.NoError(t, err)
	defer f.Close()

	fixture, err := parseFixture(f)

	require.NoError(t, err)
	require.Len(t, fixture.Cards, 3)
	assert.Equal(t, "Cash", fixture.Cards[0].Name)
	assert.Len(t, fixture.Cards[0].Transactions, 2)
	require.NotNil(t, fixture.Cards[1].Order)
	assert.Equal(t, 10, *fixture.Cards[1].Order)
	assert.Nil(t, fixture.Cards[2].Order)
}

func TestParseFixture_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "cards:\n  - name: Cash\n    colour: green\n"},
		{"bad balance", "cards:\n  - name: Cash\n    color: green\n    balance: lots\n"},
		{"bad amount", "cards:\n  - name: Cash\n    color: green\n    transactions:\n      - amount: ten\n        description: x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFixture(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestSeedCards(t *testing.T) {
	gormDB, err := db.NewSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(gormDB, false))
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		_ = sqlDB.Close()
	})
	stores := repository.NewGormStores(gormDB)
	logger := zap.NewNop()
	cards := service.NewCardService(stores.Cards, nil, 0, logger)
	postings := service.NewPostingService(stores.Cards, stores.PostingLogs, nil, 0, logger)
	defer postings.Close()

	f, err := os.Open("cards.yaml")
	require.NoError(t, err)
	defer f.Close()
	fixture, err := parseFixture(f)
	require.NoError(t, err)

	created, posted, err := seedCards(context.Background(), cards, postings, "seed-owner", fixture)

	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.Equal(t, 3, posted)

	list, err := cards.ListForOwner(context.Background(), "seed-owner")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Cash", list[0].Name)
	assert.True(t, list[0].Balance.Equal(decimal.RequireFromString("97.30")))
	assert.Len(t, list[0].Operations, 3)
	assert.Equal(t, "Savings", list[1].Name)
	assert.Equal(t, 11, list[2].Order)
	assert.True(t, list[1].Balance.Equal(decimal.NewFromInt(2800)))
}

func TestSeedCommand_RequiresOwner(t *testing.T) {
	cmd := newSeedCommand()
	cmd.SetArgs([]string{"--file", "cards.yaml"})

	err := cmd.Execute()

	assert.Error(t, err)
}
