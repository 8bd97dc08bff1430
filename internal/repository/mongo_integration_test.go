//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/wait"

	"cardledger/internal/db"
	"cardledger/internal/model"
)

func newMongoStores(t *testing.T) *Stores {
	t.Helper()
	ctx := context.Background()

	container, err := tcmongo.Run(ctx,
		"mongo:7",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Waiting for connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := db.NewMongo(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	database := client.Database("cardledger_test")
	require.NoError(t, EnsureMongoIndexes(ctx, database))
	return NewMongoStores(database)
}

func TestMongoCardRepository(t *testing.T) {
	stores := newMongoStores(t)
	repo := stores.Cards
	ctx := context.Background()

	first := createCard(t, repo, "u1", "Cash", "100")
	second := createCard(t, repo, "u1", "Spare", "0")
	assert.Greater(t, second.Order, first.Order)

	updated, err := repo.Append(ctx, first.ID, "u1", model.LedgerEntry{Amount: dec("-30"), Description: "coffee", Date: time.Now().UTC()})
	require.NoError(t, err)
	assert.True(t, updated.Balance.Equal(dec("70")))
	assertInvariant(t, updated)

	_, err = repo.Append(ctx, first.ID, "u2", model.LedgerEntry{Amount: dec("1"), Description: "x", Date: time.Now().UTC()})
	assert.ErrorIs(t, err, ErrNotFound)

	var wg sync.WaitGroup
	for _, amount := range []string{"10", "5"} {
		wg.Add(1)
		go func(amount string) {
			defer wg.Done()
			_, err := repo.Append(ctx, second.ID, "u1", model.LedgerEntry{Amount: dec(amount), Description: "top up", Date: time.Now().UTC()})
			assert.NoError(t, err)
		}(amount)
	}
	wg.Wait()

	final, err := repo.FindByIDAndOwner(ctx, second.ID, "u1")
	require.NoError(t, err)
	assert.True(t, final.Balance.Equal(dec("15")))
	assert.Len(t, final.Operations, 3)

	balance := dec("20")
	corrected, err := repo.Update(ctx, second.ID, "u1", model.CardPatch{Balance: &balance}, time.Now().UTC())
	require.NoError(t, err)
	assertInvariant(t, corrected)

	cards, err := repo.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, cards, 2)

	require.NoError(t, repo.Delete(ctx, first.ID, "u1"))
	assert.ErrorIs(t, repo.Delete(ctx, first.ID, "u1"), ErrNotFound)
}

func TestMongoUserRepository(t *testing.T) {
	repo := newMongoStores(t).Users
	ctx := context.Background()

	user := &model.User{Username: "alice", PasswordHash: "hash"}
	require.NoError(t, repo.Create(ctx, user))

	found, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.FindByID(ctx, found.ID)
	require.NoError(t, err)
}
