package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cardledger/internal/cache"
	"cardledger/internal/errors"
	"cardledger/internal/model"
	"cardledger/internal/repository"
)

func newCardServiceUnderTest(t *testing.T, repo *MockCardRepository) (CardService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	return NewCardService(repo, client, time.Minute, zap.NewNop()), mr
}

func strPtr(s string) *string { return &s }

func TestCardService_Create(t *testing.T) {
	t.Run("opens the card with its initial balance", func(t *testing.T) {
		repo := new(MockCardRepository)
		repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Card"), true).
			Run(func(args mock.Arguments) {
				args.Get(1).(*model.Card).Order = 3
			}).
			Return(nil)
		service, _ := newCardServiceUnderTest(t, repo)

		card, err := service.Create(context.Background(), "u1", CreateCardInput{
			Name:    "  Cash ",
			Color:   "green",
			Balance: decimal.NewFromInt(100),
		})

		require.NoError(t, err)
		assert.Equal(t, "Cash", card.Name)
		assert.Equal(t, "u1", card.Owner)
		assert.Equal(t, 3, card.Order)
		assert.True(t, card.Balance.Equal(decimal.NewFromInt(100)))
		require.Len(t, card.Operations, 1)
		assert.Equal(t, "account opened: Cash", card.Operations[0].Description)
		assert.True(t, card.LastOperation.Amount.Equal(decimal.NewFromInt(100)))
		repo.AssertExpectations(t)
	})

	t.Run("keeps an explicit order", func(t *testing.T) {
		repo := new(MockCardRepository)
		repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Card"), false).Return(nil)
		service, _ := newCardServiceUnderTest(t, repo)
		order := 7

		card, err := service.Create(context.Background(), "u1", CreateCardInput{Name: "Cash", Color: "green", Order: &order})

		require.NoError(t, err)
		assert.Equal(t, 7, card.Order)
		repo.AssertExpectations(t)
	})

	tests := []struct {
		name  string
		input CreateCardInput
		field string
	}{
		{"blank name", CreateCardInput{Name: "   ", Color: "green"}, "name"},
		{"blank color", CreateCardInput{Name: "Cash", Color: ""}, "color"},
		{"sub-cent balance", CreateCardInput{Name: "Cash", Color: "green", Balance: decimal.RequireFromString("1.005")}, "balance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockCardRepository)
			service, _ := newCardServiceUnderTest(t, repo)

			_, err := service.Create(context.Background(), "u1", tt.input)

			var validationErr *errors.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("storage failure is wrapped", func(t *testing.T) {
		repo := new(MockCardRepository)
		repo.On("Create", mock.Anything, mock.Anything, true).Return(assert.AnError)
		service, _ := newCardServiceUnderTest(t, repo)

		_, err := service.Create(context.Background(), "u1", CreateCardInput{Name: "Cash", Color: "green"})

		var storageErr *errors.StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestCardService_ListForOwner_UsesCache(t *testing.T) {
	repo := new(MockCardRepository)
	cards := []model.Card{*model.NewCard("u1", "Cash", "green", decimal.NewFromInt(5), 1, time.Now().UTC())}
	repo.On("ListByOwner", mock.Anything, "u1").Return(cards, nil).Once()
	service, mr := newCardServiceUnderTest(t, repo)
	ctx := context.Background()

	first, err := service.ListForOwner(ctx, "u1")
	require.NoError(t, err)
	second, err := service.ListForOwner(ctx, "u1")
	require.NoError(t, err)

	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.True(t, mr.Exists("cards:u1:0"))
	repo.AssertNumberOfCalls(t, "ListByOwner", 1)
}

func TestCardService_ListForOwner_EmptyIsNotNil(t *testing.T) {
	repo := new(MockCardRepository)
	repo.On("ListByOwner", mock.Anything, "u1").Return(nil, nil)
	service := NewCardService(repo, nil, time.Minute, zap.NewNop())

	cards, err := service.ListForOwner(context.Background(), "u1")

	require.NoError(t, err)
	assert.NotNil(t, cards)
	assert.Empty(t, cards)
}

func TestCardService_WritesInvalidateList(t *testing.T) {
	repo := new(MockCardRepository)
	id := uuid.New()
	repo.On("ListByOwner", mock.Anything, "u1").Return([]model.Card{}, nil)
	repo.On("Delete", mock.Anything, id, "u1").Return(nil)
	service, mr := newCardServiceUnderTest(t, repo)
	ctx := context.Background()

	_, err := service.ListForOwner(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, service.Delete(ctx, "u1", id))
	_, err = service.ListForOwner(ctx, "u1")
	require.NoError(t, err)

	gen, err := mr.Get("cards:u1:gen")
	require.NoError(t, err)
	assert.Equal(t, "1", gen)
	repo.AssertNumberOfCalls(t, "ListByOwner", 2)
}

func TestCardService_ListRacingWriteIsNotCached(t *testing.T) {
	repo := new(MockCardRepository)
	now := time.Now().UTC()
	kept := *model.NewCard("u1", "Cash", "green", decimal.NewFromInt(5), 1, now)
	removed := *model.NewCard("u1", "Travel", "blue", decimal.NewFromInt(7), 2, now)
	var service CardService

	// The first read returns the pre-delete snapshot; the delete commits
	// and invalidates while that read is still in flight.
	repo.On("ListByOwner", mock.Anything, "u1").
		Run(func(args mock.Arguments) {
			require.NoError(t, service.Delete(context.Background(), "u1", removed.ID))
		}).
		Return([]model.Card{kept, removed}, nil).Once()
	repo.On("ListByOwner", mock.Anything, "u1").Return([]model.Card{kept}, nil).Once()
	repo.On("Delete", mock.Anything, removed.ID, "u1").Return(nil)
	service, _ = newCardServiceUnderTest(t, repo)
	ctx := context.Background()

	stale, err := service.ListForOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, stale, 2)

	fresh, err := service.ListForOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, kept.ID, fresh[0].ID)

	cached, err := service.ListForOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	repo.AssertNumberOfCalls(t, "ListByOwner", 2)
}

func TestCardService_Update(t *testing.T) {
	id := uuid.New()

	t.Run("trims and forwards the patch", func(t *testing.T) {
		repo := new(MockCardRepository)
		updated := model.NewCard("u1", "Wallet", "blue", decimal.Zero, 1, time.Now().UTC())
		repo.On("Update", mock.Anything, id, "u1", mock.MatchedBy(func(p model.CardPatch) bool {
			return p.Name != nil && *p.Name == "Wallet" && p.Color == nil
		}), mock.AnythingOfType("time.Time")).Return(updated, nil)
		service, _ := newCardServiceUnderTest(t, repo)

		card, err := service.Update(context.Background(), "u1", id, model.CardPatch{Name: strPtr(" Wallet ")})

		require.NoError(t, err)
		assert.Equal(t, "Wallet", card.Name)
		repo.AssertExpectations(t)
	})

	t.Run("rejects a blank field before writing", func(t *testing.T) {
		repo := new(MockCardRepository)
		service, _ := newCardServiceUnderTest(t, repo)

		_, err := service.Update(context.Background(), "u1", id, model.CardPatch{Color: strPtr(" ")})

		var validationErr *errors.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "color", validationErr.Field)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects an operation without description", func(t *testing.T) {
		repo := new(MockCardRepository)
		service, _ := newCardServiceUnderTest(t, repo)

		_, err := service.Update(context.Background(), "u1", id, model.CardPatch{
			Operations: []model.LedgerEntry{{Amount: decimal.NewFromInt(1), Description: ""}},
		})

		var validationErr *errors.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "operations.description", validationErr.Field)
	})

	errorCases := []struct {
		name    string
		repoErr error
		want    error
	}{
		{"missing card", repository.ErrNotFound, errors.ErrCardNotFound},
		{"version conflict", repository.ErrConflict, errors.ErrConcurrentModification},
		{"patch contradicts card", errors.NewValidationError("lastOperation", "must match the most recent operation"), nil},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockCardRepository)
			repo.On("Update", mock.Anything, id, "u1", mock.Anything, mock.Anything).Return(nil, tt.repoErr)
			service, _ := newCardServiceUnderTest(t, repo)

			_, err := service.Update(context.Background(), "u1", id, model.CardPatch{Name: strPtr("x")})

			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			assert.Equal(t, tt.repoErr, err)
		})
	}
}

func TestCardService_Delete_NotFound(t *testing.T) {
	repo := new(MockCardRepository)
	id := uuid.New()
	repo.On("Delete", mock.Anything, id, "u1").Return(repository.ErrNotFound)
	service, _ := newCardServiceUnderTest(t, repo)

	err := service.Delete(context.Background(), "u1", id)

	assert.ErrorIs(t, err, errors.ErrCardNotFound)
}

func TestCardService_NextOrder(t *testing.T) {
	repo := new(MockCardRepository)
	repo.On("NextOrder", mock.Anything, "u1").Return(4, nil)
	service, _ := newCardServiceUnderTest(t, repo)

	next, err := service.NextOrder(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, 4, next)
}
