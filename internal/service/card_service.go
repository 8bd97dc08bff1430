package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cardledger/internal/cache"
	"cardledger/internal/errors"
	"cardledger/internal/model"
	"cardledger/internal/repository"
)

// CreateCardInput carries the caller supplied fields of a new card.
// A nil Order asks for the owner's next order value.
type CreateCardInput struct {
	Name    string
	Color   string
	Balance decimal.Decimal
	Order   *int
}

// CardService handles owner scoped card operations.
type CardService interface {
	Create(ctx context.Context, owner string, input CreateCardInput) (*model.Card, error)
	ListForOwner(ctx context.Context, owner string) ([]model.Card, error)
	Update(ctx context.Context, owner string, id uuid.UUID, patch model.CardPatch) (*model.Card, error)
	Delete(ctx context.Context, owner string, id uuid.UUID) error
	NextOrder(ctx context.Context, owner string) (int, error)
}

type cardService struct {
	cardRepo repository.CardRepository
	lists    *cardListCache
	logger   *zap.Logger
	now      func() time.Time
}

// NewCardService creates a new card service. cache may be nil.
func NewCardService(cardRepo repository.CardRepository, cache *cache.Client, listTTL time.Duration, logger *zap.Logger) CardService {
	return &cardService{
		cardRepo: cardRepo,
		lists:    &cardListCache{cache: cache, ttl: listTTL, logger: logger},
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create validates input and persists a card opened with its initial balance.
func (s *cardService) Create(ctx context.Context, owner string, input CreateCardInput) (*model.Card, error) {
	name, err := requireText("name", input.Name)
	if err != nil {
		return nil, err
	}
	color, err := requireText("color", input.Color)
	if err != nil {
		return nil, err
	}
	if err := requireMoney("balance", input.Balance); err != nil {
		return nil, err
	}

	order := 0
	if input.Order != nil {
		order = *input.Order
	}
	card := model.NewCard(owner, name, color, input.Balance, order, s.now())
	if err := s.cardRepo.Create(ctx, card, input.Order == nil); err != nil {
		return nil, storageFailure(s.logger, "create card", owner, err)
	}

	s.lists.invalidate(ctx, owner)
	return card, nil
}

// ListForOwner returns the owner's cards by order, then creation time, then id.
func (s *cardService) ListForOwner(ctx context.Context, owner string) ([]model.Card, error) {
	gen := s.lists.generation(ctx, owner)
	if cards, ok := s.lists.get(ctx, owner, gen); ok {
		return cards, nil
	}

	cards, err := s.cardRepo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, storageFailure(s.logger, "list cards", owner, err)
	}
	if cards == nil {
		cards = []model.Card{}
	}

	s.lists.set(ctx, owner, gen, cards)
	return cards, nil
}

// Update applies the supplied fields after validating each one.
func (s *cardService) Update(ctx context.Context, owner string, id uuid.UUID, patch model.CardPatch) (*model.Card, error) {
	patch, err := normalizePatch(patch)
	if err != nil {
		return nil, err
	}

	card, err := s.cardRepo.Update(ctx, id, owner, patch, s.now())
	if err != nil {
		return nil, mapCardError(s.logger, "update card", owner, err)
	}

	s.lists.invalidate(ctx, owner)
	return card, nil
}

// Delete removes the card with its history.
func (s *cardService) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	if err := s.cardRepo.Delete(ctx, id, owner); err != nil {
		return mapCardError(s.logger, "delete card", owner, err)
	}

	s.lists.invalidate(ctx, owner)
	return nil
}

// NextOrder reports the order value a card created now without one would get.
func (s *cardService) NextOrder(ctx context.Context, owner string) (int, error) {
	next, err := s.cardRepo.NextOrder(ctx, owner)
	if err != nil {
		return 0, storageFailure(s.logger, "next order", owner, err)
	}
	return next, nil
}

// mapCardError translates repository outcomes into the service error taxonomy.
func mapCardError(logger *zap.Logger, op, owner string, err error) error {
	var validationErr *errors.ValidationError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return errors.ErrCardNotFound
	case errors.Is(err, repository.ErrConflict):
		logger.Warn("card write kept conflicting", zap.String("op", op), zap.String("owner", owner))
		return errors.ErrConcurrentModification
	case errors.As(err, &validationErr):
		return err
	default:
		return storageFailure(logger, op, owner, err)
	}
}

func storageFailure(logger *zap.Logger, op, owner string, err error) error {
	logger.Error("storage failure", zap.String("op", op), zap.String("owner", owner), zap.Error(err))
	return errors.NewStorageError(op, err)
}
