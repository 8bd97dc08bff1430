package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cardledger/internal/cache"
	"cardledger/internal/model"
	"cardledger/internal/repository"
)

const (
	postingLogBuffer    = 100
	postingLogBatchSize = 10
	postingLogFlush     = time.Second
)

// PostingService appends ledger entries to cards.
type PostingService interface {
	Post(ctx context.Context, owner string, id uuid.UUID, amount decimal.Decimal, description string) (*model.Card, error)
	// Close stops the audit worker after writing what it still holds.
	Close()
}

type postingService struct {
	cardRepo       repository.CardRepository
	postingLogRepo repository.PostingLogRepository
	lists          *cardListCache
	logger         *zap.Logger
	now            func() time.Time

	// Channel for async posting audit logging
	logChannel chan model.PostingLog
	mu         sync.RWMutex
	closed     bool
	done       chan struct{}
}

// NewPostingService creates a new posting service and starts its audit worker.
func NewPostingService(
	cardRepo repository.CardRepository,
	postingLogRepo repository.PostingLogRepository,
	cache *cache.Client,
	listTTL time.Duration,
	logger *zap.Logger,
) PostingService {
	service := &postingService{
		cardRepo:       cardRepo,
		postingLogRepo: postingLogRepo,
		lists:          &cardListCache{cache: cache, ttl: listTTL, logger: logger},
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
		logChannel:     make(chan model.PostingLog, postingLogBuffer),
		done:           make(chan struct{}),
	}

	go service.logWorker()

	return service
}

// Post validates the entry and appends it to the owner's card as one atomic write.
func (s *postingService) Post(ctx context.Context, owner string, id uuid.UUID, amount decimal.Decimal, description string) (*model.Card, error) {
	card, err := s.post(ctx, owner, id, amount, description)
	if err != nil {
		s.logPosting(id, owner, amount, model.PostingStatusRejected, err.Error())
		return nil, err
	}
	s.logPosting(id, owner, amount, model.PostingStatusAccepted, "")
	return card, nil
}

func (s *postingService) post(ctx context.Context, owner string, id uuid.UUID, amount decimal.Decimal, description string) (*model.Card, error) {
	description, err := requireText("description", description)
	if err != nil {
		return nil, err
	}
	if err := requireMoney("amount", amount); err != nil {
		return nil, err
	}

	entry := model.LedgerEntry{Amount: amount, Description: description, Date: s.now()}
	card, err := s.cardRepo.Append(ctx, id, owner, entry)
	if err != nil {
		return nil, mapCardError(s.logger, "post transaction", owner, err)
	}

	s.lists.invalidate(ctx, owner)
	return card, nil
}

// logPosting queues an audit record. A full queue drops the record.
func (s *postingService) logPosting(cardID uuid.UUID, owner string, amount decimal.Decimal, status model.PostingStatus, message string) {
	log := model.PostingLog{
		ID:           uuid.New(),
		CardID:       cardID.String(),
		Owner:        owner,
		Amount:       amount,
		Status:       status,
		ErrorMessage: message,
		CreatedAt:    s.now(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn("posting log dropped after shutdown", zap.String("card_id", log.CardID))
		return
	}
	select {
	case s.logChannel <- log:
	default:
		s.logger.Warn("posting log queue full, dropping record", zap.String("card_id", log.CardID))
	}
}

// logWorker writes posting logs in batches.
func (s *postingService) logWorker() {
	defer close(s.done)

	batch := make([]model.PostingLog, 0, postingLogBatchSize)
	ticker := time.NewTicker(postingLogFlush)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.postingLogRepo.CreateBatch(context.Background(), batch); err != nil {
			s.logger.Error("write posting logs", zap.Int("count", len(batch)), zap.Error(err))
		}
		batch = make([]model.PostingLog, 0, postingLogBatchSize)
	}

	for {
		select {
		case log, ok := <-s.logChannel:
			if !ok {
				// Channel closed, flush remaining logs
				flush()
				return
			}
			batch = append(batch, log)
			if len(batch) >= postingLogBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close drains the audit queue and waits for the worker to finish.
func (s *postingService) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.logChannel)
	}
	s.mu.Unlock()
	<-s.done
}
