package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cardledger/internal/model"
)

const (
	cardsCollection         = "cards"
	cardSequencesCollection = "card_sequences"
)

type entryDocument struct {
	Amount      primitive.Decimal128 `bson:"amount"`
	Description string               `bson:"description"`
	Date        time.Time            `bson:"date"`
}

// cardDocument keeps the whole history embedded, so a posting is a single
// document update.
type cardDocument struct {
	ID            string               `bson:"_id"`
	Owner         string               `bson:"owner"`
	Name          string               `bson:"name"`
	Color         string               `bson:"color"`
	Balance       primitive.Decimal128 `bson:"balance"`
	LastOperation entryDocument        `bson:"lastOperation"`
	Operations    []entryDocument      `bson:"operations"`
	Order         int                  `bson:"order"`
	Version       int64                `bson:"version"`
	CreatedAt     time.Time            `bson:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt"`
}

type sequenceDocument struct {
	Owner string `bson:"_id"`
	Seq   int    `bson:"seq"`
}

type mongoCardRepository struct {
	cards     *mongo.Collection
	sequences *mongo.Collection
}

// NewMongoCardRepository creates a card repository backed by a MongoDB database.
func NewMongoCardRepository(database *mongo.Database) CardRepository {
	return &mongoCardRepository{
		cards:     database.Collection(cardsCollection),
		sequences: database.Collection(cardSequencesCollection),
	}
}

// Create inserts the card document. Order values come from a per-owner counter
// that is bumped atomically, or raised to an explicit value.
func (r *mongoCardRepository) Create(ctx context.Context, card *model.Card, assignOrder bool) error {
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	if assignOrder {
		var seq sequenceDocument
		err := r.sequences.FindOneAndUpdate(ctx,
			bson.M{"_id": card.Owner},
			bson.M{"$inc": bson.M{"seq": 1}},
			options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
		).Decode(&seq)
		if err != nil {
			return fmt.Errorf("next order: %w", err)
		}
		card.Order = seq.Seq
	} else {
		_, err := r.sequences.UpdateOne(ctx,
			bson.M{"_id": card.Owner},
			bson.M{"$max": bson.M{"seq": card.Order}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("raise order: %w", err)
		}
	}

	doc, err := toCardDocument(card)
	if err != nil {
		return err
	}
	_, err = r.cards.InsertOne(ctx, doc)
	return err
}

// NextOrder returns the value the owner's next defaulted card would get.
func (r *mongoCardRepository) NextOrder(ctx context.Context, owner string) (int, error) {
	var seq sequenceDocument
	err := r.sequences.FindOne(ctx, bson.M{"_id": owner}).Decode(&seq)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return seq.Seq + 1, nil
}

// ListByOwner lists the owner's cards by order, then creation time, then id.
func (r *mongoCardRepository) ListByOwner(ctx context.Context, owner string) ([]model.Card, error) {
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.cards.Find(ctx, bson.M{"owner": owner}, opts)
	if err != nil {
		return nil, err
	}
	var docs []cardDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	cards := make([]model.Card, 0, len(docs))
	for _, doc := range docs {
		card, err := fromCardDocument(doc)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, nil
}

// FindByIDAndOwner finds a card by ID within the owner's cards.
func (r *mongoCardRepository) FindByIDAndOwner(ctx context.Context, id uuid.UUID, owner string) (*model.Card, error) {
	var doc cardDocument
	err := r.cards.FindOne(ctx, ownedBy(id, owner)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromCardDocument(doc)
}

// Append increments the balance and pushes the entry in one atomic update.
func (r *mongoCardRepository) Append(ctx context.Context, id uuid.UUID, owner string, entry model.LedgerEntry) (*model.Card, error) {
	entryDoc, err := toEntryDocument(entry)
	if err != nil {
		return nil, err
	}

	var doc cardDocument
	err = r.cards.FindOneAndUpdate(ctx,
		ownedBy(id, owner),
		bson.M{
			"$inc":  bson.M{"balance": entryDoc.Amount, "version": int64(1)},
			"$push": bson.M{"operations": entryDoc},
			"$set":  bson.M{"lastOperation": entryDoc, "updatedAt": entry.Date},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromCardDocument(doc)
}

// Update applies patch with a compare-and-swap on the document version.
func (r *mongoCardRepository) Update(ctx context.Context, id uuid.UUID, owner string, patch model.CardPatch, now time.Time) (*model.Card, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		card, err := r.FindByIDAndOwner(ctx, id, owner)
		if err != nil {
			return nil, err
		}
		version := card.Version
		if err := patch.ApplyTo(card, now); err != nil {
			return nil, err
		}
		card.Version = version + 1

		doc, err := toCardDocument(card)
		if err != nil {
			return nil, err
		}
		filter := ownedBy(id, owner)
		filter["version"] = version
		res, err := r.cards.ReplaceOne(ctx, filter, doc)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 1 {
			return card, nil
		}
	}
	return nil, ErrConflict
}

// Delete removes the card document, history included.
func (r *mongoCardRepository) Delete(ctx context.Context, id uuid.UUID, owner string) error {
	res, err := r.cards.DeleteOne(ctx, ownedBy(id, owner))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func ownedBy(id uuid.UUID, owner string) bson.M {
	return bson.M{"_id": id.String(), "owner": owner}
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode decimal %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode decimal %s: %w", v, err)
	}
	return d, nil
}

func toEntryDocument(e model.LedgerEntry) (entryDocument, error) {
	amount, err := toDecimal128(e.Amount)
	if err != nil {
		return entryDocument{}, err
	}
	return entryDocument{Amount: amount, Description: e.Description, Date: e.Date}, nil
}

func fromEntryDocument(d entryDocument) (model.LedgerEntry, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	return model.LedgerEntry{Amount: amount, Description: d.Description, Date: d.Date}, nil
}

func toCardDocument(card *model.Card) (cardDocument, error) {
	balance, err := toDecimal128(card.Balance)
	if err != nil {
		return cardDocument{}, err
	}
	last, err := toEntryDocument(card.LastOperation)
	if err != nil {
		return cardDocument{}, err
	}
	ops := make([]entryDocument, len(card.Operations))
	for i, op := range card.Operations {
		if ops[i], err = toEntryDocument(op); err != nil {
			return cardDocument{}, err
		}
	}
	return cardDocument{
		ID:            card.ID.String(),
		Owner:         card.Owner,
		Name:          card.Name,
		Color:         card.Color,
		Balance:       balance,
		LastOperation: last,
		Operations:    ops,
		Order:         card.Order,
		Version:       card.Version,
		CreatedAt:     card.CreatedAt,
		UpdatedAt:     card.UpdatedAt,
	}, nil
}

func fromCardDocument(doc cardDocument) (*model.Card, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("decode card id %q: %w", doc.ID, err)
	}
	balance, err := fromDecimal128(doc.Balance)
	if err != nil {
		return nil, err
	}
	last, err := fromEntryDocument(doc.LastOperation)
	if err != nil {
		return nil, err
	}
	ops := make([]model.LedgerEntry, len(doc.Operations))
	for i, op := range doc.Operations {
		if ops[i], err = fromEntryDocument(op); err != nil {
			return nil, err
		}
	}
	return &model.Card{
		ID:            id,
		Owner:         doc.Owner,
		Name:          doc.Name,
		Color:         doc.Color,
		Balance:       balance,
		LastOperation: last,
		Operations:    ops,
		Order:         doc.Order,
		Version:       doc.Version,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}, nil
}
