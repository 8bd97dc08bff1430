package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cardledger/internal/config"
	"cardledger/internal/logging"
	"cardledger/internal/repository"
	"cardledger/internal/service"
)

func main() {
	if err := newSeedCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type seedOptions struct {
	owner string
	file  string
}

// newSeedCommand creates the seed command.
func newSeedCommand() *cobra.Command {
	opts := &seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create cards from a YAML fixture",
		Long: `Create cards for one owner from a YAML fixture and post their transactions.

Cards go through the same services as the HTTP API, so balances and
histories are built by regular postings. The store is picked from the
usual environment (STORE_DRIVER, MYSQL_DSN, MONGO_URI, ...).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), config.Load(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.owner, "owner", "", "owner id the cards are created for (required)")
	cmd.Flags().StringVar(&opts.file, "file", "cards.yaml", "fixture path or http(s) URL")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func runSeed(ctx context.Context, cfg *config.Config, opts *seedOptions) error {
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	src, err := openFixture(opts.file)
	if err != nil {
		return err
	}
	fixture, err := parseFixture(src)
	src.Close()
	if err != nil {
		return err
	}
	logger.Info("fixture loaded", zap.String("source", opts.file), zap.Int("cards", len(fixture.Cards)))

	stores, err := repository.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close(context.Background()) }()

	cards := service.NewCardService(stores.Cards, nil, 0, logger)
	postings := service.NewPostingService(stores.Cards, stores.PostingLogs, nil, 0, logger)
	defer postings.Close()

	created, posted, err := seedCards(ctx, cards, postings, opts.owner, fixture)
	if err != nil {
		return err
	}

	logger.Info("seed completed",
		zap.String("owner", opts.owner),
		zap.Int("cards_created", created),
		zap.Int("transactions_posted", posted),
	)
	return nil
}

// seedCards creates every fixture card and posts its transactions in order.
func seedCards(ctx context.Context, cards service.CardService, postings service.PostingService, owner string, fixture *Fixture) (created int, posted int, err error) {
	for _, fc := range fixture.Cards {
		balance, err := parseAmount(fc.Balance)
		if err != nil {
			return created, posted, fmt.Errorf("card %s: %w", fc.Name, err)
		}

		card, err := cards.Create(ctx, owner, service.CreateCardInput{
			Name:    fc.Name,
			Color:   fc.Color,
			Balance: balance,
			Order:   fc.Order,
		})
		if err != nil {
			return created, posted, fmt.Errorf("error creating card %s: %w", fc.Name, err)
		}
		created++

		if err := postTransactions(ctx, postings, owner, card.ID, fc.Transactions); err != nil {
			return created, posted, fmt.Errorf("card %s: %w", fc.Name, err)
		}
		posted += len(fc.Transactions)
	}
	return created, posted, nil
}

func postTransactions(ctx context.Context, postings service.PostingService, owner string, id uuid.UUID, txs []FixtureTransaction) error {
	for _, tx := range txs {
		amount, err := decimal.NewFromString(tx.Amount)
		if err != nil {
			return err
		}
		if _, err := postings.Post(ctx, owner, id, amount, tx.Description); err != nil {
			return fmt.Errorf("error posting %q: %w", tx.Description, err)
		}
	}
	return nil
}
