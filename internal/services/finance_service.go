package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"moneybook/internal/amqp"
	"moneybook/internal/core"
	"moneybook/internal/docstore"
	"moneybook/internal/ledger"
	"moneybook/internal/log"

	"golang.org/x/sync/errgroup"
)

var ErrInvalidPeriod = errors.New("invalid report period")

// ChangePublisher announces document changes to other processes.
type ChangePublisher interface {
	PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error
}

// Summary is the dashboard view of one month.
type Summary struct {
	TotalBalance int64            `json:"totalBalance"`
	Income       int64            `json:"income"`
	Expense      int64            `json:"expense"`
	Recent       []core.DateGroup `json:"recent"`
	Wallets      []core.Wallet    `json:"wallets"`
}

// FinanceService orchestrates wallet, category and transaction operations
// for one store. Transaction writes always go through the ledger.
type FinanceService struct {
	store     docstore.Store
	ledger    ledger.BalanceLedger
	publisher ChangePublisher
	loc       *time.Location
}

// NewFinanceService wires the service. publisher may be nil, in which case
// no change events are sent.
func NewFinanceService(store docstore.Store, l ledger.BalanceLedger, publisher ChangePublisher, loc *time.Location) *FinanceService {
	if loc == nil {
		loc = time.UTC
	}
	return &FinanceService{store: store, ledger: l, publisher: publisher, loc: loc}
}

func (s *FinanceService) Location() *time.Location {
	return s.loc
}

func list[T any](ctx context.Context, store docstore.Store, userID, collection string, order docstore.Order) ([]T, error) {
	docs, err := store.List(ctx, docstore.UserCollection(userID, collection), order)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return docstore.Decode[T](docs)
}

func (s *FinanceService) Wallets(ctx context.Context, userID string) ([]core.Wallet, error) {
	return list[core.Wallet](ctx, s.store, userID, docstore.Wallets, docstore.ByCreatedAt)
}

func (s *FinanceService) CreateWallet(ctx context.Context, userID string, in core.WalletInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	id, err := s.store.Create(ctx, docstore.UserCollection(userID, docstore.Wallets), in.Wallet())
	if err != nil {
		return "", fmt.Errorf("create wallet: %w", err)
	}
	s.publish(ctx, userID, docstore.Wallets, id, amqp.OpCreated)
	return id, nil
}

// UpdateWallet edits a wallet's descriptive fields. The balance is never
// part of a wallet patch.
func (s *FinanceService) UpdateWallet(ctx context.Context, userID, id string, patch core.WalletPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	if err := s.store.Update(ctx, docstore.UserDoc(userID, docstore.Wallets, id), patch.Fields()); err != nil {
		return fmt.Errorf("update wallet %s: %w", id, err)
	}
	s.publish(ctx, userID, docstore.Wallets, id, amqp.OpUpdated)
	return nil
}

// DeleteWallet removes only the wallet. Its transactions stay and show
// an unknown wallet from then on.
func (s *FinanceService) DeleteWallet(ctx context.Context, userID, id string) error {
	if err := s.store.Delete(ctx, docstore.UserDoc(userID, docstore.Wallets, id)); err != nil {
		return fmt.Errorf("delete wallet %s: %w", id, err)
	}
	s.publish(ctx, userID, docstore.Wallets, id, amqp.OpDeleted)
	return nil
}

func (s *FinanceService) Categories(ctx context.Context, userID string) ([]core.Category, error) {
	return list[core.Category](ctx, s.store, userID, docstore.Categories, docstore.ByCreatedAt)
}

func (s *FinanceService) CreateCategory(ctx context.Context, userID string, in core.CategoryInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	id, err := s.store.Create(ctx, docstore.UserCollection(userID, docstore.Categories), in.Category())
	if err != nil {
		return "", fmt.Errorf("create category: %w", err)
	}
	s.publish(ctx, userID, docstore.Categories, id, amqp.OpCreated)
	return id, nil
}

func (s *FinanceService) UpdateCategory(ctx context.Context, userID, id string, patch core.CategoryPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	if err := s.store.Update(ctx, docstore.UserDoc(userID, docstore.Categories, id), patch.Fields()); err != nil {
		return fmt.Errorf("update category %s: %w", id, err)
	}
	s.publish(ctx, userID, docstore.Categories, id, amqp.OpUpdated)
	return nil
}

func (s *FinanceService) DeleteCategory(ctx context.Context, userID, id string) error {
	if err := s.store.Delete(ctx, docstore.UserDoc(userID, docstore.Categories, id)); err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	s.publish(ctx, userID, docstore.Categories, id, amqp.OpDeleted)
	return nil
}

// Transactions lists every transaction, newest date first.
func (s *FinanceService) Transactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	return list[core.Transaction](ctx, s.store, userID, docstore.Transactions, docstore.ByDateDesc)
}

// MonthTransactions lists the transactions dated within year/month in the
// service's location.
func (s *FinanceService) MonthTransactions(ctx context.Context, userID string, year, month int) ([]core.Transaction, error) {
	start, end, err := s.monthRange(year, month)
	if err != nil {
		return nil, err
	}
	txs, err := s.Transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return core.InRange(txs, start, end), nil
}

func (s *FinanceService) Transaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	doc, err := s.store.Get(ctx, docstore.UserDoc(userID, docstore.Transactions, id))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	var tx core.Transaction
	if err := doc.DataTo(&tx); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (s *FinanceService) CreateTransaction(ctx context.Context, userID string, in core.TransactionInput) (string, error) {
	id, err := s.ledger.RecordCreation(ctx, userID, in)
	if err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "Transaction created",
		log.FieldComponent, log.ComponentFinance,
		log.FieldUserID, userID,
		log.FieldDocumentID, id,
		log.FieldTxType, in.Type,
		log.FieldAmount, in.Amount)
	s.publish(ctx, userID, docstore.Transactions, id, amqp.OpCreated)
	return id, nil
}

// UpdateTransaction loads the current state of the transaction and hands
// it to the ledger as the previous snapshot.
func (s *FinanceService) UpdateTransaction(ctx context.Context, userID, id string, patch core.TransactionPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return nil
	}
	previous, err := s.Transaction(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.ledger.RecordAmendment(ctx, userID, id, patch, previous); err != nil {
		return err
	}
	s.publish(ctx, userID, docstore.Transactions, id, amqp.OpUpdated)
	return nil
}

func (s *FinanceService) DeleteTransaction(ctx context.Context, userID, id string) error {
	snapshot, err := s.Transaction(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.ledger.RecordDeletion(ctx, userID, id, snapshot); err != nil {
		return err
	}
	s.publish(ctx, userID, docstore.Transactions, id, amqp.OpDeleted)
	return nil
}

func (s *FinanceService) monthRange(year, month int) (time.Time, time.Time, error) {
	if month < 1 || month > 12 || year < 1970 || year > 9999 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %04d-%02d", ErrInvalidPeriod, year, month)
	}
	start, end := core.MonthRange(time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.loc))
	return start, end, nil
}

// MonthReport builds the report for one month. typ selects which side the
// category breakdown covers; empty means expense.
func (s *FinanceService) MonthReport(ctx context.Context, userID string, year, month int, typ core.TransactionType) (core.MonthReport, error) {
	if typ == "" {
		typ = core.Expense
	}
	if err := typ.Validate(); err != nil {
		return core.MonthReport{}, err
	}
	start, end, err := s.monthRange(year, month)
	if err != nil {
		return core.MonthReport{}, err
	}

	var (
		txs  []core.Transaction
		cats []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.Transactions(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		cats, err = s.Categories(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.MonthReport{}, err
	}

	return core.BuildMonthReport(year, month, core.InRange(txs, start, end), cats, typ), nil
}

// Summary is the dashboard: total balance over all wallets, the month's
// totals and its five most recent days of transactions.
func (s *FinanceService) Summary(ctx context.Context, userID string, year, month int) (Summary, error) {
	start, end, err := s.monthRange(year, month)
	if err != nil {
		return Summary{}, err
	}

	var (
		txs     []core.Transaction
		wallets []core.Wallet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.Transactions(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		wallets, err = s.Wallets(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	inMonth := core.InRange(txs, start, end)
	totals := core.CalculateTotals(inMonth)
	groups := core.GroupByDate(inMonth, s.loc)
	if len(groups) > 5 {
		groups = groups[:5]
	}
	return Summary{
		TotalBalance: core.TotalBalance(wallets),
		Income:       totals.Income,
		Expense:      totals.Expense,
		Recent:       groups,
		Wallets:      wallets,
	}, nil
}

// Audit reports wallets whose stored balance disagrees with their transactions.
func (s *FinanceService) Audit(ctx context.Context, userID string) ([]ledger.Drift, error) {
	return ledger.Audit(ctx, s.store, userID)
}

func (s *FinanceService) publish(ctx context.Context, userID, collection, id, op string) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewChangeMessage(userID, collection, id, op)
	if err := s.publisher.PublishChange(ctx, msg); err != nil {
		// the write already succeeded
		slog.ErrorContext(ctx, "Failed to publish change message",
			log.FieldComponent, log.ComponentFinance,
			log.FieldUserID, userID,
			log.FieldCollection, collection,
			log.FieldDocumentID, id,
			log.FieldOperation, op,
			log.FieldError, err)
	}
}
