package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/username/dmtrade/backend/src/ledger"
	"github.com/username/dmtrade/backend/src/logger"
	"github.com/username/dmtrade/backend/src/model"
	"github.com/username/dmtrade/backend/src/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore keeps accounts, portfolios and trades in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func (s *SQLiteStore) CreateAccount(ctx context.Context, a *models.Account) error {
	if err := model.InsertAccount(ctx, s.db, a); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, a.Email)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	a.PortfolioIDs = []string{}
	return nil
}

func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	a, err := model.GetAccountByID(ctx, s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	return a, err
}

func (s *SQLiteStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	a, err := model.GetAccountByEmail(ctx, s.db, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, email)
	}
	return a, err
}

func (s *SQLiteStore) DeleteAccount(ctx context.Context, id string) error {
	n, err := model.DeleteAccount(ctx, s.db, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) CreatePortfolio(ctx context.Context, p *ledger.Portfolio) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	exists, err := model.AccountExists(ctx, tx, p.AccountID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: account %s", ErrNotFound, p.AccountID)
	}
	taken, err := model.PortfolioNameTaken(ctx, tx, p.AccountID, p.Name, p.ID)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: %q", ErrDuplicateName, p.Name)
	}

	row := model.PortfolioRow{ID: p.ID, AccountID: p.AccountID, Name: p.Name, Version: p.Version, CreatedAt: p.CreatedAt}
	if err := model.InsertPortfolio(ctx, tx, row); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ErrDuplicateName, p.Name)
		}
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	if err := model.UpsertTrades(ctx, tx, p.ID, p.Trades()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadPortfolio(ctx context.Context, id string) (*ledger.Portfolio, error) {
	row, err := model.GetPortfolioRow(ctx, s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: portfolio %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return s.restore(ctx, *row)
}

func (s *SQLiteStore) restore(ctx context.Context, row model.PortfolioRow) (*ledger.Portfolio, error) {
	trades, err := model.GetTradesByPortfolio(ctx, s.db, row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades of %s: %w", row.ID, err)
	}
	return ledger.Restore(row.ID, row.AccountID, row.Name, row.Version, row.CreatedAt, trades)
}

func (s *SQLiteStore) SavePortfolio(ctx context.Context, p *ledger.Portfolio) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ok, err := model.BumpPortfolioVersion(ctx, tx, p.ID, p.Version)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := model.GetPortfolioRow(ctx, tx, p.ID); errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: portfolio %s", ErrNotFound, p.ID)
		}
		logger.FromContext(ctx).Warn("Stale portfolio save rejected", "portfolioID", p.ID, "version", p.Version)
		return fmt.Errorf("%w: portfolio %s changed since version %d", ledger.ErrConcurrentModification, p.ID, p.Version)
	}
	if err := model.UpsertTrades(ctx, tx, p.ID, p.Trades()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit portfolio %s: %w", p.ID, err)
	}
	p.Version++
	return nil
}

func (s *SQLiteStore) ListPortfolios(ctx context.Context, accountID string) ([]*ledger.Portfolio, error) {
	rows, err := model.GetPortfolioRowsByAccount(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]*ledger.Portfolio, 0, len(rows))
	for _, row := range rows {
		p, err := s.restore(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *SQLiteStore) CountPortfolios(ctx context.Context, accountID string) (int, error) {
	return model.CountPortfoliosByAccount(ctx, s.db, accountID)
}

func (s *SQLiteStore) RenamePortfolio(ctx context.Context, id, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row, err := model.GetPortfolioRow(ctx, tx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: portfolio %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	taken, err := model.PortfolioNameTaken(ctx, tx, row.AccountID, name, id)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	if _, err := model.RenamePortfolio(ctx, tx, id, name); err != nil {
		return fmt.Errorf("failed to rename portfolio: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeletePortfolio(ctx context.Context, id string) error {
	n, err := model.DeletePortfolio(ctx, s.db, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: portfolio %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) HeldSymbols(ctx context.Context) ([]string, error) {
	return model.GetHeldSymbols(ctx, s.db)
}
