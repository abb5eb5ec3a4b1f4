// Package repository persists accounts and portfolios. Two adapters are
// provided: SQLite for durable storage and an in-memory store.
package repository

import (
	"context"
	"errors"

	"github.com/username/dmtrade/backend/src/ledger"
	"github.com/username/dmtrade/backend/src/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateName  = errors.New("portfolio name already in use")
	ErrDuplicateEmail = errors.New("email already registered")
)

type AccountRepository interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	// DeleteAccount removes the account with all of its portfolios.
	DeleteAccount(ctx context.Context, id string) error
}

type PortfolioRepository interface {
	CreatePortfolio(ctx context.Context, p *ledger.Portfolio) error
	LoadPortfolio(ctx context.Context, id string) (*ledger.Portfolio, error)
	// SavePortfolio stores the trades of p if p.Version still matches the
	// stored version, then increments p.Version. A mismatch returns
	// ledger.ErrConcurrentModification.
	SavePortfolio(ctx context.Context, p *ledger.Portfolio) error
	ListPortfolios(ctx context.Context, accountID string) ([]*ledger.Portfolio, error)
	CountPortfolios(ctx context.Context, accountID string) (int, error)
	RenamePortfolio(ctx context.Context, id, name string) error
	DeletePortfolio(ctx context.Context, id string) error
	// HeldSymbols lists every symbol with unsold shares in any portfolio.
	HeldSymbols(ctx context.Context) ([]string, error)
}

type Store interface {
	AccountRepository
	PortfolioRepository
}
