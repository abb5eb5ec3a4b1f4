package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/username/dmtrade/backend/src/models"
)

func InsertAccount(ctx context.Context, db DBTX, a *models.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	query := `
	INSERT INTO accounts (id, email, first_name, last_name, created_at)
	VALUES (?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, a.ID, a.Email, a.FirstName, a.LastName, formatTime(a.CreatedAt))
	return err
}

func GetAccountByID(ctx context.Context, db DBTX, id string) (*models.Account, error) {
	return scanAccount(ctx, db, `SELECT id, email, first_name, last_name, created_at FROM accounts WHERE id = ?`, id)
}

func GetAccountByEmail(ctx context.Context, db DBTX, email string) (*models.Account, error) {
	return scanAccount(ctx, db, `SELECT id, email, first_name, last_name, created_at FROM accounts WHERE email = ?`, email)
}

func scanAccount(ctx context.Context, db DBTX, query string, arg any) (*models.Account, error) {
	var a models.Account
	var createdAt string
	err := db.QueryRowContext(ctx, query, arg).Scan(&a.ID, &a.Email, &a.FirstName, &a.LastName, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	ids, err := GetPortfolioIDsByAccount(ctx, db, a.ID)
	if err != nil {
		return nil, err
	}
	a.PortfolioIDs = ids
	return &a, nil
}

// DeleteAccount removes the account; portfolios and trades go with it through
// ON DELETE CASCADE.
func DeleteAccount(ctx context.Context, db DBTX, id string) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func AccountExists(ctx context.Context, db DBTX, id string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE id = ?`, id).Scan(&n)
	return n > 0, err
}
