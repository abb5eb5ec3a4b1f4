package model

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PortfolioRow is a row of the portfolios table.
type PortfolioRow struct {
	ID        string
	AccountID string
	Name      string
	Version   int64
	CreatedAt time.Time
}

func InsertPortfolio(ctx context.Context, db DBTX, p PortfolioRow) error {
	query := `
	INSERT INTO portfolios (id, account_id, name, version, created_at)
	VALUES (?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, p.ID, p.AccountID, p.Name, p.Version, formatTime(p.CreatedAt))
	return err
}

func GetPortfolioRow(ctx context.Context, db DBTX, id string) (*PortfolioRow, error) {
	query := `SELECT id, account_id, name, version, created_at FROM portfolios WHERE id = ?`
	var p PortfolioRow
	var createdAt string
	err := db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.AccountID, &p.Name, &p.Version, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPortfolioRowsByAccount lists an account's portfolios ordered by name.
func GetPortfolioRowsByAccount(ctx context.Context, db DBTX, accountID string) ([]PortfolioRow, error) {
	query := `SELECT id, account_id, name, version, created_at FROM portfolios WHERE account_id = ? ORDER BY name ASC`
	rows, err := db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PortfolioRow
	for rows.Next() {
		var p PortfolioRow
		var createdAt string
		if err := rows.Scan(&p.ID, &p.AccountID, &p.Name, &p.Version, &createdAt); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPortfolioIDsByAccount lists an account's portfolio IDs in creation order.
func GetPortfolioIDsByAccount(ctx context.Context, db DBTX, accountID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM portfolios WHERE account_id = ? ORDER BY created_at ASC, id ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func CountPortfoliosByAccount(ctx context.Context, db DBTX, accountID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM portfolios WHERE account_id = ?`, accountID).Scan(&n)
	return n, err
}

func PortfolioNameTaken(ctx context.Context, db DBTX, accountID, name, exceptID string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM portfolios WHERE account_id = ? AND name = ? AND id <> ?`,
		accountID, name, exceptID).Scan(&n)
	return n > 0, err
}

// BumpPortfolioVersion increments the version only if it still equals
// expected. It reports whether the row was updated.
func BumpPortfolioVersion(ctx context.Context, db DBTX, id string, expected int64) (bool, error) {
	res, err := db.ExecContext(ctx, `UPDATE portfolios SET version = version + 1 WHERE id = ? AND version = ?`, id, expected)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func RenamePortfolio(ctx context.Context, db DBTX, id, name string) (int64, error) {
	res, err := db.ExecContext(ctx, `UPDATE portfolios SET name = ?, version = version + 1 WHERE id = ?`, name, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func DeletePortfolio(ctx context.Context, db DBTX, id string) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM portfolios WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
