package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/phantom-eng/bytefood-web/internal/core/domain"
)

// Schema creates the table MySQLAdapter writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS cart_lines (
	cart_key   VARCHAR(128)   NOT NULL,
	position   INT            NOT NULL,
	name       VARCHAR(255)   NOT NULL,
	unit_price DECIMAL(12, 2) NOT NULL,
	updated_at TIMESTAMP      NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (cart_key, position)
) DEFAULT CHARSET = utf8mb4`

// MySQLAdapter keeps one row per cart entry, ordered by position.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create cart_lines: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) Load(ctx context.Context, key string) ([]domain.LineEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT name, unit_price
		FROM cart_lines WHERE cart_key = ?
		ORDER BY position`, key,
	)
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	defer rows.Close()

	var entries []domain.LineEntry
	for rows.Next() {
		var (
			name  string
			price decimal.Decimal
		)
		if err := rows.Scan(&name, &price); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		entries = append(entries, domain.LineEntry{Name: name, UnitPrice: price})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart: %w", err)
	}
	return entries, nil
}

// Save replaces the whole cart in one transaction.
func (m *MySQLAdapter) Save(ctx context.Context, key string, entries []domain.LineEntry) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_key = ?`, key); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}

	if len(entries) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO cart_lines (cart_key, position, name, unit_price, updated_at)
			VALUES (?, ?, ?, ?, NOW())`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for i, e := range entries {
			if _, err := stmt.ExecContext(ctx, key, i, e.Name, e.UnitPrice); err != nil {
				return fmt.Errorf("insert cart line: %w", err)
			}
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) Delete(ctx context.Context, key string) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_key = ?`, key); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
