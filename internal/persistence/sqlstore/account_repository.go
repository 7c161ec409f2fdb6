package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/slotbooking/internal/persistence"
)

type accountRow struct {
	Email               string `db:"email"`
	DisplayName         string `db:"display_name"`
	Chances             int    `db:"chances"`
	LastChanceUpdatedAt int64  `db:"last_chance_updated_at"`
	CreatedAt           int64  `db:"created_at"`
}

func (r accountRow) record() persistence.Account {
	return persistence.Account{
		Email:               r.Email,
		DisplayName:         r.DisplayName,
		Chances:             r.Chances,
		LastChanceUpdatedAt: fromMillis(r.LastChanceUpdatedAt),
		CreatedAt:           fromMillis(r.CreatedAt),
	}
}

type accountRepository struct {
	q sqlx.ExtContext
}

func (r accountRepository) EnsureAccount(ctx context.Context, account persistence.Account) (persistence.Account, error) {
	query := r.q.Rebind(`INSERT INTO accounts (email, display_name, chances, last_chance_updated_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (email) DO NOTHING`)
	if _, err := r.q.ExecContext(ctx, query,
		account.Email,
		account.DisplayName,
		account.Chances,
		toMillis(account.LastChanceUpdatedAt),
		toMillis(account.CreatedAt),
	); err != nil {
		return persistence.Account{}, fmt.Errorf("ensure account: %w", NewErrorMapper().MapError(err))
	}
	return r.GetAccount(ctx, account.Email)
}

func (r accountRepository) GetAccount(ctx context.Context, email string) (persistence.Account, error) {
	var row accountRow
	query := r.q.Rebind(`SELECT email, display_name, chances, last_chance_updated_at, created_at
		FROM accounts WHERE email = ?`)
	if err := sqlx.GetContext(ctx, r.q, &row, query, email); err != nil {
		return persistence.Account{}, fmt.Errorf("get account: %w", NewErrorMapper().MapError(err))
	}
	return row.record(), nil
}

func (r accountRepository) AdjustChances(ctx context.Context, emails []string, delta int, at time.Time) (int64, error) {
	if len(emails) == 0 || delta == 0 {
		return 0, nil
	}

	// The NOT EXISTS guard makes a debit all-or-nothing inside one statement.
	query, args, err := bind(r.q, `UPDATE accounts
		SET chances = chances + ?, last_chance_updated_at = ?
		WHERE email IN (?)
		AND NOT EXISTS (SELECT 1 FROM accounts WHERE email IN (?) AND chances + ? < 0)`,
		delta, toMillis(at), emails, emails, delta)
	if err != nil {
		return 0, fmt.Errorf("build chance adjustment: %w", err)
	}

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("adjust chances: %w", NewErrorMapper().MapError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("adjust chances: %w", NewErrorMapper().MapError(err))
	}

	if affected == 0 && delta < 0 {
		query, args, err := bind(r.q, `SELECT COUNT(*) FROM accounts WHERE email IN (?)`, emails)
		if err != nil {
			return 0, fmt.Errorf("build account count: %w", err)
		}
		var existing int
		if err := sqlx.GetContext(ctx, r.q, &existing, query, args...); err != nil {
			return 0, fmt.Errorf("count accounts: %w", NewErrorMapper().MapError(err))
		}
		if existing > 0 {
			return 0, fmt.Errorf("adjust chances by %d: %w", delta, persistence.ErrInsufficient)
		}
	}
	return affected, nil
}

func (r accountRepository) ResetChances(ctx context.Context, baseline int, at time.Time) (int64, error) {
	query := r.q.Rebind(`UPDATE accounts SET chances = ?, last_chance_updated_at = ?`)
	res, err := r.q.ExecContext(ctx, query, baseline, toMillis(at))
	if err != nil {
		return 0, fmt.Errorf("reset chances: %w", NewErrorMapper().MapError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset chances: %w", NewErrorMapper().MapError(err))
	}
	return affected, nil
}
