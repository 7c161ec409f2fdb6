package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/slotbooking/internal/persistence"
)

// Ledger tracks each user's chances. Every adjustment is a single bulk
// statement so it cannot interleave with the daily reset.
type Ledger struct {
	repos persistence.Repositories
	opts  Options
}

// NewLedger constructs a ledger over repos.
func NewLedger(repos persistence.Repositories, opts Options) *Ledger {
	return &Ledger{repos: repos, opts: opts.withDefaults()}
}

// Adjust adds delta to every listed account. Debits are all-or-nothing and
// fail with ErrInsufficientChances if any balance would go negative, or
// ErrNotFound if an account is missing; run them inside a transaction.
// Refunds skip missing accounts.
func (l *Ledger) Adjust(ctx context.Context, emails []string, delta int) error {
	unique := uniqueEmails(emails)
	if len(unique) == 0 || delta == 0 {
		return nil
	}

	affected, err := l.repos.Accounts().AdjustChances(ctx, unique, delta, l.opts.Now())
	if err != nil {
		return mapStoreError(err)
	}
	if delta < 0 && affected != int64(len(unique)) {
		return fmt.Errorf("debit %d accounts, %d found: %w", len(unique), affected, ErrNotFound)
	}
	if delta > 0 && affected != int64(len(unique)) {
		l.opts.Logger.WarnContext(ctx, "refund skipped missing accounts", "requested", len(unique), "applied", affected)
	}
	return nil
}

// Get returns the account for email.
func (l *Ledger) Get(ctx context.Context, email string) (Account, error) {
	account, err := l.repos.Accounts().GetAccount(ctx, normalizeEmail(email))
	if err != nil {
		return Account{}, mapStoreError(err)
	}
	return account, nil
}

// Register creates the account with the baseline balance if it does not exist.
func (l *Ledger) Register(ctx context.Context, email, displayName string) (Account, error) {
	email = normalizeEmail(email)
	if email == "" {
		vErr := &ValidationError{}
		vErr.add("email", "email is required")
		return Account{}, vErr
	}
	now := l.opts.Now()
	account, err := l.repos.Accounts().EnsureAccount(ctx, Account{
		Email:               email,
		DisplayName:         strings.TrimSpace(displayName),
		Chances:             l.opts.ChanceBaseline,
		LastChanceUpdatedAt: now,
		CreatedAt:           now,
	})
	if err != nil {
		return Account{}, mapStoreError(err)
	}
	return account, nil
}

// Reset sets every account back to the baseline. Running it twice in a row
// leaves the same balances.
func (l *Ledger) Reset(ctx context.Context) (int64, error) {
	affected, err := l.repos.Accounts().ResetChances(ctx, l.opts.ChanceBaseline, l.opts.Now())
	if err != nil {
		return 0, mapStoreError(err)
	}
	return affected, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func uniqueEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, email := range emails {
		email = normalizeEmail(email)
		if email == "" {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out
}
