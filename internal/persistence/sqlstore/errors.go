package sqlstore

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/example/slotbooking/internal/persistence"
)

const (
	slotWindowIndex       = "slots_active_window_idx"
	activeInvitationIndex = "invitations_active_recipient_idx"
	chancesCheck          = "accounts_chances_non_negative"
)

// ErrorMapper maps driver errors onto persistence sentinels.
type ErrorMapper struct{}

// NewErrorMapper creates a new error mapper.
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{}
}

// MapError keeps the driver message but makes the error match a persistence
// sentinel through errors.Is.
func (em *ErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}
	if isPersistenceSentinel(err) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return em.mapPostgres(pqErr)
	}
	return em.mapSQLite(err)
}

func (em *ErrorMapper) mapPostgres(err *pq.Error) error {
	switch {
	case err.Code == "23505":
		if err.Constraint == slotWindowIndex || err.Constraint == activeInvitationIndex {
			return fmt.Errorf("%w: %v", persistence.ErrConflict, err)
		}
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case err.Code == "23503":
		return fmt.Errorf("%w: %v", persistence.ErrNotFound, err)
	case err.Code == "23514" && err.Constraint == chancesCheck:
		return fmt.Errorf("%w: %v", persistence.ErrInsufficient, err)
	case err.Code == "40001" || err.Code == "40P01" || err.Code == "55P03":
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	case err.Code.Class() == "08" || err.Code.Class() == "57":
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}
	return err
}

func (em *ErrorMapper) mapSQLite(err error) error {
	msg := err.Error()
	switch {
	case containsAny(msg, "UNIQUE constraint failed: slots.game_id", "UNIQUE constraint failed: invitations.slot_id"):
		return fmt.Errorf("%w: %v", persistence.ErrConflict, err)
	case containsAny(msg, "UNIQUE constraint failed", "PRIMARY KEY"):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case containsAny(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrNotFound, err)
	case containsAny(msg, "CHECK constraint failed: "+chancesCheck):
		return fmt.Errorf("%w: %v", persistence.ErrInsufficient, err)
	case containsAny(msg, "database is locked", "database table is locked", "SQLITE_BUSY", "database is busy"):
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}
	return err
}

func isPersistenceSentinel(err error) bool {
	for _, target := range []error{
		persistence.ErrNotFound,
		persistence.ErrDuplicate,
		persistence.ErrConflict,
		persistence.ErrStale,
		persistence.ErrInsufficient,
		persistence.ErrUnavailable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func containsAny(s string, substrings ...string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
