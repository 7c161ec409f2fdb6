package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/slotbooking/internal/persistence"
)

const slotColumns = `slot_id, game_id, slot_day, start_time, end_time, status, people_added,
	people_accepted, held_by, is_active, created_at, expires_at, updated_at`

type slotRow struct {
	ID             string `db:"slot_id"`
	GameID         string `db:"game_id"`
	Day            string `db:"slot_day"`
	StartTime      string `db:"start_time"`
	EndTime        string `db:"end_time"`
	Status         string `db:"status"`
	PeopleAdded    int    `db:"people_added"`
	PeopleAccepted int    `db:"people_accepted"`
	HeldBy         string `db:"held_by"`
	IsActive       int    `db:"is_active"`
	CreatedAt      int64  `db:"created_at"`
	ExpiresAt      int64  `db:"expires_at"`
	UpdatedAt      int64  `db:"updated_at"`
}

func (r slotRow) record() persistence.Slot {
	return persistence.Slot{
		ID:             r.ID,
		GameID:         r.GameID,
		Day:            r.Day,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		Status:         persistence.SlotStatus(r.Status),
		PeopleAdded:    r.PeopleAdded,
		PeopleAccepted: r.PeopleAccepted,
		HeldBy:         r.HeldBy,
		IsActive:       r.IsActive != 0,
		CreatedAt:      fromMillis(r.CreatedAt),
		ExpiresAt:      fromMillis(r.ExpiresAt),
		UpdatedAt:      fromMillis(r.UpdatedAt),
	}
}

type slotRepository struct {
	q sqlx.ExtContext
}

func (r slotRepository) CreateSlot(ctx context.Context, slot persistence.Slot) error {
	const query = `INSERT INTO slots (` + slotColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.q.ExecContext(ctx, r.q.Rebind(query),
		slot.ID,
		slot.GameID,
		slot.Day,
		slot.StartTime,
		slot.EndTime,
		string(slot.Status),
		slot.PeopleAdded,
		slot.PeopleAccepted,
		slot.HeldBy,
		boolToInt(slot.IsActive),
		toMillis(slot.CreatedAt),
		toMillis(slot.ExpiresAt),
		toMillis(slot.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert slot: %w", NewErrorMapper().MapError(err))
	}
	return nil
}

func (r slotRepository) GetSlot(ctx context.Context, id string) (persistence.Slot, error) {
	var row slotRow
	query := r.q.Rebind(`SELECT ` + slotColumns + ` FROM slots WHERE slot_id = ?`)
	if err := sqlx.GetContext(ctx, r.q, &row, query, id); err != nil {
		return persistence.Slot{}, fmt.Errorf("get slot: %w", NewErrorMapper().MapError(err))
	}
	return row.record(), nil
}

func (r slotRepository) ListSlots(ctx context.Context, filter persistence.SlotFilter) ([]persistence.Slot, error) {
	var where whereBuilder
	if filter.GameID != "" {
		where.add("game_id = ?", filter.GameID)
	}
	if filter.HeldBy != "" {
		where.add("held_by = ?", filter.HeldBy)
	}
	if filter.Member != "" {
		where.add(`(held_by = ? OR slot_id IN (
			SELECT slot_id FROM invitations WHERE recipient_email = ? AND status = 'accepted'))`,
			filter.Member, filter.Member)
	}
	if filter.Invitee != "" {
		where.add("slot_id IN (SELECT slot_id FROM invitations WHERE recipient_email = ?)", filter.Invitee)
	}
	if len(filter.Statuses) > 0 {
		where.add("status IN (?)", stringsOf(filter.Statuses))
	}
	if !filter.CreatedSince.IsZero() {
		where.add("created_at >= ?", toMillis(filter.CreatedSince))
	}

	query, args, err := bind(r.q, `SELECT `+slotColumns+` FROM slots`+where.String()+
		` ORDER BY start_time, created_at`, where.args...)
	if err != nil {
		return nil, fmt.Errorf("build slot query: %w", err)
	}
	return r.selectSlots(ctx, query, args...)
}

func (r slotRepository) ListResolvable(ctx context.Context, now time.Time, after persistence.ResolvableCursor, limit int) ([]persistence.Slot, error) {
	if limit <= 0 {
		limit = 100
	}
	afterMillis := toMillis(after.ExpiresAt)
	query := r.q.Rebind(`SELECT ` + slotColumns + ` FROM slots
		WHERE status = ? AND expires_at <= ?
		  AND (expires_at > ? OR (expires_at = ? AND slot_id > ?))
		ORDER BY expires_at, slot_id
		LIMIT ?`)
	return r.selectSlots(ctx, query, string(persistence.SlotStatusOnHold), toMillis(now),
		afterMillis, afterMillis, after.SlotID, limit)
}

func (r slotRepository) selectSlots(ctx context.Context, query string, args ...any) ([]persistence.Slot, error) {
	var rows []slotRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list slots: %w", NewErrorMapper().MapError(err))
	}
	slots := make([]persistence.Slot, 0, len(rows))
	for _, row := range rows {
		slots = append(slots, row.record())
	}
	return slots, nil
}

func (r slotRepository) UpdatePeopleAdded(ctx context.Context, id string, count int, at time.Time) error {
	query := r.q.Rebind(`UPDATE slots SET people_added = ?, updated_at = ? WHERE slot_id = ? AND status = ?`)
	return r.execGuarded(ctx, id, query, count, toMillis(at), id, string(persistence.SlotStatusOnHold))
}

func (r slotRepository) AddPeopleAccepted(ctx context.Context, id string, delta int, at time.Time) error {
	query := r.q.Rebind(`UPDATE slots SET people_accepted = people_accepted + ?, updated_at = ?
		WHERE slot_id = ? AND status = ?`)
	return r.execGuarded(ctx, id, query, delta, toMillis(at), id, string(persistence.SlotStatusOnHold))
}

func (r slotRepository) TransitionStatus(ctx context.Context, t persistence.SlotTransition) error {
	query := `UPDATE slots SET status = ?, is_active = ?, updated_at = ? WHERE slot_id = ? AND status = ?`
	args := []any{string(t.To), boolToInt(t.IsActive), toMillis(t.At), t.SlotID, string(t.From)}
	if t.ExpectedAccepted != nil {
		query += ` AND people_accepted = ?`
		args = append(args, *t.ExpectedAccepted)
	}
	return r.execGuarded(ctx, t.SlotID, r.q.Rebind(query), args...)
}

// execGuarded runs a conditional update and distinguishes a missing row from
// a guard mismatch.
func (r slotRepository) execGuarded(ctx context.Context, id, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update slot: %w", NewErrorMapper().MapError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update slot: %w", NewErrorMapper().MapError(err))
	}
	if affected > 0 {
		return nil
	}
	if _, err := r.GetSlot(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("update slot %s: %w", id, persistence.ErrStale)
}
