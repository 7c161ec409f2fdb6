package application

import (
	"errors"
	"fmt"

	"github.com/example/slotbooking/internal/persistence"
)

var (
	// ErrUnauthorized is returned when the acting principal may not touch the resource.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when a slot, invitation, game, or account does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when the requested window is already held or booked.
	ErrConflict = errors.New("application: slot window already taken")
	// ErrInvalidTransition is returned when the current state forbids the change.
	ErrInvalidTransition = errors.New("application: invalid status transition")
	// ErrInsufficientChances is returned when a debit would leave a negative balance.
	ErrInsufficientChances = errors.New("application: insufficient chances")
	// ErrTransientStore is returned when the store is temporarily unavailable; callers may retry.
	ErrTransientStore = errors.New("application: store temporarily unavailable")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %d field(s)", len(v.FieldErrors))
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// mapStoreError translates persistence sentinels into the application taxonomy.
// Errors that already belong to the application layer pass through untouched.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return err
	}
	for _, own := range []error{ErrUnauthorized, ErrNotFound, ErrConflict, ErrInvalidTransition, ErrInsufficientChances, ErrTransientStore} {
		if errors.Is(err, own) {
			return err
		}
	}

	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, persistence.ErrConflict), errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, persistence.ErrStale):
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	case errors.Is(err, persistence.ErrInsufficient):
		return fmt.Errorf("%w: %v", ErrInsufficientChances, err)
	case errors.Is(err, persistence.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	return err
}
