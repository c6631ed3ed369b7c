// Package repository defines error types that are reused across the
// stores.  These sentinel values allow higher layers such as the seat
// service and the HTTP handlers to distinguish between failure scenarios.
// Typed errors carry details (conflicting seats, rejection reason) and
// unwrap to their sentinel so callers can use errors.Is.
package repository

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConflict is returned when a seat set cannot be held because at least
// one seat is booked, unknown, or held by another holder.  Handlers
// translate it into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrRejected is returned when a booking commit fails one of its checks.
var ErrRejected = errors.New("booking rejected")

// ErrStorage wraps failures of the backing store.  The operation made no
// changes and may be retried.
var ErrStorage = errors.New("storage error")

var (
	ErrScreeningNotFound     = errors.New("screening not found")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrBookingNotCancellable = errors.New("booking is not confirmed")
	ErrInvalidRequest        = errors.New("invalid request")
)

// ConflictError lists the seats that blocked an acquire.
type ConflictError struct {
	Seats []string
}

func (e *ConflictError) Error() string {
	return "seats unavailable: " + strings.Join(e.Seats, ",")
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// RejectReason explains why a booking commit was refused.
type RejectReason string

const (
	ReasonHoldsInvalid     RejectReason = "holds_invalid"
	ReasonAlreadyBooked    RejectReason = "already_booked"
	ReasonCapacityExceeded RejectReason = "capacity_exceeded"
)

// RejectedError is returned by CommitBooking when no change was made.
type RejectedError struct {
	Reason RejectReason
	Seats  []string
}

func (e *RejectedError) Error() string {
	if len(e.Seats) == 0 {
		return fmt.Sprintf("booking rejected: %s", e.Reason)
	}
	return fmt.Sprintf("booking rejected: %s: %s", e.Reason, strings.Join(e.Seats, ","))
}

func (e *RejectedError) Unwrap() error { return ErrRejected }

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// RejectReasonOf returns the rejection reason carried by err, if any.
func RejectReasonOf(err error) (RejectReason, bool) {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}
