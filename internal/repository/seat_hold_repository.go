package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/seat-reservation-broker/internal/model"
)

// AcquireHolds places holds on seats for holderID, replacing every hold the
// holder already has on the screening.  It fails with a *ConflictError and
// changes nothing when any seat is unknown, booked, or held by another
// holder with an unexpired hold.
func (s *MySQLStore) AcquireHolds(ctx context.Context, screeningID, holderID uint64, seats []string, expiresAt, now time.Time) (*AcquireResult, error) {
	if len(seats) == 0 {
		return nil, ErrInvalidRequest
	}
	var out *AcquireResult
	err := s.inTx(ctx, "acquire holds", func(tx *sql.Tx) error {
		sc, err := lockScreeningTx(ctx, tx, screeningID)
		if err != nil {
			return err
		}
		if err := ensureSeats(ctx, tx, sc); err != nil {
			return err
		}
		booked, err := seatBookingTx(ctx, tx, screeningID, seats)
		if err != nil {
			return err
		}
		current, err := holdsForSeatsTx(ctx, tx, screeningID, seats, false)
		if err != nil {
			return err
		}
		var conflicts []string
		for _, num := range seats {
			isBooked, known := booked[num]
			if !known || isBooked {
				conflicts = append(conflicts, num)
				continue
			}
			if h, ok := current[num]; ok && h.HolderID != holderID && !h.Expired(now) {
				conflicts = append(conflicts, num)
			}
		}
		if len(conflicts) > 0 {
			return &ConflictError{Seats: conflicts}
		}

		previous, err := deleteHolderHoldsTx(ctx, tx, screeningID, holderID)
		if err != nil {
			return err
		}
		// Lapsed holds of other holders still occupy the unique key.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM seat_holds WHERE screening_id = ? AND seat_number IN (`+placeholders(len(seats))+`) AND expires_at <= ?`,
			append(withSeats(seats, screeningID), now.UTC())...); err != nil {
			return storageErr("clear lapsed holds", err)
		}
		holds := newHolds(screeningID, holderID, seats, expiresAt)
		if err := insertHoldsTx(ctx, tx, holds); err != nil {
			return err
		}
		out = &AcquireResult{Holds: holds, Replaced: missing(previous, seats)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReleaseHolds removes every hold holderID has on the screening and
// returns the released seat numbers.  Releasing nothing is not an error.
func (s *MySQLStore) ReleaseHolds(ctx context.Context, screeningID, holderID uint64) ([]string, error) {
	var released []string
	err := s.inTx(ctx, "release holds", func(tx *sql.Tx) error {
		if _, err := lockScreeningTx(ctx, tx, screeningID); err != nil {
			return err
		}
		var err error
		released, err = deleteHolderHoldsTx(ctx, tx, screeningID, holderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// ReleaseHold removes holderID's hold on a single seat.  A seat held by
// someone else, or not held at all, is left alone and reports false.
func (s *MySQLStore) ReleaseHold(ctx context.Context, screeningID, holderID uint64, seat string) (bool, error) {
	var released bool
	err := s.inTx(ctx, "release hold", func(tx *sql.Tx) error {
		if _, err := lockScreeningTx(ctx, tx, screeningID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM seat_holds WHERE screening_id = ? AND seat_number = ? AND holder_id = ?`,
			screeningID, seat, holderID)
		if err != nil {
			return storageErr("delete hold", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storageErr("delete hold", err)
		}
		released = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return released, nil
}

// DeleteExpiredHolds removes all holds whose expiry is at or before now
// and returns them.
func (s *MySQLStore) DeleteExpiredHolds(ctx context.Context, now time.Time) ([]model.Hold, error) {
	var expired []model.Hold
	err := s.inTx(ctx, "sweep holds", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT screening_id, seat_number, holder_id, hold_token, expires_at FROM seat_holds WHERE expires_at <= ? FOR UPDATE`,
			now.UTC())
		if err != nil {
			return storageErr("select expired holds", err)
		}
		for rows.Next() {
			var h model.Hold
			if err := rows.Scan(&h.ScreeningID, &h.SeatNumber, &h.HolderID, &h.Token, &h.ExpiresAt); err != nil {
				rows.Close()
				return storageErr("scan expired hold", err)
			}
			expired = append(expired, h)
		}
		if err := rows.Close(); err != nil {
			return storageErr("select expired holds", err)
		}
		if len(expired) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM seat_holds WHERE expires_at <= ?`, now.UTC()); err != nil {
			return storageErr("delete expired holds", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// seatBookingTx maps each known seat among seats to its booked flag.
// Seats absent from the map do not exist on the screening.
func seatBookingTx(ctx context.Context, tx *sql.Tx, screeningID uint64, seats []string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT seat_number, is_booked FROM seats WHERE screening_id = ? AND seat_number IN (`+placeholders(len(seats))+`)`,
		withSeats(seats, screeningID)...)
	if err != nil {
		return nil, storageErr("load seats", err)
	}
	defer rows.Close()
	out := make(map[string]bool, len(seats))
	for rows.Next() {
		var num string
		var booked bool
		if err := rows.Scan(&num, &booked); err != nil {
			return nil, storageErr("scan seat", err)
		}
		out[num] = booked
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("load seats", err)
	}
	return out, nil
}

// holdsForSeatsTx returns the hold rows of the given seats keyed by seat
// number, expired or not.  forUpdate locks the rows.
func holdsForSeatsTx(ctx context.Context, tx *sql.Tx, screeningID uint64, seats []string, forUpdate bool) (map[string]model.Hold, error) {
	q := `SELECT seat_number, holder_id, hold_token, expires_at FROM seat_holds WHERE screening_id = ? AND seat_number IN (` + placeholders(len(seats)) + `)`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	rows, err := tx.QueryContext(ctx, q, withSeats(seats, screeningID)...)
	if err != nil {
		return nil, storageErr("load holds", err)
	}
	defer rows.Close()
	out := make(map[string]model.Hold, len(seats))
	for rows.Next() {
		h := model.Hold{ScreeningID: screeningID}
		if err := rows.Scan(&h.SeatNumber, &h.HolderID, &h.Token, &h.ExpiresAt); err != nil {
			return nil, storageErr("scan hold", err)
		}
		out[h.SeatNumber] = h
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("load holds", err)
	}
	return out, nil
}

// deleteHolderHoldsTx removes all holds of holderID on the screening and
// returns their seat numbers.
func deleteHolderHoldsTx(ctx context.Context, tx *sql.Tx, screeningID, holderID uint64) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT seat_number FROM seat_holds WHERE screening_id = ? AND holder_id = ?`, screeningID, holderID)
	if err != nil {
		return nil, storageErr("load holder holds", err)
	}
	var seats []string
	for rows.Next() {
		var num string
		if err := rows.Scan(&num); err != nil {
			rows.Close()
			return nil, storageErr("scan holder hold", err)
		}
		seats = append(seats, num)
	}
	if err := rows.Close(); err != nil {
		return nil, storageErr("load holder holds", err)
	}
	if len(seats) == 0 {
		return nil, nil
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM seat_holds WHERE screening_id = ? AND holder_id = ?`, screeningID, holderID); err != nil {
		return nil, storageErr("delete holder holds", err)
	}
	return seats, nil
}

// insertHoldsTx inserts holds with one multi-row statement.
func insertHoldsTx(ctx context.Context, tx *sql.Tx, holds []model.Hold) error {
	if len(holds) == 0 {
		return nil
	}
	query := `INSERT INTO seat_holds (screening_id, seat_number, holder_id, hold_token, expires_at) VALUES `
	args := make([]any, 0, len(holds)*5)
	for i, h := range holds {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, h.ScreeningID, h.SeatNumber, h.HolderID, h.Token, h.ExpiresAt.UTC())
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return storageErr("insert holds", err)
	}
	return nil
}

// newHolds builds hold records with a fresh token per seat.
func newHolds(screeningID, holderID uint64, seats []string, expiresAt time.Time) []model.Hold {
	holds := make([]model.Hold, 0, len(seats))
	for _, num := range seats {
		holds = append(holds, model.Hold{
			ScreeningID: screeningID,
			SeatNumber:  num,
			HolderID:    holderID,
			Token:       uuid.NewString(),
			ExpiresAt:   expiresAt,
		})
	}
	return holds
}

// missing returns the elements of prev that are not in next.
func missing(prev, next []string) []string {
	keep := make(map[string]struct{}, len(next))
	for _, s := range next {
		keep[s] = struct{}{}
	}
	var out []string
	for _, s := range prev {
		if _, ok := keep[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
