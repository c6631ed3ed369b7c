package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/seat-reservation-broker/internal/model"
)

// CommitBooking converts the holder's holds on seats into a confirmed
// booking.  Checks run in order: every seat must carry an unexpired hold of
// holderID (holds_invalid), no seat may be booked already
// (already_booked), and the screening must have room for all seats
// (capacity_exceeded).  On any failure the transaction is rolled back and
// a *RejectedError is returned.
func (s *MySQLStore) CommitBooking(ctx context.Context, screeningID, holderID uint64, seats []string, amountCents uint32, now time.Time) (*model.Booking, error) {
	if len(seats) == 0 {
		return nil, ErrInvalidRequest
	}
	var b *model.Booking
	err := s.inTx(ctx, "commit booking", func(tx *sql.Tx) error {
		sc, err := lockScreeningTx(ctx, tx, screeningID)
		if err != nil {
			return err
		}
		holds, err := holdsForSeatsTx(ctx, tx, screeningID, seats, true)
		if err != nil {
			return err
		}
		var invalid []string
		for _, num := range seats {
			if h, ok := holds[num]; !ok || !h.Active(holderID, now) {
				invalid = append(invalid, num)
			}
		}
		if len(invalid) > 0 {
			return &RejectedError{Reason: ReasonHoldsInvalid, Seats: invalid}
		}

		booked, err := seatBookingTx(ctx, tx, screeningID, seats)
		if err != nil {
			return err
		}
		var taken []string
		for _, num := range seats {
			if booked[num] {
				taken = append(taken, num)
			}
		}
		if len(taken) > 0 {
			return &RejectedError{Reason: ReasonAlreadyBooked, Seats: taken}
		}
		if sc.AvailableSeats-len(seats) < 0 {
			return &RejectedError{Reason: ReasonCapacityExceeded}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE seats SET is_booked = 1 WHERE screening_id = ? AND seat_number IN (`+placeholders(len(seats))+`)`,
			withSeats(seats, screeningID)...); err != nil {
			return storageErr("book seats", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM seat_holds WHERE screening_id = ? AND seat_number IN (`+placeholders(len(seats))+`)`,
			withSeats(seats, screeningID)...); err != nil {
			return storageErr("delete holds", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE screenings SET available_seats = available_seats - ? WHERE id = ?`,
			len(seats), screeningID); err != nil {
			return storageErr("update availability", err)
		}

		b = &model.Booking{
			HolderID:         holderID,
			ScreeningID:      screeningID,
			SeatNumbers:      append([]string(nil), seats...),
			TotalAmountCents: amountCents,
			Status:           model.BookingConfirmed,
			CreatedAt:        now.UTC(),
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO bookings (holder_id, screening_id, seat_numbers, total_amount_cents, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			b.HolderID, b.ScreeningID, strings.Join(b.SeatNumbers, ","), b.TotalAmountCents, string(b.Status), b.CreatedAt)
		if err != nil {
			return storageErr("insert booking", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return storageErr("insert booking", err)
		}
		b.ID = uint64(id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CancelBooking moves a confirmed booking to cancelled.  When
// releaseSeats is true its seats become available again and the
// screening's counter is restored.
func (s *MySQLStore) CancelBooking(ctx context.Context, bookingID uint64, releaseSeats bool) (*model.Booking, error) {
	var b *model.Booking
	err := s.inTx(ctx, "cancel booking", func(tx *sql.Tx) error {
		var err error
		b, err = scanBooking(tx.QueryRowContext(ctx, selectBooking+` WHERE id = ? FOR UPDATE`, bookingID))
		if err != nil {
			return err
		}
		if b.Status != model.BookingConfirmed {
			return ErrBookingNotCancellable
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status = ? WHERE id = ?`, string(model.BookingCancelled), bookingID); err != nil {
			return storageErr("cancel booking", err)
		}
		b.Status = model.BookingCancelled
		if !releaseSeats || len(b.SeatNumbers) == 0 {
			return nil
		}
		if _, err := lockScreeningTx(ctx, tx, b.ScreeningID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE seats SET is_booked = 0 WHERE screening_id = ? AND seat_number IN (`+placeholders(len(b.SeatNumbers))+`)`,
			withSeats(b.SeatNumbers, b.ScreeningID)...); err != nil {
			return storageErr("free seats", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE screenings SET available_seats = available_seats + ? WHERE id = ?`,
			len(b.SeatNumbers), b.ScreeningID); err != nil {
			return storageErr("update availability", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Booking loads a booking by id.
func (s *MySQLStore) Booking(ctx context.Context, id uint64) (*model.Booking, error) {
	return scanBooking(s.db.QueryRowContext(ctx, selectBooking+` WHERE id = ?`, id))
}

const selectBooking = `SELECT id, holder_id, screening_id, seat_numbers, total_amount_cents, status, created_at FROM bookings`

func scanBooking(row *sql.Row) (*model.Booking, error) {
	var b model.Booking
	var seats, status string
	if err := row.Scan(&b.ID, &b.HolderID, &b.ScreeningID, &seats, &b.TotalAmountCents, &status, &b.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, storageErr("load booking", err)
	}
	if seats != "" {
		b.SeatNumbers = strings.Split(seats, ",")
	}
	b.Status = model.BookingStatus(status)
	return &b, nil
}
