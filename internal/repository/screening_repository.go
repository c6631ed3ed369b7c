package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/seat-reservation-broker/internal/model"
)

// Screening loads a screening by id.
func (s *MySQLStore) Screening(ctx context.Context, id uint64) (*model.Screening, error) {
	return scanScreening(s.db.QueryRowContext(ctx,
		`SELECT id, title, total_seats, available_seats FROM screenings WHERE id = ?`, id))
}

// lockScreeningTx loads a screening and locks its row until the
// transaction ends.  Every mutation of holds or bookings on the screening
// takes this lock first.
func lockScreeningTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Screening, error) {
	return scanScreening(tx.QueryRowContext(ctx,
		`SELECT id, title, total_seats, available_seats FROM screenings WHERE id = ? FOR UPDATE`, id))
}

func scanScreening(row *sql.Row) (*model.Screening, error) {
	var sc model.Screening
	if err := row.Scan(&sc.ID, &sc.Title, &sc.TotalSeats, &sc.AvailableSeats); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScreeningNotFound
		}
		return nil, storageErr("load screening", err)
	}
	return &sc, nil
}

// ensureSeats creates the seat rows of a screening the first time they
// are needed.  INSERT IGNORE keeps concurrent first accesses harmless.
func ensureSeats(ctx context.Context, q queryer, sc *model.Screening) error {
	var n int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seats WHERE screening_id = ?`, sc.ID).Scan(&n); err != nil {
		return storageErr("count seats", err)
	}
	if n > 0 {
		return nil
	}
	layout := model.SeatLayout(sc.TotalSeats)
	if len(layout) == 0 {
		return nil
	}
	query := `INSERT IGNORE INTO seats (screening_id, seat_number, row_label, is_booked) VALUES `
	args := make([]any, 0, len(layout)*3)
	for i, num := range layout {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, 0)"
		args = append(args, sc.ID, num, model.SeatRow(num))
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return storageErr("create seats", err)
	}
	return nil
}

// SeatMap returns the state of every seat of a screening.  Holds expiring
// at or before now are reported as available whether or not they have been
// swept.
func (s *MySQLStore) SeatMap(ctx context.Context, screeningID uint64, now time.Time) (*model.SeatMap, error) {
	sc, err := s.Screening(ctx, screeningID)
	if err != nil {
		return nil, err
	}
	if err := ensureSeats(ctx, s.db, sc); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seat_number, row_label, is_booked FROM seats WHERE screening_id = ? ORDER BY id`, screeningID)
	if err != nil {
		return nil, storageErr("load seats", err)
	}
	m := &model.SeatMap{ScreeningID: sc.ID, TotalSeats: sc.TotalSeats, AvailableSeats: sc.AvailableSeats}
	index := map[string]int{}
	for rows.Next() {
		var seat model.Seat
		var booked bool
		if err := rows.Scan(&seat.SeatNumber, &seat.RowLabel, &booked); err != nil {
			rows.Close()
			return nil, storageErr("scan seat", err)
		}
		seat.ScreeningID = sc.ID
		seat.State = model.SeatAvailable
		if booked {
			seat.State = model.SeatBooked
		}
		index[seat.SeatNumber] = len(m.Seats)
		m.Seats = append(m.Seats, seat)
	}
	if err := rows.Close(); err != nil {
		return nil, storageErr("load seats", err)
	}

	holds, err := s.db.QueryContext(ctx,
		`SELECT seat_number, holder_id, expires_at FROM seat_holds WHERE screening_id = ? AND expires_at > ?`,
		screeningID, now.UTC())
	if err != nil {
		return nil, storageErr("load holds", err)
	}
	defer holds.Close()
	for holds.Next() {
		var h model.Hold
		if err := holds.Scan(&h.SeatNumber, &h.HolderID, &h.ExpiresAt); err != nil {
			return nil, storageErr("scan hold", err)
		}
		i, ok := index[h.SeatNumber]
		if !ok || m.Seats[i].State == model.SeatBooked || h.Expired(now) {
			continue
		}
		m.Seats[i].State = model.SeatHeld
		m.Seats[i].HolderID = h.HolderID
		m.Seats[i].ExpiresAt = h.ExpiresAt
	}
	if err := holds.Err(); err != nil {
		return nil, storageErr("load holds", err)
	}
	return m, nil
}
