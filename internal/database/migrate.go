package database

import (
	"context"
	"database/sql"
	"fmt"
)

const createScreeningsTableSQL = `
CREATE TABLE IF NOT EXISTS screenings (
    id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    total_seats INT NOT NULL,
    available_seats INT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`

const createSeatsTableSQL = `
CREATE TABLE IF NOT EXISTS seats (
    id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    screening_id BIGINT UNSIGNED NOT NULL,
    seat_number VARCHAR(8) NOT NULL,
    row_label VARCHAR(4) NOT NULL,
    is_booked TINYINT(1) NOT NULL DEFAULT 0,
    UNIQUE KEY uq_seats_screening_seat (screening_id, seat_number),
    CONSTRAINT fk_seats_screening FOREIGN KEY (screening_id) REFERENCES screenings (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`

// One row per seat: the unique key is what makes two holds on the same
// seat impossible even across processes.
const createSeatHoldsTableSQL = `
CREATE TABLE IF NOT EXISTS seat_holds (
    id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    screening_id BIGINT UNSIGNED NOT NULL,
    seat_number VARCHAR(8) NOT NULL,
    holder_id BIGINT UNSIGNED NOT NULL,
    hold_token CHAR(36) NOT NULL,
    expires_at DATETIME(3) NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE KEY uq_seat_holds_seat (screening_id, seat_number),
    KEY idx_seat_holds_holder (screening_id, holder_id),
    KEY idx_seat_holds_expires (expires_at),
    CONSTRAINT fk_seat_holds_screening FOREIGN KEY (screening_id) REFERENCES screenings (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`

const createBookingsTableSQL = `
CREATE TABLE IF NOT EXISTS bookings (
    id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    holder_id BIGINT UNSIGNED NOT NULL,
    screening_id BIGINT UNSIGNED NOT NULL,
    seat_numbers TEXT NOT NULL,
    total_amount_cents INT UNSIGNED NOT NULL,
    status ENUM('pending', 'confirmed', 'cancelled') NOT NULL DEFAULT 'pending',
    created_at DATETIME(3) NOT NULL,
    KEY idx_bookings_holder (holder_id),
    CONSTRAINT fk_bookings_screening FOREIGN KEY (screening_id) REFERENCES screenings (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`

const createMessagesTableSQL = `
CREATE TABLE IF NOT EXISTS messages (
    id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    sender_id BIGINT UNSIGNED NOT NULL,
    receiver_id BIGINT UNSIGNED NOT NULL,
    content TEXT NOT NULL,
    is_read TINYINT(1) NOT NULL DEFAULT 0,
    sent_at DATETIME(3) NOT NULL,
    KEY idx_messages_pair (receiver_id, sender_id, is_read)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`

// Migrate creates the tables used by the MySQL store if they are missing.
// Statements run in dependency order.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate: nil database handle")
	}
	steps := []struct {
		name string
		sql  string
	}{
		{"screenings", createScreeningsTableSQL},
		{"seats", createSeatsTableSQL},
		{"seat_holds", createSeatHoldsTableSQL},
		{"bookings", createBookingsTableSQL},
		{"messages", createMessagesTableSQL},
	}
	for _, s := range steps {
		if _, err := db.ExecContext(ctx, s.sql); err != nil {
			return fmt.Errorf("migrate %s: %w", s.name, err)
		}
	}
	return nil
}
