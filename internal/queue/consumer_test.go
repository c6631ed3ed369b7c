package queue

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/seat-reservation-broker/internal/model"
)

func TestAppendBookingLog(t *testing.T) {
	dir := t.TempDir()
	b := &model.Booking{
		ID: 3, HolderID: 1, ScreeningID: 7,
		SeatNumbers:      []string{"A1", "A2"},
		TotalAmountCents: 2500,
		CreatedAt:        time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
	}
	ev := NewBookingConfirmedEvent(b, &model.Screening{ID: 7, Title: "Heat"})
	if err := AppendBookingLog(dir, ev); err != nil {
		t.Fatal(err)
	}
	if err := AppendBookingLog(dir, ev); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "booking.log"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	want := `[2026-03-01T18:00:00Z] Booking confirmed | booking_id=3 | holder_id=1 | screening_id=7 | title="Heat" | total=2500 cents | seats=[A1,A2]`
	if lines[0] != want {
		t.Fatalf("line = %q\nwant  %q", lines[0], want)
	}
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	c := NewConsumer("amqp://unused", t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := c.handleMessage([]byte("not json")); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if err := c.handleMessage([]byte(`{"booking_id":9,"seats":["C3"]}`)); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
}
