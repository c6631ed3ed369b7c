package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/seat-reservation-broker/internal/model"
)

// MemoryStore is an in-process Store and MessageStore.  Each method holds
// one lock for its whole duration, which gives it the same all-or-nothing
// behavior as a MySQL transaction.  Data does not survive a restart.
type MemoryStore struct {
	mu          sync.Mutex
	screenings  map[uint64]*memScreening
	bookings    map[uint64]*model.Booking
	messages    []*model.ChatMessage
	nextBooking uint64
	nextMessage uint64
}

type memScreening struct {
	sc     model.Screening
	order  []string
	booked map[string]bool
	holds  map[string]model.Hold
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		screenings: map[uint64]*memScreening{},
		bookings:   map[uint64]*model.Booking{},
	}
}

// AddScreening registers a screening under a fixed id.  An existing
// screening with the same id is replaced.
func (m *MemoryStore) AddScreening(id uint64, title string, totalSeats int) *model.Screening {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &memScreening{
		sc:     model.Screening{ID: id, Title: title, TotalSeats: totalSeats, AvailableSeats: totalSeats},
		order:  model.SeatLayout(totalSeats),
		booked: map[string]bool{},
		holds:  map[string]model.Hold{},
	}
	for _, num := range s.order {
		s.booked[num] = false
	}
	m.screenings[id] = s
	sc := s.sc
	return &sc
}

func (m *MemoryStore) Screening(_ context.Context, id uint64) (*model.Screening, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.screenings[id]
	if !ok {
		return nil, ErrScreeningNotFound
	}
	sc := s.sc
	return &sc, nil
}

func (m *MemoryStore) SeatMap(_ context.Context, screeningID uint64, now time.Time) (*model.SeatMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.screenings[screeningID]
	if !ok {
		return nil, ErrScreeningNotFound
	}
	out := &model.SeatMap{
		ScreeningID:    s.sc.ID,
		TotalSeats:     s.sc.TotalSeats,
		AvailableSeats: s.sc.AvailableSeats,
		Seats:          make([]model.Seat, 0, len(s.order)),
	}
	for _, num := range s.order {
		seat := model.Seat{ScreeningID: s.sc.ID, SeatNumber: num, RowLabel: model.SeatRow(num), State: model.SeatAvailable}
		switch h, held := s.holds[num]; {
		case s.booked[num]:
			seat.State = model.SeatBooked
		case held && !h.Expired(now):
			seat.State = model.SeatHeld
			seat.HolderID = h.HolderID
			seat.ExpiresAt = h.ExpiresAt
		}
		out.Seats = append(out.Seats, seat)
	}
	return out, nil
}

func (m *MemoryStore) AcquireHolds(_ context.Context, screeningID, holderID uint64, seats []string, expiresAt, now time.Time) (*AcquireResult, error) {
	if len(seats) == 0 {
		return nil, ErrInvalidRequest
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.screenings[screeningID]
	if !ok {
		return nil, ErrScreeningNotFound
	}
	var conflicts []string
	for _, num := range seats {
		booked, known := s.booked[num]
		if !known || booked {
			conflicts = append(conflicts, num)
			continue
		}
		if h, ok := s.holds[num]; ok && h.HolderID != holderID && !h.Expired(now) {
			conflicts = append(conflicts, num)
		}
	}
	if len(conflicts) > 0 {
		return nil, &ConflictError{Seats: conflicts}
	}
	previous := s.removeHolder(holderID)
	holds := newHolds(screeningID, holderID, seats, expiresAt)
	for _, h := range holds {
		s.holds[h.SeatNumber] = h
	}
	return &AcquireResult{Holds: holds, Replaced: missing(previous, seats)}, nil
}

func (m *MemoryStore) ReleaseHolds(_ context.Context, screeningID, holderID uint64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.screenings[screeningID]
	if !ok {
		return nil, ErrScreeningNotFound
	}
	return s.removeHolder(holderID), nil
}

func (m *MemoryStore) ReleaseHold(_ context.Context, screeningID, holderID uint64, seat string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.screenings[screeningID]
	if !ok {
		return false, ErrScreeningNotFound
	}
	h, ok := s.holds[seat]
	if !ok || h.HolderID != holderID {
		return false, nil
	}
	delete(s.holds, seat)
	return true, nil
}

func (m *MemoryStore) DeleteExpiredHolds(_ context.Context, now time.Time) ([]model.Hold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []model.Hold
	for _, s := range m.screenings {
		for num, h := range s.holds {
			if h.Expired(now) {
				expired = append(expired, h)
				delete(s.holds, num)
			}
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		if expired[i].ScreeningID != expired[j].ScreeningID {
			return expired[i].ScreeningID < expired[j].ScreeningID
		}
		return expired[i].SeatNumber < expired[j].SeatNumber
	})
	return expired, nil
}

func (m *MemoryStore) CommitBooking(_ context.Context, screeningID, holderID uint64, seats []string, amountCents uint32, now time.Time) (*model.Booking, error) {
	if len(seats) == 0 {
		return nil, ErrInvalidRequest
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.screenings[screeningID]
	if !ok {
		return nil, ErrScreeningNotFound
	}
	var invalid, taken []string
	for _, num := range seats {
		if h, ok := s.holds[num]; !ok || !h.Active(holderID, now) {
			invalid = append(invalid, num)
		}
		if s.booked[num] {
			taken = append(taken, num)
		}
	}
	if len(invalid) > 0 {
		return nil, &RejectedError{Reason: ReasonHoldsInvalid, Seats: invalid}
	}
	if len(taken) > 0 {
		return nil, &RejectedError{Reason: ReasonAlreadyBooked, Seats: taken}
	}
	if s.sc.AvailableSeats-len(seats) < 0 {
		return nil, &RejectedError{Reason: ReasonCapacityExceeded}
	}
	for _, num := range seats {
		s.booked[num] = true
		delete(s.holds, num)
	}
	s.sc.AvailableSeats -= len(seats)
	m.nextBooking++
	b := &model.Booking{
		ID:               m.nextBooking,
		HolderID:         holderID,
		ScreeningID:      screeningID,
		SeatNumbers:      append([]string(nil), seats...),
		TotalAmountCents: amountCents,
		Status:           model.BookingConfirmed,
		CreatedAt:        now.UTC(),
	}
	m.bookings[b.ID] = b
	out := *b
	return &out, nil
}

func (m *MemoryStore) CancelBooking(_ context.Context, bookingID uint64, releaseSeats bool) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, ErrBookingNotFound
	}
	if b.Status != model.BookingConfirmed {
		return nil, ErrBookingNotCancellable
	}
	b.Status = model.BookingCancelled
	if releaseSeats {
		if s, ok := m.screenings[b.ScreeningID]; ok {
			for _, num := range b.SeatNumbers {
				s.booked[num] = false
			}
			s.sc.AvailableSeats += len(b.SeatNumbers)
		}
	}
	out := *b
	return &out, nil
}

func (m *MemoryStore) Booking(_ context.Context, id uint64) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	out := *b
	return &out, nil
}

func (m *MemoryStore) SaveMessage(_ context.Context, msg *model.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	m.nextMessage++
	msg.ID = m.nextMessage
	stored := *msg
	m.messages = append(m.messages, &stored)
	return nil
}

func (m *MemoryStore) MarkMessagesRead(_ context.Context, receiverID, senderID uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, msg := range m.messages {
		if msg.ReceiverID == receiverID && msg.SenderID == senderID && !msg.Read {
			msg.Read = true
			n++
		}
	}
	return n, nil
}

// removeHolder drops every hold of holderID and returns the seat numbers
// in layout order.
func (s *memScreening) removeHolder(holderID uint64) []string {
	var out []string
	for _, num := range s.order {
		if h, ok := s.holds[num]; ok && h.HolderID == holderID {
			out = append(out, num)
			delete(s.holds, num)
		}
	}
	return out
}

var (
	_ Store        = (*MemoryStore)(nil)
	_ MessageStore = (*MemoryStore)(nil)
	_ Store        = (*MySQLStore)(nil)
	_ MessageStore = (*MySQLStore)(nil)
)
