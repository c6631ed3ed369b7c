package router

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-broker/internal/handler"
	"github.com/iliyamo/seat-reservation-broker/internal/notify"
	"github.com/iliyamo/seat-reservation-broker/internal/protocol"
	"github.com/iliyamo/seat-reservation-broker/internal/repository"
	"github.com/iliyamo/seat-reservation-broker/internal/service"
)

const secret = "router-secret"

type app struct {
	e      *echo.Echo
	clock  interface{ Advance(time.Duration) }
	facade *notify.Facade
}

func newApp(t *testing.T) *app {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC))

	store := repository.NewMemoryStore()
	store.AddScreening(7, "Heat", 4)
	seats := service.NewSeatService(store, nil, service.Options{Clock: clock, Logger: logger})
	facade := notify.New(notify.Config{}, notify.WithLogger(logger), notify.WithMessageStore(store))

	e := echo.New()
	RegisterRoutes(e, Deps{
		Health:    handler.Health(func() int { return 0 }, facade.Connected),
		Seats:     handler.NewSeatHandler(seats),
		Chat:      handler.NewChatHandler(facade),
		JWTSecret: secret,
	})
	return &app{e: e, clock: clock, facade: facade}
}

func (a *app) do(t *testing.T, method, path, holder, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if holder != "" {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": holder}).SignedString([]byte(secret))
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body, err)
	}
}

func TestHoldConfirmFlow(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/v1/screenings/7/hold", "1", `{"seats":["a1","A2"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("hold: %d %s", rec.Code, rec.Body)
	}

	rec = a.do(t, http.MethodPost, "/v1/screenings/7/hold", "2", `{"seats":["A2","A3"]}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("conflicting hold: %d %s", rec.Code, rec.Body)
	}
	var conflict struct {
		Seats []string `json:"seats"`
	}
	decode(t, rec, &conflict)
	if len(conflict.Seats) != 1 || conflict.Seats[0] != "A2" {
		t.Errorf("conflict seats = %v, want [A2]", conflict.Seats)
	}

	rec = a.do(t, http.MethodPost, "/v1/screenings/7/confirm", "1", `{"seats":["A1","A2"],"total_amount_cents":2400}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("confirm: %d %s", rec.Code, rec.Body)
	}
	var booking struct {
		ID     uint64 `json:"id"`
		Status string `json:"status"`
	}
	decode(t, rec, &booking)
	if booking.Status != "confirmed" {
		t.Errorf("status = %q", booking.Status)
	}

	rec = a.do(t, http.MethodGet, "/v1/screenings/7/seats", "", "")
	var m struct {
		AvailableSeats int `json:"available_seats"`
	}
	decode(t, rec, &m)
	if m.AvailableSeats != 2 {
		t.Errorf("available = %d, want 2", m.AvailableSeats)
	}

	path := "/v1/bookings/" + jsonNumber(booking.ID)
	if rec := a.do(t, http.MethodGet, path, "2", ""); rec.Code != http.StatusNotFound {
		t.Errorf("foreign booking lookup: %d", rec.Code)
	}
	if rec := a.do(t, http.MethodDelete, path, "1", ""); rec.Code != http.StatusOK {
		t.Errorf("cancel: %d %s", rec.Code, rec.Body)
	}
	if rec := a.do(t, http.MethodDelete, path, "1", ""); rec.Code != http.StatusConflict {
		t.Errorf("second cancel: %d", rec.Code)
	}
}

func TestConfirmAfterExpiryIsRejected(t *testing.T) {
	a := newApp(t)
	// Screening 7 has seats A1..A4 only.
	if rec := a.do(t, http.MethodPost, "/v1/screenings/7/hold", "1", `{"seats":["B1"]}`); rec.Code != http.StatusConflict {
		t.Fatalf("unknown seat hold: %d %s", rec.Code, rec.Body)
	}
	if rec := a.do(t, http.MethodPost, "/v1/screenings/7/hold", "1", `{"seats":["A4"]}`); rec.Code != http.StatusCreated {
		t.Fatalf("hold: %d %s", rec.Code, rec.Body)
	}
	a.clock.Advance(service.DefaultHoldTTL)

	rec := a.do(t, http.MethodPost, "/v1/screenings/7/confirm", "1", `{"seats":["A4"]}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("confirm: %d %s", rec.Code, rec.Body)
	}
	var body struct {
		Reason string `json:"reason"`
	}
	decode(t, rec, &body)
	if body.Reason != string(repository.ReasonHoldsInvalid) {
		t.Errorf("reason = %q", body.Reason)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	a := newApp(t)
	for i := 0; i < 2; i++ {
		rec := a.do(t, http.MethodDelete, "/v1/screenings/7/hold", "1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("release %d: %d", i, rec.Code)
		}
	}
}

func TestReleaseSingleSeat(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodPost, "/v1/screenings/7/hold", "1", `{"seats":["A1","A2"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("hold: %d %s", rec.Code, rec.Body)
	}
	var hold struct {
		TTLSeconds int `json:"ttl_seconds"`
	}
	decode(t, rec, &hold)
	if hold.TTLSeconds != int(service.DefaultHoldTTL/time.Second) {
		t.Errorf("ttl_seconds = %d", hold.TTLSeconds)
	}

	var out struct {
		Released []string `json:"released"`
	}
	rec = a.do(t, http.MethodDelete, "/v1/screenings/7/hold/a1", "2", "")
	decode(t, rec, &out)
	if rec.Code != http.StatusOK || len(out.Released) != 0 {
		t.Fatalf("foreign release: %d %s", rec.Code, rec.Body)
	}
	rec = a.do(t, http.MethodDelete, "/v1/screenings/7/hold/a1", "1", "")
	decode(t, rec, &out)
	if rec.Code != http.StatusOK || len(out.Released) != 1 || out.Released[0] != "A1" {
		t.Fatalf("release: %d %s", rec.Code, rec.Body)
	}

	// A1 is free for someone else while A2 stays with holder 1.
	if rec := a.do(t, http.MethodPost, "/v1/screenings/7/hold", "2", `{"seats":["A1"]}`); rec.Code != http.StatusCreated {
		t.Fatalf("hold freed seat: %d %s", rec.Code, rec.Body)
	}
	if rec := a.do(t, http.MethodPost, "/v1/screenings/7/hold", "2", `{"seats":["A2"]}`); rec.Code != http.StatusConflict {
		t.Fatalf("hold kept seat: %d %s", rec.Code, rec.Body)
	}
}

func TestRequestValidation(t *testing.T) {
	a := newApp(t)
	cases := []struct {
		name, method, path, holder, body string
		want                             int
	}{
		{"no token", http.MethodPost, "/v1/screenings/7/hold", "", `{"seats":["A1"]}`, http.StatusUnauthorized},
		{"non-numeric holder", http.MethodPost, "/v1/screenings/7/hold", "bob", `{"seats":["A1"]}`, http.StatusUnauthorized},
		{"bad screening id", http.MethodPost, "/v1/screenings/x/hold", "1", `{"seats":["A1"]}`, http.StatusBadRequest},
		{"empty seats", http.MethodPost, "/v1/screenings/7/hold", "1", `{"seats":[]}`, http.StatusBadRequest},
		{"unknown screening", http.MethodGet, "/v1/screenings/99/seats", "", "", http.StatusNotFound},
		{"unknown booking", http.MethodGet, "/v1/bookings/99", "1", "", http.StatusNotFound},
		{"missing sender", http.MethodPost, "/v1/messages/read", "1", `{}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := a.do(t, tc.method, tc.path, tc.holder, tc.body); rec.Code != tc.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tc.want, rec.Body)
			}
		})
	}
}

func TestChatRoutesPublishLocally(t *testing.T) {
	a := newApp(t)
	got := make(chan protocol.Envelope, 4)
	sub := a.facade.SubscribeChat(func(env protocol.Envelope) { got <- env })
	defer sub.Unsubscribe()

	rec := a.do(t, http.MethodPost, "/v1/messages", "1", `{"receiver_id":2,"content":"hi"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("send: %d %s", rec.Code, rec.Body)
	}
	select {
	case env := <-got:
		if env.Event != protocol.EventMessageSent {
			t.Errorf("event = %s", env.Event)
		}
	case <-time.After(time.Second):
		t.Fatal("no message_sent delivered")
	}

	rec = a.do(t, http.MethodPost, "/v1/messages/read", "2", `{"sender_id":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read: %d %s", rec.Code, rec.Body)
	}
	var body struct {
		Marked int64 `json:"marked"`
	}
	decode(t, rec, &body)
	if body.Marked != 1 {
		t.Errorf("marked = %d, want 1", body.Marked)
	}
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	decode(t, rec, &body)
	if body["status"] != "ok" || body["notify_connected"] != false {
		t.Errorf("body = %v", body)
	}
}

func jsonNumber(n uint64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
