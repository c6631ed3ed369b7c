// Command seatwatch connects to a broker, prints every seat event of a
// screening as it arrives and optionally sends a chat message.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/pflag"

	"github.com/iliyamo/seat-reservation-broker/internal/notify"
	"github.com/iliyamo/seat-reservation-broker/internal/protocol"
)

func main() {
	var (
		addr      = pflag.String("broker", "127.0.0.1:8888", "broker address")
		user      = pflag.Uint64("user", 0, "user id announced to the broker")
		screening = pflag.Uint64("screening", 0, "screening whose seat topic to watch")
		chat      = pflag.Bool("chat", false, "also print chat and typing events")
		to        = pflag.Uint64("to", 0, "send --message to this user and exit")
		message   = pflag.String("message", "", "chat message to send")
		verbose   = pflag.BoolP("verbose", "v", false, "log connection state changes")
	)
	pflag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *screening == 0 && *to == 0 {
		fmt.Fprintln(os.Stderr, "seatwatch: --screening or --to is required")
		pflag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, *addr, *user, *screening, *chat, *to, *message, logger); err != nil {
		fmt.Fprintf(os.Stderr, "seatwatch: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr string, user, screening uint64, chat bool, to uint64, message string, logger *slog.Logger) error {
	f := notify.New(notify.Config{BrokerAddr: addr, UserID: user}, notify.WithLogger(logger))
	f.Start(ctx)
	defer f.Close()

	if to != 0 {
		if !f.Connected() {
			return fmt.Errorf("broker %s unreachable", addr)
		}
		if _, err := f.PublishChatMessage(ctx, user, to, message); err != nil {
			return err
		}
		// Let the writer flush before the connection closes.
		time.Sleep(200 * time.Millisecond)
		return nil
	}

	enc := protocol.NewEncoder(os.Stdout)
	show := func(env protocol.Envelope) {
		if err := enc.Encode(env); err != nil {
			logger.Error("write failed", "err", err)
		}
	}
	f.SubscribeSeatTopic(screening, show)
	if chat {
		f.SubscribeChat(show)
		f.SubscribeTyping(show)
	}
	refreshOnReconnect(ctx, f, screening, clockwork.NewRealClock(), time.Second)
	return nil
}

type seatSource interface {
	Connected() bool
	RequestSeatState(screeningID uint64)
}

// refreshOnReconnect polls the connection every interval and asks for a
// seat_state snapshot each time it comes back up.  It returns when ctx is
// done.
func refreshOnReconnect(ctx context.Context, src seatSource, screening uint64, clock clockwork.Clock, every time.Duration) {
	tick := clock.NewTicker(every)
	defer tick.Stop()
	up := src.Connected()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.Chan():
			now := src.Connected()
			if now && !up {
				src.RequestSeatState(screening)
			}
			up = now
		}
	}
}
