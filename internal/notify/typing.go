package notify

import (
	"context"

	"github.com/iliyamo/seat-reservation-broker/internal/protocol"
)

type typingKey struct{ user, peer uint64 }

// PublishTypingStarted announces that userID is typing to peerID.  If no
// typing_stopped follows within the typing timeout, one is sent
// automatically.
func (f *Facade) PublishTypingStarted(userID, peerID uint64) {
	f.typingMu.Lock()
	f.typing[typingKey{userID, peerID}] = f.clock.Now()
	f.typingMu.Unlock()
	f.publishTyping(protocol.EventTypingStarted, userID, peerID)
}

// PublishTypingStopped announces that userID stopped typing to peerID.
func (f *Facade) PublishTypingStopped(userID, peerID uint64) {
	f.clearTyping(userID, peerID)
	f.publishTyping(protocol.EventTypingStopped, userID, peerID)
}

func (f *Facade) clearTyping(userID, peerID uint64) bool {
	f.typingMu.Lock()
	defer f.typingMu.Unlock()
	k := typingKey{userID, peerID}
	_, ok := f.typing[k]
	delete(f.typing, k)
	return ok
}

func (f *Facade) publishTyping(ev protocol.EventKind, userID, peerID uint64) {
	f.Publish(protocol.TypingEvent(ev, protocol.TypingPayload{UserID: userID, PeerID: peerID}, f.clock.Now()))
}

// expireTyping sends typing_stopped for every indicator older than the
// typing timeout and returns how many it stopped.
func (f *Facade) expireTyping() int {
	now := f.clock.Now()
	f.typingMu.Lock()
	var stale []typingKey
	for k, started := range f.typing {
		if now.Sub(started) >= f.cfg.TypingTimeout {
			stale = append(stale, k)
			delete(f.typing, k)
		}
	}
	f.typingMu.Unlock()
	for _, k := range stale {
		f.publishTyping(protocol.EventTypingStopped, k.user, k.peer)
	}
	return len(stale)
}

func (f *Facade) runTypingSweep(ctx context.Context) {
	tick := f.clock.NewTicker(f.cfg.TypingTimeout / 3)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.Chan():
			f.expireTyping()
		}
	}
}
