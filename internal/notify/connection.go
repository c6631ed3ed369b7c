package notify

import (
	"context"
	"time"

	"github.com/iliyamo/seat-reservation-broker/internal/broker"
	"github.com/iliyamo/seat-reservation-broker/internal/protocol"
)

// connect dials the broker, identifies, and subscribes every topic that
// has local observers.
func (f *Facade) connect(ctx context.Context) error {
	dctx, cancel := context.WithTimeout(ctx, f.cfg.DialTimeout)
	defer cancel()
	c, err := broker.Dial(dctx, f.cfg.BrokerAddr, f.deliverLocal, f.log)
	if err != nil {
		return err
	}
	now := f.clock.Now()
	if f.cfg.UserID != 0 {
		env, _ := protocol.New(protocol.KindIdentify, "", nil, protocol.IdentifyPayload{UserID: f.cfg.UserID}, now)
		if err := c.Send(env); err != nil {
			c.Close()
			return err
		}
	}

	f.mu.Lock()
	topics := make([]protocol.Topic, 0, len(f.observers))
	for t := range f.observers {
		topics = append(topics, t)
	}
	f.client = c
	f.mu.Unlock()

	for _, t := range topics {
		if err := c.Send(subscribeEnvelope(t, now)); err != nil {
			f.degrade(c)
			return err
		}
	}
	f.log.Info("connected to broker", "addr", f.cfg.BrokerAddr, "topics", len(topics))
	return nil
}

// maintain waits for the connection to drop and reconnects with a
// backoff that doubles from ReconnectMin up to ReconnectMax.
func (f *Facade) maintain(ctx context.Context) {
	backoff := f.cfg.ReconnectMin
	for {
		f.mu.Lock()
		c := f.client
		f.mu.Unlock()
		if c != nil {
			select {
			case <-ctx.Done():
				return
			case <-c.Done():
				f.degrade(c)
				backoff = f.cfg.ReconnectMin
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-f.clock.After(backoff):
		}
		if err := f.connect(ctx); err != nil {
			f.log.Debug("reconnect failed", "err", err, "retry_in", backoff)
			if backoff < f.cfg.ReconnectMax {
				backoff *= 2
				if backoff > f.cfg.ReconnectMax {
					backoff = f.cfg.ReconnectMax
				}
			}
			continue
		}
		backoff = f.cfg.ReconnectMin
	}
}

// degrade switches to local delivery if c is still the active client.
func (f *Facade) degrade(c *broker.Client) {
	f.mu.Lock()
	active := f.client == c
	if active {
		f.client = nil
	}
	f.mu.Unlock()
	c.Close()
	if active {
		f.log.Warn("broker connection lost; delivering locally", "addr", f.cfg.BrokerAddr)
	}
}

func (f *Facade) sendControl(env protocol.Envelope) {
	f.mu.Lock()
	c := f.client
	f.mu.Unlock()
	if c == nil {
		return
	}
	if err := c.Send(env); err != nil {
		f.degrade(c)
	}
}

func subscribeEnvelope(t protocol.Topic, now time.Time) protocol.Envelope {
	switch t.Kind {
	case protocol.TopicSeat:
		return protocol.Control(protocol.KindSubscribeSeatTopic, protocol.Key(t.ScreeningID), now)
	case protocol.TopicChat:
		return protocol.Control(protocol.KindSubscribeChat, nil, now)
	default:
		return protocol.Control(protocol.KindSubscribeTyping, nil, now)
	}
}

func unsubscribeEnvelope(t protocol.Topic, now time.Time) protocol.Envelope {
	switch t.Kind {
	case protocol.TopicSeat:
		return protocol.Control(protocol.KindUnsubscribeSeatTopic, protocol.Key(t.ScreeningID), now)
	case protocol.TopicChat:
		return protocol.Control(protocol.KindUnsubscribeChat, nil, now)
	default:
		return protocol.Control(protocol.KindUnsubscribeTyping, nil, now)
	}
}
