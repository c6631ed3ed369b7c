package protocol

// Kind is the top-level discriminator of an Envelope.
type Kind string

const (
	KindSubscribeSeatTopic   Kind = "subscribe_seat_topic"
	KindUnsubscribeSeatTopic Kind = "unsubscribe_seat_topic"
	KindSubscribeChat        Kind = "subscribe_chat"
	KindUnsubscribeChat      Kind = "unsubscribe_chat"
	KindSubscribeTyping      Kind = "subscribe_typing"
	KindUnsubscribeTyping    Kind = "unsubscribe_typing"
	KindIdentify             Kind = "identify"
	KindSeatQuery            Kind = "seat_query"
	KindSeatEvent            Kind = "seat_event"
	KindChatEvent            Kind = "chat_event"
	KindTypingEvent          Kind = "typing_event"
	KindError                Kind = "error"
)

// EventKind discriminates the payload of seat, chat and typing events.
type EventKind string

const (
	EventSeatLocked    EventKind = "seat_locked"
	EventSeatUnlocked  EventKind = "seat_unlocked"
	EventSeatBooked    EventKind = "seat_booked"
	EventSeatState     EventKind = "seat_state"
	EventMessageSent   EventKind = "message_sent"
	EventMessageRead   EventKind = "message_read"
	EventTypingStarted EventKind = "typing_started"
	EventTypingStopped EventKind = "typing_stopped"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSubscribeSeatTopic, KindUnsubscribeSeatTopic,
		KindSubscribeChat, KindUnsubscribeChat,
		KindSubscribeTyping, KindUnsubscribeTyping,
		KindIdentify, KindSeatQuery,
		KindSeatEvent, KindChatEvent, KindTypingEvent, KindError:
		return true
	}
	return false
}

// IsEvent reports whether k carries an EventKind.
func (k Kind) IsEvent() bool {
	return k == KindSeatEvent || k == KindChatEvent || k == KindTypingEvent
}

// Valid reports whether e is one of the known event kinds.
func (e EventKind) Valid() bool {
	return e.Family() != ""
}

// Family returns the event Kind that e belongs to, or "" if e is unknown.
func (e EventKind) Family() Kind {
	switch e {
	case EventSeatLocked, EventSeatUnlocked, EventSeatBooked, EventSeatState:
		return KindSeatEvent
	case EventMessageSent, EventMessageRead:
		return KindChatEvent
	case EventTypingStarted, EventTypingStopped:
		return KindTypingEvent
	}
	return ""
}
