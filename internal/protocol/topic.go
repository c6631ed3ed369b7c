package protocol

import "strconv"

// TopicKind names one of the three broadcast channels.
type TopicKind string

const (
	TopicSeat   TopicKind = "seat"
	TopicChat   TopicKind = "chat"
	TopicTyping TopicKind = "typing"
)

// Topic identifies a broadcast channel.  ScreeningID is set only for seat
// topics; there is one seat topic per screening.
type Topic struct {
	Kind        TopicKind
	ScreeningID uint64
}

// SeatTopic returns the seat topic of a screening.
func SeatTopic(screeningID uint64) Topic { return Topic{Kind: TopicSeat, ScreeningID: screeningID} }

// ChatTopic is the single chat topic.
var ChatTopic = Topic{Kind: TopicChat}

// TypingTopic is the single typing topic.
var TypingTopic = Topic{Kind: TopicTyping}

func (t Topic) String() string {
	if t.Kind == TopicSeat {
		return "seat:" + strconv.FormatUint(t.ScreeningID, 10)
	}
	return string(t.Kind)
}

// Topic returns the topic an envelope is addressed to.  Subscription
// control messages resolve to the topic they manage; events resolve to
// the topic they are broadcast on.  ok is false for kinds without a topic
// or for seat kinds missing a topic key.
func (e Envelope) Topic() (t Topic, ok bool) {
	switch e.Kind {
	case KindSubscribeSeatTopic, KindUnsubscribeSeatTopic, KindSeatEvent, KindSeatQuery:
		if e.TopicKey == nil {
			return Topic{}, false
		}
		return SeatTopic(*e.TopicKey), true
	case KindSubscribeChat, KindUnsubscribeChat, KindChatEvent:
		return ChatTopic, true
	case KindSubscribeTyping, KindUnsubscribeTyping, KindTypingEvent:
		return TypingTopic, true
	}
	return Topic{}, false
}
