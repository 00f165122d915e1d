package domain

import (
	"fmt"
	"time"
)

// Scope identifies one queue.
type Scope struct {
	Channel ChannelID
	Mode    Mode
	Topic   TopicID
}

func (s Scope) Key() string {
	return fmt.Sprintf("queue:%s:%s:%s", s.Channel, s.Mode, s.Topic)
}

func (s Scope) String() string { return s.Key() }

// WaitingUser is the metadata of a connection sitting in the queues.
type WaitingUser struct {
	ID       ConnID    `json:"id"`
	Channel  ChannelID `json:"channel"`
	Mode     Mode      `json:"mode"`
	Topics   []TopicID `json:"topics"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Scopes returns one scope per selected topic, in selection order.
func (w WaitingUser) Scopes() []Scope {
	out := make([]Scope, 0, len(w.Topics))
	for _, t := range w.Topics {
		out = append(out, Scope{Channel: w.Channel, Mode: w.Mode, Topic: t})
	}
	return out
}

// SameQueues reports whether w and other occupy exactly the same scopes.
func (w WaitingUser) SameQueues(other WaitingUser) bool {
	if w.Channel != other.Channel || w.Mode != other.Mode || len(w.Topics) != len(other.Topics) {
		return false
	}
	set := make(map[TopicID]struct{}, len(w.Topics))
	for _, t := range w.Topics {
		set[t] = struct{}{}
	}
	for _, t := range other.Topics {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

// IntersectTopics keeps the topics of a that also appear in b, in a's order.
func IntersectTopics(a, b []TopicID) []TopicID {
	set := make(map[TopicID]struct{}, len(b))
	for _, t := range b {
		set[t] = struct{}{}
	}
	out := make([]TopicID, 0, len(a))
	for _, t := range a {
		if _, ok := set[t]; ok {
			out = append(out, t)
		}
	}
	return out
}
