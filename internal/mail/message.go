// Package mail renders and delivers account emails. Password reset mail is
// sent inline because the caller reports its failure; everything else goes
// through an Outbox and is best effort.
package mail

import (
	"errors"
	"fmt"
)

var ErrUnknownKind = errors.New("unknown mail kind")

// Message is what travels through the outbox stream.
type Message struct {
	Kind      Kind   `json:"kind"`
	To        string `json:"to"`
	FirstName string `json:"firstName"`
	ResetURL  string `json:"resetUrl,omitempty"`
}

func (m Message) values() map[string]any {
	values := map[string]any{
		"kind":      string(m.Kind),
		"to":        m.To,
		"firstName": m.FirstName,
	}
	if m.ResetURL != "" {
		values["resetUrl"] = m.ResetURL
	}
	return values
}

func messageFromValues(values map[string]any) (Message, error) {
	str := func(key string) string {
		if v, ok := values[key]; ok {
			return fmt.Sprint(v)
		}
		return ""
	}
	msg := Message{
		Kind:      Kind(str("kind")),
		To:        str("to"),
		FirstName: str("firstName"),
		ResetURL:  str("resetUrl"),
	}
	if msg.To == "" {
		return Message{}, errors.New("message has no recipient")
	}
	return msg, nil
}
