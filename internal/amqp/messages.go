package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// OutboundMail is a rendered email waiting in the outbox for the mail worker.
// The body travels whole. UserID and Period identify a monthly report so the
// worker can confirm its delivery; both are empty for other mail.
type OutboundMail struct {
	ID        string    `json:"id"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	HTML      string    `json:"html"`
	UserID    int64     `json:"user_id,omitempty"`
	Period    string    `json:"period,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewOutboundMail creates a message with a fresh ID
func NewOutboundMail(to, subject, html string) *OutboundMail {
	return &OutboundMail{
		ID:        uuid.NewString(),
		To:        to,
		Subject:   subject,
		HTML:      html,
		Timestamp: time.Now(),
	}
}

func (m *OutboundMail) Validate() error {
	if m.To == "" {
		return errors.New("outbound mail has no recipient")
	}
	if m.ID == "" {
		return errors.New("outbound mail has no id")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *OutboundMail) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// OutboundMailFromJSON creates a message from JSON bytes
func OutboundMailFromJSON(data []byte) (*OutboundMail, error) {
	var msg OutboundMail
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
