package notify

import (
	"context"
	"errors"
)

// Kind selects the message template.
type Kind string

const (
	KindVerify Kind = "verify"
	KindReset  Kind = "reset"
)

// ErrDelivery wraps any failure to hand a message to the transport.
var ErrDelivery = errors.New("notification delivery failed")

// Message is a single out-of-band token delivery.
type Message struct {
	Kind  Kind
	To    string
	Token string
	Name  string
}

// Notifier delivers lifecycle tokens to users. Send is synchronous.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
