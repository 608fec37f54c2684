// Package notify fans an escalating alert out to push, SMS, and email
// channels, applying a per-recipient rate limit and
// tolerating individual channel failures without blocking the others.
package notify

import (
	"context"
	"fmt"
)

// Channel names a delivery transport, matching emergency_contacts.channel.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Message is the platform-agnostic content handed to a Provider.
type Message struct {
	Recipient string // user ref for push, phone number for SMS, address for email
	Subject   string
	Body      string
	Urgency   string // normal, high, critical
}

// Provider sends a single message over one channel. Implementations
// return an error string describing the failure rather than retrying;
// the caller decides whether to log and move on.
type Provider interface {
	Channel() Channel
	Send(ctx context.Context, msg Message) error
}

// Registry holds all configured providers, keyed by channel.
type Registry struct {
	providers map[Channel]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[Channel]Provider)}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.providers[p.Channel()] = p
}

// Get returns the provider for a channel.
func (r *Registry) Get(ch Channel) (Provider, error) {
	p, ok := r.providers[ch]
	if !ok {
		return nil, fmt.Errorf("notify provider %q not registered", ch)
	}
	return p, nil
}
