package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/cybercongress/cyberauth/ports"
)

// DefaultTopic receives one message per successful wallet login
const DefaultTopic = "cyberauth.wallet.authenticated"

// AuthenticatedEvent represents a successful wallet login
type AuthenticatedEvent struct {
	WalletAddress   string    `json:"wallet_address"`
	SubjectID       string    `json:"subject_id"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
	now       func() time.Time
}

// NewWatermillPublisher creates a new Watermill publisher. An empty topic uses DefaultTopic.
func NewWatermillPublisher(publisher message.Publisher, topic string) ports.EventPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillPublisher{
		publisher: publisher,
		topic:     topic,
		now:       time.Now,
	}
}

// PublishAuthenticated publishes a wallet authenticated event
func (p *WatermillPublisher) PublishAuthenticated(ctx context.Context, walletAddress, subjectID string) error {
	event := AuthenticatedEvent{
		WalletAddress:   walletAddress,
		SubjectID:       subjectID,
		AuthenticatedAt: p.now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("wallet_address", walletAddress)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher drops every event, for deployments without a broker
type NopPublisher struct{}

// PublishAuthenticated does nothing
func (NopPublisher) PublishAuthenticated(context.Context, string, string) error {
	return nil
}
