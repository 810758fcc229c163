package ports

import "context"

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishAuthenticated(ctx context.Context, walletAddress, subjectID string) error
}
