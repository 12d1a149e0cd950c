// internal/workers/kyc/process-kyc-completion/dispatcher.go
package processkyccompletion

import (
	"context"
	"fmt"

	"kyc-workers/internal/models"
)

// Dispatcher hands one notification to a delivery capability.
type Dispatcher interface {
	Dispatch(ctx context.Context, n *models.NotificationDispatch) error
	Channel() string
}

type NotificationStore interface {
	InsertNotification(ctx context.Context, n *models.NotificationDispatch) error
}

// DatabaseDispatcher writes to the notifications table read by the admin inbox.
type DatabaseDispatcher struct {
	store NotificationStore
}

func NewDatabaseDispatcher(store NotificationStore) *DatabaseDispatcher {
	return &DatabaseDispatcher{store: store}
}

func (d *DatabaseDispatcher) Dispatch(ctx context.Context, n *models.NotificationDispatch) error {
	return d.store.InsertNotification(ctx, n)
}

func (d *DatabaseDispatcher) Channel() string { return "database" }

type TopicPublisher interface {
	PublishJSON(ctx context.Context, subject string, payload interface{}, attrs map[string]string) (string, error)
}

// SNSDispatcher publishes to a topic consumed by the delivery service.
type SNSDispatcher struct {
	publisher TopicPublisher
}

func NewSNSDispatcher(p TopicPublisher) *SNSDispatcher {
	return &SNSDispatcher{publisher: p}
}

func (d *SNSDispatcher) Dispatch(ctx context.Context, n *models.NotificationDispatch) error {
	_, err := d.publisher.PublishJSON(ctx, n.Title, n, map[string]string{
		"recipient_type": n.RecipientType,
		"category":       n.Category,
		"priority":       n.Priority,
	})
	if err != nil {
		return fmt.Errorf("publish notification for %s: %w", n.RecipientID, err)
	}
	return nil
}

func (d *SNSDispatcher) Channel() string { return "sns" }
