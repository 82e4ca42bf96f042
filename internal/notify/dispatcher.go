package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/playguard/playguard/internal/domain"
	"github.com/playguard/playguard/internal/repository"
	"github.com/playguard/playguard/pkg/metrics"
)

const deliveryTimeout = 5 * time.Second

// Channel delivers a notification through one transport.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, notification *domain.Notification) error
}

// Dispatcher persists typed notification rows and hands them to delivery
// channels. Send is fire-and-forget: delivery failures are recorded on the
// row and logged, never surfaced to the calling operation.
type Dispatcher struct {
	repo     repository.NotificationRepository
	catalog  *Catalog
	channels []Channel
	log      *slog.Logger
	now      func() time.Time
}

// NewDispatcher constructs a Dispatcher. A nil catalog falls back to the
// built-in content.
func NewDispatcher(repo repository.NotificationRepository, catalog *Catalog, log *slog.Logger, channels ...Channel) *Dispatcher {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		repo:     repo,
		catalog:  catalog,
		channels: channels,
		log:      log,
		now:      time.Now,
	}
}

// Send records a notification for the user and triggers delivery in the
// background. It never blocks the caller on channel transports.
func (d *Dispatcher) Send(ctx context.Context, userID string, notificationType domain.NotificationType, message string, metadata map[string]string) {
	entry := d.catalog.Entry(notificationType)
	now := d.now().UTC()

	notification := &domain.Notification{
		NotificationID: uuid.NewString(),
		UserID:         userID,
		Type:           notificationType,
		Title:          entry.Title,
		Message:        message,
		Metadata:       metadata,
		Priority:       entry.Priority,
		Status:         domain.NotificationPending,
		CreatedAt:      now,
	}

	if err := d.repo.Create(ctx, notification); err != nil {
		d.log.Error("failed to persist notification",
			slog.String("user_id", userID),
			slog.String("type", string(notificationType)),
			slog.Any("error", err),
		)
		return
	}

	if len(d.channels) == 0 {
		d.markDelivered(ctx, notification)
		return
	}

	go d.deliver(notification)
}

func (d *Dispatcher) deliver(notification *domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	failed := false
	for _, channel := range d.channels {
		if err := channel.Deliver(ctx, notification); err != nil {
			failed = true
			d.log.Warn("notification delivery failed",
				slog.String("channel", channel.Name()),
				slog.String("notification_id", notification.NotificationID),
				slog.Any("error", err),
			)
		}
	}

	if failed {
		metrics.RecordNotification(string(notification.Type), string(domain.NotificationFailed))
		if err := d.repo.UpdateStatus(ctx, notification.NotificationID, domain.NotificationFailed, nil); err != nil {
			d.log.Error("failed to mark notification failed", slog.String("notification_id", notification.NotificationID), slog.Any("error", err))
		}
		return
	}

	d.markDelivered(ctx, notification)
}

func (d *Dispatcher) markDelivered(ctx context.Context, notification *domain.Notification) {
	metrics.RecordNotification(string(notification.Type), string(domain.NotificationSent))
	sentAt := d.now().UTC()
	if err := d.repo.UpdateStatus(ctx, notification.NotificationID, domain.NotificationSent, &sentAt); err != nil {
		d.log.Error("failed to mark notification sent", slog.String("notification_id", notification.NotificationID), slog.Any("error", err))
	}
}
