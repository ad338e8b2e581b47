// Package events is the in-process notification bus. Components publish
// "documents changed" instead of calling each other to refetch.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

// TopicDocumentsChanged is published whenever the server document list or the
// local workspace overlay may have changed.
const TopicDocumentsChanged = "documents.changed"

// Reasons carried by DocumentsChanged.
const (
	ReasonUpload    = "upload"
	ReasonMove      = "move"
	ReasonDrive     = "drive"
	ReasonWorkspace = "workspace"
)

// DocumentsChanged is the payload of TopicDocumentsChanged.
type DocumentsChanged struct {
	Reason     string `json:"reason"`
	DocumentID string `json:"documentId,omitempty"`
}

// Bus wraps a watermill go-channel pub/sub.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *zap.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger for handler failures.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// NewBus creates a bus. Close it to release subscribers.
func NewBus(opts ...Option) *Bus {
	b := &Bus{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	b.pubsub = gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 16},
		watermill.NopLogger{},
	)
	return b
}

// PublishDocumentsChanged notifies all current subscribers.
func (b *Bus) PublishDocumentsChanged(ev DocumentsChanged) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(TopicDocumentsChanged, msg); err != nil {
		return fmt.Errorf("publish %s: %w", TopicDocumentsChanged, err)
	}
	return nil
}

// OnDocumentsChanged calls fn for every event until ctx is done or the bus closes.
// The handler runs on a single goroutine owned by the bus subscription.
func (b *Bus) OnDocumentsChanged(ctx context.Context, fn func(DocumentsChanged)) error {
	messages, err := b.pubsub.Subscribe(ctx, TopicDocumentsChanged)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicDocumentsChanged, err)
	}
	go func() {
		for msg := range messages {
			var ev DocumentsChanged
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.logger.Warn("dropping malformed event", zap.String("uuid", msg.UUID), zap.Error(err))
				msg.Ack()
				continue
			}
			fn(ev)
			msg.Ack()
		}
	}()
	return nil
}

// Close stops every subscription.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
