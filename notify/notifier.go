package notify

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Publisher delivers a message to every connected session.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Notifier stores notifications and publishes them.
type Notifier struct {
	db        bun.IDB
	publisher Publisher
	logger    *zap.Logger
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithNotifierLogger sets the logger. Defaults to a no-op logger.
func WithNotifierLogger(logger *zap.Logger) NotifierOption {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNotifier creates a Notifier writing rows to db and messages to publisher.
func NewNotifier(db bun.IDB, publisher Publisher, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		db:        db,
		publisher: publisher,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.Named("notify")
	return n
}

// NotifyOption adjusts a single Notify call.
type NotifyOption func(*Message)

// WithKey overrides the message key.
func WithKey(key string) NotifyOption {
	return func(m *Message) { m.Key = key }
}

// WithIDValue overrides the id_value sent with the message.
func WithIDValue(v string) NotifyOption {
	return func(m *Message) { m.IDValue = v }
}

// Notify stores one notification per recipient and publishes one message to
// Group. Nothing happens when there are no recipients or when the only
// recipient is the actor. It reports whether a message was published.
func (n *Notifier) Notify(ctx context.Context, actor Actor, recipients []int64, verb Verb, target Target, opts ...NotifyOption) (bool, error) {
	if len(recipients) == 0 {
		return false, nil
	}
	if len(recipients) == 1 && recipients[0] == actor.ID {
		return false, nil
	}

	rows := make([]*Notification, 0, len(recipients))
	for _, r := range recipients {
		rows = append(rows, &Notification{
			ID:          uuid.New(),
			ActorID:     actor.ID,
			RecipientID: r,
			Verb:        verb,
			ActionType:  target.Type,
			ActionID:    target.ID,
			Unread:      true,
		})
	}
	if _, err := n.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return false, errors.Wrap(err, "notify: insert notifications")
	}

	msg := Message{
		Type:       MessageType,
		Key:        DefaultKey,
		ActorName:  actor.Name,
		IDValue:    target.idValue(),
		Msg:        describe(actor, verb, target),
		Recipients: append([]int64(nil), recipients...),
	}
	for _, opt := range opts {
		opt(&msg)
	}

	if n.publisher == nil {
		return false, nil
	}
	if err := n.publisher.Publish(ctx, msg); err != nil {
		return false, errors.Wrap(err, "notify: publish")
	}
	n.logger.Debug("published notification",
		zap.String("key", msg.Key),
		zap.Int64("actor", actor.ID),
		zap.Int("recipients", len(recipients)),
	)
	return true, nil
}
