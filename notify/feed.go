package notify

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ErrNotFound is returned when a notification does not exist or belongs to
// another recipient.
var ErrNotFound = errors.New("notify: notification not found")

// Feed reads and acknowledges a user's stored notifications.
type Feed struct {
	db bun.IDB
}

// NewFeed creates a Feed over db.
func NewFeed(db bun.IDB) *Feed {
	return &Feed{db: db}
}

// Unread returns the unread notifications of userID, newest first.
func (f *Feed) Unread(ctx context.Context, userID int64) ([]Notification, error) {
	var rows []Notification
	err := f.db.NewSelect().
		Model(&rows).
		Where("?TableAlias.recipient_id = ?", userID).
		Where("?TableAlias.unread = ?", true).
		OrderExpr("?TableAlias.created_at DESC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, "feed: unread")
	}
	return rows, nil
}

// MarkRead marks one notification of userID as read.
func (f *Feed) MarkRead(ctx context.Context, userID int64, id uuid.UUID) error {
	res, err := f.db.NewUpdate().
		Model((*Notification)(nil)).
		Set("unread = ?", false).
		Where("id = ?", id).
		Where("recipient_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return errors.Wrapf(err, "feed: mark %s read", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrNotFound, "id %s", id)
	}
	return nil
}

// MarkAllRead marks every unread notification of userID as read and returns
// how many changed.
func (f *Feed) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	res, err := f.db.NewUpdate().
		Model((*Notification)(nil)).
		Set("unread = ?", false).
		Where("recipient_id = ?", userID).
		Where("unread = ?", true).
		Exec(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "feed: mark all read")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Models returns the bun models owned by this package.
func Models() []any {
	return []any{(*Notification)(nil)}
}
