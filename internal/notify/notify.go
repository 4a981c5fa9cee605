// Package notify records per-recipient alerts emitted by request lifecycle
// transitions. Publishing is best effort: a failed insert is logged and never
// propagates to the operation that triggered it.
package notify

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/google/uuid"

	"desakita/internal/domain"
	"desakita/internal/repo"
)

// ErrNotFound is returned when a notification is missing or outside the
// reader's scope.
var ErrNotFound = repo.ErrNotFound

type Sink struct {
	DB     *sql.DB
	Logger *log.Logger
	Now    func() time.Time
}

func New(db *sql.DB) Sink {
	return Sink{DB: db, Now: time.Now}
}

func (s Sink) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

func (s Sink) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// NotifyUser appends an alert addressed to a single user. Returns the
// notification id, or empty string when the insert failed.
func (s Sink) NotifyUser(ctx context.Context, userID, title, message, kind, link string) string {
	return s.publish(ctx, domain.RecipientUser, userID, title, message, kind, link)
}

// NotifyAdmins appends an alert addressed to every administrator.
func (s Sink) NotifyAdmins(ctx context.Context, title, message, kind, link string) string {
	return s.publish(ctx, domain.RecipientAdmins, "", title, message, kind, link)
}

func (s Sink) publish(ctx context.Context, recipientKind, userID, title, message, kind, link string) string {
	id := uuid.New().String()
	createdAt := s.now().UTC().Format(time.RFC3339)
	_, err := s.DB.ExecContext(ctx, `INSERT INTO notifications(id, recipient_kind, user_id, title, message, kind, link, is_read, created_at)
		VALUES (?,?,?,?,?,?,?,0,?)`,
		id, recipientKind, nullable(userID), title, message, kind, nullable(link), createdAt)
	if err != nil {
		s.logger().Printf("notify: insert failed recipient_kind=%s: %v", recipientKind, err)
		return ""
	}
	return id
}

// Scope resolves which notifications a reader may see: administrators see
// their own plus the admins broadcast, everyone else only their own.
type Scope struct {
	UserID string
	Admin  bool
}

func (sc Scope) where() (string, []any) {
	if sc.Admin {
		return `((recipient_kind='user' AND user_id=?) OR recipient_kind='admins')`, []any{sc.UserID}
	}
	return `(recipient_kind='user' AND user_id=?)`, []any{sc.UserID}
}

func (s Sink) List(ctx context.Context, sc Scope, limit int, unreadOnly bool) ([]domain.Notification, error) {
	where, args := sc.where()
	if unreadOnly {
		where += ` AND is_read=0`
	}
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)
	rows, err := s.DB.QueryContext(ctx, `SELECT id, recipient_kind, user_id, title, message, kind, link, is_read, created_at
		FROM notifications WHERE `+where+` ORDER BY created_at DESC, id DESC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var userID, link sql.NullString
		var read int
		if err := rows.Scan(&n.ID, &n.RecipientKind, &userID, &n.Title, &n.Message, &n.Kind, &link, &read, &n.CreatedAt); err != nil {
			return nil, err
		}
		if userID.Valid {
			n.UserID = &userID.String
		}
		if link.Valid {
			n.Link = &link.String
		}
		n.Read = read == 1
		res = append(res, n)
	}
	return res, rows.Err()
}

func (s Sink) UnreadCount(ctx context.Context, sc Scope) (int, error) {
	where, args := sc.where()
	var count int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE `+where+` AND is_read=0`, args...).Scan(&count)
	return count, err
}

// MarkRead flags one notification as read, only within the reader's scope.
func (s Sink) MarkRead(ctx context.Context, sc Scope, id string) error {
	where, args := sc.where()
	args = append([]any{id}, args...)
	res, err := s.DB.ExecContext(ctx, `UPDATE notifications SET is_read=1 WHERE id=? AND `+where, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s Sink) MarkAllRead(ctx context.Context, sc Scope) error {
	where, args := sc.where()
	_, err := s.DB.ExecContext(ctx, `UPDATE notifications SET is_read=1 WHERE `+where, args...)
	return err
}

func (s Sink) Delete(ctx context.Context, sc Scope, id string) error {
	where, args := sc.where()
	args = append([]any{id}, args...)
	res, err := s.DB.ExecContext(ctx, `DELETE FROM notifications WHERE id=? AND `+where, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s Sink) ClearAll(ctx context.Context, sc Scope) error {
	where, args := sc.where()
	_, err := s.DB.ExecContext(ctx, `DELETE FROM notifications WHERE `+where, args...)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
