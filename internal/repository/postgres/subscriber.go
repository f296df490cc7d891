package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/service/subscriber"
)

const subscriberColumns = `email, name, status, subscribed_at, unsubscribed_at`

// uniqueViolation is the SQLSTATE Postgres reports for a duplicate key.
const uniqueViolation = "23505"

// SubscriberRepo implements subscriber.Repository against PostgreSQL.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

func scanSubscriber(row rowScanner) (*domain.Subscriber, error) {
	var (
		s     domain.Subscriber
		unsub sql.NullTime
	)
	if err := row.Scan(&s.Email, &s.Name, &s.Status, &s.SubscribedAt, &unsub); err != nil {
		return nil, err
	}
	if unsub.Valid {
		t := unsub.Time
		s.UnsubscribedAt = &t
	}
	return &s, nil
}

func (r *SubscriberRepo) Create(ctx context.Context, s *domain.Subscriber) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscribers (email, name, status, subscribed_at)
		VALUES ($1, $2, $3, $4)
	`, s.Email, s.Name, s.Status, s.SubscribedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return subscriber.ErrDuplicate
		}
		return fmt.Errorf("create subscriber: %w", err)
	}
	return nil
}

func (r *SubscriberRepo) Get(ctx context.Context, email string) (*domain.Subscriber, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE email = $1`, email)
	s, err := scanSubscriber(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, subscriber.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return s, nil
}

func (r *SubscriberRepo) Reactivate(ctx context.Context, email, name string) (*domain.Subscriber, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE subscribers
		SET status = $1, unsubscribed_at = NULL,
		    name = CASE WHEN $2 = '' THEN name ELSE $2 END
		WHERE email = $3 AND status = $4
		RETURNING `+subscriberColumns,
		domain.SubscriberActive, name, email, domain.SubscriberUnsubscribed)
	s, err := scanSubscriber(row)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.Get(ctx, email); getErr != nil {
			return nil, getErr
		}
		return nil, subscriber.ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("reactivate subscriber: %w", err)
	}
	return s, nil
}

func (r *SubscriberRepo) MarkUnsubscribed(ctx context.Context, email string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscribers SET status = $1, unsubscribed_at = $2
		WHERE email = $3 AND status = $4
	`, domain.SubscriberUnsubscribed, at, email, domain.SubscriberActive)
	if err != nil {
		return false, fmt.Errorf("unsubscribe: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *SubscriberRepo) Recipients(ctx context.Context, activeOnly bool) ([]domain.Subscriber, error) {
	q := `SELECT ` + subscriberColumns + ` FROM subscribers`
	args := []interface{}{}
	if activeOnly {
		q += ` WHERE status = $1`
		args = append(args, domain.SubscriberActive)
	}
	q += ` ORDER BY subscribed_at ASC, email ASC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query recipients: %w", err)
	}
	defer rows.Close()
	return collectSubscribers(rows)
}

func (r *SubscriberRepo) List(ctx context.Context, f subscriber.ListFilter) ([]domain.Subscriber, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := ""
	args := []interface{}{}
	if f.Status != "" {
		where = " WHERE status = $1"
		args = append(args, f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscribers`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count subscribers: %w", err)
	}

	idx := len(args) + 1
	q := fmt.Sprintf(`SELECT %s FROM subscribers%s ORDER BY subscribed_at DESC, email LIMIT $%d OFFSET $%d`,
		subscriberColumns, where, idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()
	out, err := collectSubscribers(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *SubscriberRepo) Count(ctx context.Context, status domain.SubscriberStatus) (int, error) {
	q := `SELECT COUNT(*) FROM subscribers`
	args := []interface{}{}
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, status)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return n, nil
}

func collectSubscribers(rows *sql.Rows) ([]domain.Subscriber, error) {
	var out []domain.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}
	return out, nil
}
