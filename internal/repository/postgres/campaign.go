package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/service/campaign"
)

const campaignColumns = `id, name, subject, template_id, target_segment, content, status,
		       created_at, sent_at, recipient_count, failure_reason`

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*domain.Campaign, error) {
	var (
		c         domain.Campaign
		sentAt    sql.NullTime
		recipient sql.NullInt64
		reason    sql.NullString
	)
	if err := row.Scan(
		&c.ID, &c.Name, &c.Subject, &c.TemplateID, &c.TargetSegment, &c.Content, &c.Status,
		&c.CreatedAt, &sentAt, &recipient, &reason,
	); err != nil {
		return nil, err
	}
	if sentAt.Valid {
		t := sentAt.Time
		c.SentAt = &t
	}
	if recipient.Valid {
		n := int(recipient.Int64)
		c.RecipientCount = &n
	}
	if reason.Valid {
		s := reason.String
		c.FailureReason = &s
	}
	return &c, nil
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, name, subject, template_id, target_segment, content, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.Name, c.Subject, c.TemplateID, c.TargetSegment, c.Content, c.Status, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE id = $1
	`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
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
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	idx := len(args) + 1
	q := fmt.Sprintf(`SELECT %s FROM campaigns%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		campaignColumns, where, idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	return out, total, nil
}

func (r *CampaignRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM campaigns WHERE id = $1 AND status = $2`,
		id, domain.CampaignDraft,
	)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return r.checkAffected(ctx, res, id)
}

func (r *CampaignRepo) TransitionStatus(ctx context.Context, id string, from, to domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET status = $1 WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("transition campaign status: %w", err)
	}
	return r.checkAffected(ctx, res, id)
}

func (r *CampaignRepo) Complete(ctx context.Context, id string, c domain.Completion) error {
	var reason interface{}
	if c.FailureReason != nil {
		reason = *c.FailureReason
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = $1, sent_at = $2, recipient_count = $3, failure_reason = $4
		WHERE id = $5 AND status = $6
	`, c.Status, c.SentAt, c.RecipientCount, reason, id, domain.CampaignSending)
	if err != nil {
		return fmt.Errorf("complete campaign: %w", err)
	}
	return r.checkAffected(ctx, res, id)
}

func (r *CampaignRepo) Count(ctx context.Context, status domain.CampaignStatus) (int, error) {
	q := `SELECT COUNT(*) FROM campaigns`
	args := []interface{}{}
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, status)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count campaigns: %w", err)
	}
	return n, nil
}

// checkAffected resolves a conditional write that touched no rows into
// ErrNotFound or ErrInvalidState.
func (r *CampaignRepo) checkAffected(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM campaigns WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check campaign exists: %w", err)
	}
	if !exists {
		return campaign.ErrNotFound
	}
	return campaign.ErrInvalidState
}
