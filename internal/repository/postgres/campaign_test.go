package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/service/campaign"
)

var campaignCols = []string{
	"id", "name", "subject", "template_id", "target_segment", "content", "status",
	"created_at", "sent_at", "recipient_count", "failure_reason",
}

func newMock(t *testing.T) (*CampaignRepo, *SubscriberRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCampaignRepo(db), NewSubscriberRepo(db), mock
}

func TestCampaignRepo_Get(t *testing.T) {
	repo, _, mock := newMock(t)
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	sent := created.Add(time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM campaigns WHERE id = \\$1").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(campaignCols).
			AddRow("c1", "Spring", "Rates", "newsletter", "all", "<p>x</p>", "failed",
				created, sent, int64(3), "1 of 3 deliveries failed"))

	c, err := repo.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignFailed, c.Status)
	assert.Equal(t, domain.TemplateNewsletter, c.TemplateID)
	require.NotNil(t, c.SentAt)
	assert.True(t, c.SentAt.Equal(sent))
	require.NotNil(t, c.RecipientCount)
	assert.Equal(t, 3, *c.RecipientCount)
	require.NotNil(t, c.FailureReason)
	assert.Equal(t, "1 of 3 deliveries failed", *c.FailureReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_GetDraftHasNilSummary(t *testing.T) {
	repo, _, mock := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM campaigns").
		WillReturnRows(sqlmock.NewRows(campaignCols).
			AddRow("c1", "n", "s", "default", "all", "c", "draft", time.Now(), nil, nil, nil))

	c, err := repo.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Nil(t, c.SentAt)
	assert.Nil(t, c.RecipientCount)
	assert.Nil(t, c.FailureReason)
}

func TestCampaignRepo_GetNotFound(t *testing.T) {
	repo, _, mock := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM campaigns").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(campaignCols))

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, campaign.ErrNotFound)
}

func TestCampaignRepo_Create(t *testing.T) {
	repo, _, mock := newMock(t)
	c := &domain.Campaign{
		ID: "c1", Name: "n", Subject: "s", TemplateID: domain.TemplateDefault,
		TargetSegment: domain.SegmentAll, Content: "body", Status: domain.CampaignDraft,
		CreatedAt: time.Now(),
	}
	mock.ExpectExec("INSERT INTO campaigns").
		WithArgs("c1", "n", "s", "default", "all", "body", "draft", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_TransitionStatus(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "won the transition",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE campaigns SET status = \\$1 WHERE id = \\$2 AND status = \\$3").
					WithArgs("sending", "c1", "draft").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "already moved on",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE campaigns").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("SELECT EXISTS").
					WithArgs("c1").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			},
			wantErr: campaign.ErrInvalidState,
		},
		{
			name: "missing campaign",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE campaigns").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("SELECT EXISTS").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			},
			wantErr: campaign.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _, mock := newMock(t)
			tt.setup(mock)
			err := repo.TransitionStatus(context.Background(), "c1", domain.CampaignDraft, domain.CampaignSending)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCampaignRepo_Complete(t *testing.T) {
	repo, _, mock := newMock(t)
	reason := "2 of 5 deliveries failed"
	mock.ExpectExec("UPDATE campaigns\\s+SET status = \\$1, sent_at = \\$2, recipient_count = \\$3, failure_reason = \\$4").
		WithArgs("failed", sqlmock.AnyArg(), 5, reason, "c1", "sending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Complete(context.Background(), "c1", domain.Completion{
		Status: domain.CampaignFailed, SentAt: time.Now(), RecipientCount: 5, FailureReason: &reason,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_DeleteNonDraft(t *testing.T) {
	repo, _, mock := newMock(t)
	mock.ExpectExec("DELETE FROM campaigns WHERE id = \\$1 AND status = \\$2").
		WithArgs("c1", "draft").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	assert.ErrorIs(t, repo.Delete(context.Background(), "c1"), campaign.ErrInvalidState)
}

func TestCampaignRepo_ListWithStatus(t *testing.T) {
	repo, _, mock := newMock(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM campaigns WHERE status = \\$1").
		WithArgs("sent").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery("ORDER BY created_at DESC, id LIMIT \\$2 OFFSET \\$3").
		WithArgs("sent", 2, 4).
		WillReturnRows(sqlmock.NewRows(campaignCols).
			AddRow("c5", "n", "s", "default", "all", "c", "sent", time.Now(), time.Now(), int64(1), nil).
			AddRow("c6", "n", "s", "default", "all", "c", "sent", time.Now(), time.Now(), int64(2), nil))

	out, total, err := repo.List(context.Background(), campaign.ListFilter{Status: domain.CampaignSent, Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Len(t, out, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_CountError(t *testing.T) {
	repo, _, mock := newMock(t)
	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("connection reset"))

	_, err := repo.Count(context.Background(), "")
	assert.Error(t, err)
}
