package worker

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-mailer/internal/config"
	"github.com/ignite/campaign-mailer/internal/service/sending"
)

func TestNewTransport(t *testing.T) {
	cases := map[string]interface{}{
		"smtp": &SMTPSender{},
		"ses":  &SESSender{},
		"log":  &LogSender{},
	}
	for name, want := range cases {
		tr, err := NewTransport(config.MailConfig{Transport: name, SES: config.SESConfig{Region: "us-west-2"}})
		require.NoError(t, err, name)
		assert.IsType(t, want, tr, name)
	}

	_, err := NewTransport(config.MailConfig{Transport: "pigeon"})
	assert.Error(t, err)
}

func TestLogSender(t *testing.T) {
	s := NewLogSender()
	require.NoError(t, s.Send(context.Background(), testMessage("a@example.com")))
	assert.EqualValues(t, 1, s.Sent())
}

// fakeSES captures SendEmail input.
type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	api := &fakeSES{}
	s := &SESSender{region: "us-west-2", client: api}

	require.NoError(t, s.Send(context.Background(), testMessage("a@example.com")))
	require.NotNil(t, api.input)
	assert.Equal(t, "InsurancePro <news@example.com>", aws.ToString(api.input.FromEmailAddress))
	assert.Equal(t, []string{"a@example.com"}, api.input.Destination.ToAddresses)
	assert.Equal(t, "<p>Hi</p>", aws.ToString(api.input.Content.Simple.Body.Html.Data))
	assert.Equal(t, "Hi", aws.ToString(api.input.Content.Simple.Body.Text.Data))
}

func TestSESSender_ErrorClassification(t *testing.T) {
	s := &SESSender{client: &fakeSES{err: errors.New("MessageRejected: address blacklisted")}}
	err := s.Send(context.Background(), testMessage("a@example.com"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, sending.ErrTransportUnavailable))

	s = &SESSender{client: &fakeSES{err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}}
	err = s.Send(context.Background(), testMessage("a@example.com"))
	assert.ErrorIs(t, err, sending.ErrTransportUnavailable)

	err = (&SESSender{}).Send(context.Background(), testMessage("a@example.com"))
	assert.ErrorIs(t, err, sending.ErrTransportUnavailable)
}
