package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jhillyerd/enmime"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	to, subject, body string
}

func recorder(out *[]sent, err error) Sender {
	return SenderFunc(func(_ context.Context, to, subject, body string) error {
		*out = append(*out, sent{to, subject, body})
		return err
	})
}

func TestMailer_SendMagicLink(t *testing.T) {
	var got []sent
	m := NewMailer(recorder(&got, nil), "https://app.example.com/")

	require.NoError(t, m.SendMagicLink(context.Background(), "a@example.com", "tok.en", 10*time.Minute))
	require.Len(t, got, 1)
	assert.Equal(t, "a@example.com", got[0].to)
	assert.Equal(t, MagicLinkSubject, got[0].subject)
	assert.Contains(t, got[0].body, `href="https://app.example.com/magic-login/tok.en"`)
	assert.Contains(t, got[0].body, "expires in 10 minutes")
}

func TestMailer_SendVerification(t *testing.T) {
	var got []sent
	m := NewMailer(recorder(&got, nil), "http://localhost:8080")

	require.NoError(t, m.SendVerification(context.Background(), "b@example.com", "abc123"))
	require.Len(t, got, 1)
	assert.Equal(t, VerificationSubject, got[0].subject)
	assert.Contains(t, got[0].body, `href="http://localhost:8080/verify/abc123"`)
}

func TestMailer_SenderError(t *testing.T) {
	var got []sent
	boom := errors.New("smtp down")
	m := NewMailer(recorder(&got, boom), "http://x")

	err := m.SendVerification(context.Background(), "c@example.com", "t")
	assert.ErrorIs(t, err, boom)
}

func TestHumanizeTTL(t *testing.T) {
	assert.Equal(t, "10 minutes", humanizeTTL(10*time.Minute))
	assert.Equal(t, "1 minute", humanizeTTL(time.Minute))
	assert.Equal(t, "2 hours", humanizeTTL(2*time.Hour))
	assert.Equal(t, "90 seconds", humanizeTTL(90*time.Second))
	assert.Equal(t, "1.5s", humanizeTTL(1500*time.Millisecond))
	assert.Equal(t, "a short while", humanizeTTL(0))
}

func TestLogSender(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	require.NoError(t, NewLogSender(logger).Send(context.Background(), "d@example.com", "hi", "<p>body</p>"))
	require.Len(t, hook.Entries, 2)
	assert.Equal(t, "d@example.com", hook.Entries[0].Data["to"])
	assert.Equal(t, "<p>body</p>", hook.Entries[1].Message)
}

type fakeSES struct {
	in  *sesv2.SendEmailInput
	out *sesv2.SendEmailOutput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	return f.out, f.err
}

func TestSESSender(t *testing.T) {
	client := &fakeSES{out: &sesv2.SendEmailOutput{MessageId: aws.String("m-1")}}
	s := NewSESSender(client, "no-reply@example.com")

	require.NoError(t, s.Send(context.Background(), "e@example.com", "subj", "<b>x</b>"))
	require.NotNil(t, client.in)
	assert.Equal(t, "no-reply@example.com", aws.ToString(client.in.FromEmailAddress))
	assert.Equal(t, []string{"e@example.com"}, client.in.Destination.ToAddresses)
	assert.Equal(t, "subj", aws.ToString(client.in.Content.Simple.Subject.Data))
	assert.Equal(t, "<b>x</b>", aws.ToString(client.in.Content.Simple.Body.Html.Data))

	client.err = errors.New("throttled")
	assert.ErrorIs(t, s.Send(context.Background(), "e@example.com", "subj", "b"), client.err)

	assert.Error(t, NewSESSender(client, "").Send(context.Background(), "e@example.com", "s", "b"))
}

type fakeUploader struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{}, nil
}

func TestS3DropSender(t *testing.T) {
	up := &fakeUploader{}
	s := newS3DropSender(up, "mail-drop", "/outbox/", "no-reply@example.com")
	s.now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }

	require.NoError(t, s.Send(context.Background(), "f@example.com", "Hello", "<p>hi</p>"))
	require.NotNil(t, up.input)
	assert.Equal(t, "mail-drop", aws.ToString(up.input.Bucket))
	assert.Regexp(t, `^outbox/2026/02/03/[0-9a-f-]{36}\.eml$`, aws.ToString(up.input.Key))
	assert.Equal(t, "message/rfc822", aws.ToString(up.input.ContentType))

	env, err := enmime.ReadEnvelope(bytes.NewReader(up.body))
	require.NoError(t, err)
	assert.Contains(t, env.GetHeader("To"), "f@example.com")
	assert.Contains(t, env.GetHeader("From"), "no-reply@example.com")
	assert.Equal(t, "Hello", env.GetHeader("Subject"))
	assert.Equal(t, "<p>hi</p>", strings.TrimSpace(env.HTML))

	up.err = errors.New("denied")
	assert.ErrorIs(t, s.Send(context.Background(), "f@example.com", "Hello", "b"), up.err)

	assert.Error(t, newS3DropSender(up, "", "", "no-reply@example.com").Send(context.Background(), "f@example.com", "s", "b"))
	assert.Error(t, newS3DropSender(up, "mail-drop", "", "").Send(context.Background(), "f@example.com", "s", "b"))
}
