package mail

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"
)

// Uploader is the subset of manager.Uploader used here.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3DropSender writes each message as an RFC 5322 object into a bucket for a
// downstream relay to pick up.
type S3DropSender struct {
	uploader  Uploader
	bucket    string
	keyPrefix string
	from      string
	now       func() time.Time
}

func NewS3DropSender(client *s3.Client, bucket, keyPrefix, from string) *S3DropSender {
	return newS3DropSender(manager.NewUploader(client), bucket, keyPrefix, from)
}

func newS3DropSender(uploader Uploader, bucket, keyPrefix, from string) *S3DropSender {
	return &S3DropSender{
		uploader:  uploader,
		bucket:    bucket,
		keyPrefix: strings.Trim(keyPrefix, "/"),
		from:      from,
		now:       time.Now,
	}
}

func (s *S3DropSender) Send(ctx context.Context, to, subject, body string) error {
	if s.bucket == "" {
		return fmt.Errorf("mail drop bucket is required")
	}
	if s.from == "" {
		return fmt.Errorf("mail from address is required")
	}

	now := s.now().UTC()
	key := fmt.Sprintf("%s/%s.eml", now.Format("2006/01/02"), uuid.NewString())
	if s.keyPrefix != "" {
		key = s.keyPrefix + "/" + key
	}

	msg, err := s.message(to, subject, body, now)
	if err != nil {
		return err
	}
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(msg),
		ContentType: aws.String("message/rfc822"),
		ACL:         types.ObjectCannedACLPrivate,
	}); err != nil {
		return fmt.Errorf("upload mail %s: %w", key, err)
	}
	return nil
}

func (s *S3DropSender) message(to, subject, body string, at time.Time) ([]byte, error) {
	part, err := enmime.Builder().
		From("", s.from).
		To("", to).
		Subject(subject).
		Date(at).
		HTML([]byte(body)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build mail: %w", err)
	}

	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode mail: %w", err)
	}
	return buf.Bytes(), nil
}
