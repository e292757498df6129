// Package photos implements verification-photo handling: presigned S3 URLs
// for upload/download (the web layer moves the bytes, never this core) and
// the photo count feeding the verification guard.
package photos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/ravlo/cardvault/internal/config"
	"github.com/ravlo/cardvault/internal/escrow"
	"github.com/ravlo/cardvault/internal/models"
	"github.com/ravlo/cardvault/internal/repositories/repomanager"
)

// Seams for testing the AWS presign plumbing.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Service issues presigned URLs and records uploaded photos.
type Service struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *config.Config
	audit       *escrow.TransitionService
	now         func() time.Time
}

// NewService constructs a photo Service. audit is used for best-effort
// PHOTO_UPLOADED events and may be nil.
func NewService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, audit *escrow.TransitionService) *Service {
	return &Service{db: db, repomanager: m, config: cfg, audit: audit, now: time.Now}
}

func storageKey(sessionID string) string {
	return fmt.Sprintf("sessions/%s/%v", sessionID, uuid.New())
}

func (s *Service) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

// PresignUpload returns a storage key and a presigned PUT URL the web layer
// hands to the uploading client.
func (s *Service) PresignUpload(ctx context.Context, sessionID string) (string, string, error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key := storageKey(sessionID)

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.PresignExpiry))
	if err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}

// PresignDownload returns a presigned GET URL for a stored photo.
func (s *Service) PresignDownload(ctx context.Context, key string) (string, error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.PresignExpiry))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}

// RecordUpload persists the photo row after the client confirmed its upload,
// and emits a best-effort audit event.
func (s *Service) RecordUpload(ctx context.Context, sessionID, key string, actor models.Actor) (*models.VerificationPhoto, error) {
	photo := &models.VerificationPhoto{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		StorageKey:   key,
		UploadedByID: actor.ID,
		CreatedAt:    s.now(),
	}
	if err := s.repomanager.Photos(s.db).Insert(ctx, photo); err != nil {
		return nil, fmt.Errorf("insert photo: %w", err)
	}

	if s.audit != nil {
		s.audit.CreateAuditEvent(ctx, sessionID, "PHOTO_UPLOADED", actor,
			map[string]string{"storage_key": key}, nil)
	}
	return photo, nil
}

// CountForSession returns how many verification photos the session has.
func (s *Service) CountForSession(ctx context.Context, sessionID string) (int, error) {
	return s.repomanager.Photos(s.db).CountBySession(ctx, sessionID)
}

// VerificationEvidence evaluates the photo-count guard for the session.
func (s *Service) VerificationEvidence(ctx context.Context, sessionID string) (escrow.GuardResult, error) {
	n, err := s.CountForSession(ctx, sessionID)
	if err != nil {
		return escrow.GuardResult{}, err
	}
	return escrow.CanCompleteVerification(n), nil
}
