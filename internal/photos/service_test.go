package photos

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravlo/cardvault/internal/config"
	"github.com/ravlo/cardvault/internal/dbx"
	"github.com/ravlo/cardvault/internal/models"
	"github.com/ravlo/cardvault/internal/repositories/auditlogs"
	photosrepo "github.com/ravlo/cardvault/internal/repositories/photos"
	"github.com/ravlo/cardvault/internal/repositories/sessions"
	"github.com/ravlo/cardvault/internal/repositories/vaultcases"
	"github.com/ravlo/cardvault/internal/repositories/vaultitems"
	"github.com/ravlo/cardvault/internal/repositories/vaultslots"
)

type fakePhotoRepo struct {
	photos    []*models.VerificationPhoto
	insertErr error
	count     int
	countErr  error
}

func (f *fakePhotoRepo) Insert(_ context.Context, photo *models.VerificationPhoto) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.photos = append(f.photos, photo)
	return nil
}

func (f *fakePhotoRepo) CountBySession(_ context.Context, _ string) (int, error) {
	return f.count, f.countErr
}

type fakeManager struct {
	photos *fakePhotoRepo
}

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error   { return nil }
func (m *fakeManager) Sessions(dbx.DBTX) sessions.Repository         { return nil }
func (m *fakeManager) AuditLogs(dbx.DBTX) auditlogs.Repository       { return nil }
func (m *fakeManager) VaultItems(dbx.DBTX) vaultitems.Repository     { return nil }
func (m *fakeManager) VaultSlots(dbx.DBTX) vaultslots.Repository     { return nil }
func (m *fakeManager) VaultCases(dbx.DBTX) vaultcases.Repository     { return nil }
func (m *fakeManager) Photos(dbx.DBTX) photosrepo.Repository         { return m.photos }

func testConfig() *config.Config {
	return &config.Config{
		S3Bucket:       "verification-photos",
		S3Region:       "eu-central-1",
		S3RootUser:     "minio",
		S3RootPassword: "minio123",
		S3BaseEndpoint: "http://localhost:9000",
		PresignExpiry:  15 * time.Minute,
	}
}

func stubAWSSeams(t *testing.T) {
	t.Helper()

	origLoad := loadDefaultAWSConfig
	origNewClient := newS3ClientFromConfig
	origNewPresign := newS3PresignClient
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewClient
		newS3PresignClient = origNewPresign
	})

	loadDefaultAWSConfig = func(_ context.Context, _ ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{Region: "eu-central-1"}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}
}

func TestPresignUpload(t *testing.T) {
	stubAWSSeams(t)

	var gotBucket, gotKey string
	origPut := presignPutObject
	t.Cleanup(func() { presignPutObject = origPut })
	presignPutObject = func(_ *s3.PresignClient, _ context.Context, in *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		gotBucket = aws.ToString(in.Bucket)
		gotKey = aws.ToString(in.Key)
		return &v4.PresignedHTTPRequest{URL: "https://signed.example/put"}, nil
	}

	svc := NewService(nil, &fakeManager{photos: &fakePhotoRepo{}}, testConfig(), nil)

	key, url, err := svc.PresignUpload(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/put", url)
	assert.Equal(t, key, gotKey)
	assert.Equal(t, "verification-photos", gotBucket)
	assert.True(t, strings.HasPrefix(key, "sessions/s1/"), key)
}

func TestPresignUpload_KeysAreUnique(t *testing.T) {
	stubAWSSeams(t)

	origPut := presignPutObject
	t.Cleanup(func() { presignPutObject = origPut })
	presignPutObject = func(_ *s3.PresignClient, _ context.Context, _ *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return &v4.PresignedHTTPRequest{URL: "https://signed.example/put"}, nil
	}

	svc := NewService(nil, &fakeManager{photos: &fakePhotoRepo{}}, testConfig(), nil)

	k1, _, err := svc.PresignUpload(context.Background(), "s1")
	require.NoError(t, err)
	k2, _, err := svc.PresignUpload(context.Background(), "s1")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestPresignDownload(t *testing.T) {
	stubAWSSeams(t)

	var gotKey string
	origGet := presignGetObject
	t.Cleanup(func() { presignGetObject = origGet })
	presignGetObject = func(_ *s3.PresignClient, _ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		gotKey = aws.ToString(in.Key)
		return &v4.PresignedHTTPRequest{URL: "https://signed.example/get"}, nil
	}

	svc := NewService(nil, &fakeManager{photos: &fakePhotoRepo{}}, testConfig(), nil)

	url, err := svc.PresignDownload(context.Background(), "sessions/s1/abc")
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/get", url)
	assert.Equal(t, "sessions/s1/abc", gotKey)
}

func TestPresignUpload_ConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })
	loadDefaultAWSConfig = func(_ context.Context, _ ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no credentials")
	}

	svc := NewService(nil, &fakeManager{photos: &fakePhotoRepo{}}, testConfig(), nil)

	_, _, err := svc.PresignUpload(context.Background(), "s1")
	assert.Error(t, err)
}

func TestRecordUpload(t *testing.T) {
	repo := &fakePhotoRepo{}
	svc := NewService(nil, &fakeManager{photos: repo}, testConfig(), nil)

	photo, err := svc.RecordUpload(context.Background(), "s1", "sessions/s1/abc",
		models.Actor{ID: "m1", Role: models.RoleMerchant})
	require.NoError(t, err)

	require.Len(t, repo.photos, 1)
	assert.Equal(t, "s1", photo.SessionID)
	assert.Equal(t, "sessions/s1/abc", photo.StorageKey)
	assert.Equal(t, "m1", photo.UploadedByID)
	assert.NotEmpty(t, photo.ID)
}

func TestRecordUpload_InsertError(t *testing.T) {
	repo := &fakePhotoRepo{insertErr: errors.New("disk full")}
	svc := NewService(nil, &fakeManager{photos: repo}, testConfig(), nil)

	_, err := svc.RecordUpload(context.Background(), "s1", "k",
		models.Actor{ID: "m1", Role: models.RoleMerchant})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert photo")
}

func TestVerificationEvidence(t *testing.T) {
	tests := []struct {
		count   int
		allowed bool
	}{
		{0, false},
		{2, false},
		{3, true},
		{7, true},
	}

	for _, tc := range tests {
		repo := &fakePhotoRepo{count: tc.count}
		svc := NewService(nil, &fakeManager{photos: repo}, testConfig(), nil)

		res, err := svc.VerificationEvidence(context.Background(), "s1")
		require.NoError(t, err)
		assert.Equal(t, tc.allowed, res.Allowed, "count %d", tc.count)
	}
}
