package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"

	"github.com/reel-recap/recap_api/dto"
)

// ArchiveService keeps a copy of every extracted transcript in object
// storage, keyed by the usage-log id of the request that paid for it.
// Authenticated users retrieve past extractions through presigned URLs
// instead of burning another quota unit.
type ArchiveService struct {
	appContext.DefaultService
	client     *minio.Client
	bucketName string
	endpoint   string
	accessKey  string
	secretKey  string
	useSSL     bool
}

const ARCHIVE_SVC = "archive_svc"

func (svc ArchiveService) Id() string {
	return ARCHIVE_SVC
}

func (svc *ArchiveService) Configure(ctx *appContext.Context) error {
	svc.endpoint = os.Getenv("MINIO_ENDPOINT")
	if svc.endpoint == "" {
		svc.endpoint = "localhost:9000"
	}

	svc.accessKey = os.Getenv("MINIO_ACCESS_KEY")
	if svc.accessKey == "" {
		svc.accessKey = "admin"
	}

	svc.secretKey = os.Getenv("MINIO_SECRET_KEY")
	if svc.secretKey == "" {
		svc.secretKey = "password123"
	}

	svc.useSSL = os.Getenv("MINIO_USE_SSL") == "true"

	svc.bucketName = os.Getenv("MINIO_BUCKET_NAME")
	if svc.bucketName == "" {
		svc.bucketName = "recap-transcripts"
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *ArchiveService) Start() error {
	client, err := minio.New(svc.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(svc.accessKey, svc.secretKey, ""),
		Secure: svc.useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %v", err)
	}

	svc.client = client

	if err := svc.ensureBucket(); err != nil {
		return fmt.Errorf("failed to ensure bucket exists: %v", err)
	}

	log.WithField("endpoint", svc.endpoint).Info("Archive service started")
	return nil
}

func (svc *ArchiveService) ensureBucket() error {
	ctx := context.Background()

	exists, err := svc.client.BucketExists(ctx, svc.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %v", err)
	}

	if !exists {
		err = svc.client.MakeBucket(ctx, svc.bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %v", err)
		}
		log.Printf("Created MinIO bucket: %s", svc.bucketName)
	}

	return nil
}

// StoreTranscript uploads the transcript payload under the usage-log id
// and returns the object key.
func (svc *ArchiveService) StoreTranscript(ctx context.Context, logID string, transcript *dto.TranscriptResponse) (string, error) {
	payload, err := sonic.Marshal(transcript)
	if err != nil {
		return "", fmt.Errorf("failed to encode transcript: %v", err)
	}

	objectName := fmt.Sprintf("transcripts/%s.json", logID)
	_, err = svc.client.PutObject(ctx, svc.bucketName, objectName, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload transcript: %v", err)
	}

	return objectName, nil
}

// TranscriptURL returns a presigned download link for an archived
// transcript.
func (svc *ArchiveService) TranscriptURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	presignedURL, err := svc.client.PresignedGetObject(ctx, svc.bucketName, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %v", err)
	}

	return presignedURL.String(), nil
}
