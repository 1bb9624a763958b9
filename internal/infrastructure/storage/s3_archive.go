package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"lexmatch.backend/internal/domain/entities"
	domainerrors "lexmatch.backend/internal/domain/errors"
	"lexmatch.backend/pkg/logger"
)

// ArchiveConfig points at an S3-compatible bucket (AWS, MinIO, R2, ...)
type ArchiveConfig struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	ForcePathStyle bool
	Prefix         string
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive stores signed contract documents
type S3Archive struct {
	client objectPutter
	bucket string
	prefix string
}

// NewS3Archive builds an archive backed by the AWS SDK
func NewS3Archive(ctx context.Context, cfg ArchiveConfig) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, errors.New("storage: region is required")
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := normaliseEndpoint(cfg.Endpoint, cfg.UseSSL)
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return newArchive(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket, cfg.Prefix), nil
}

func newArchive(client objectPutter, bucket, prefix string) *S3Archive {
	return &S3Archive{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Key is the object key a contract's signed document is stored under
func (a *S3Archive) Key(contractID uuid.UUID, doc *entities.SignedDocument) string {
	name := doc.FileName
	if name == "" {
		name = doc.EnvelopeID + ".pdf"
	}
	return path.Join(a.prefix, contractID.String(), path.Base(name))
}

// Store uploads doc and returns its object key. Re-uploading the same
// document overwrites the object with identical content.
func (a *S3Archive) Store(ctx context.Context, contractID uuid.UUID, doc *entities.SignedDocument) (string, error) {
	if doc == nil || len(doc.Content) == 0 {
		return "", domainerrors.Validation("signed document is empty")
	}

	key := a.Key(contractID, doc)
	sum := sha256.Sum256(doc.Content)
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(doc.Content),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(doc.Content))),
		Metadata: map[string]string{
			"contract-id": contractID.String(),
			"envelope-id": doc.EnvelopeID,
			"sha256":      hex.EncodeToString(sum[:]),
		},
	})
	if err != nil {
		logger.Error(ctx, "archive signed document failed", zap.String("key", key), zap.Error(err))
		return "", domainerrors.Transport("document archive unavailable", err)
	}

	logger.Info(ctx, "signed document archived", zap.String("bucket", a.bucket), zap.String("key", key))
	return key, nil
}

func normaliseEndpoint(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		if _, err := url.Parse(endpoint); err == nil {
			return endpoint
		}
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + endpoint
}
