package storage

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"media-job-service/internal/apperr"
	"media-job-service/internal/config"
	"media-job-service/internal/entity"
)

// SigV4 query signatures cannot outlive seven days.
const maxGrantTTL = 7 * 24 * time.Hour

var allowedMethods = map[string]bool{
	http.MethodPut:  true,
	http.MethodPost: true,
}

type Authority struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

func NewAuthority(cfg config.StorageConfig) (*Authority, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		// A fixed region keeps presigning local: no bucket-location lookup.
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &Authority{client: client, bucket: cfg.Bucket, now: time.Now}, nil
}

func (a *Authority) Bucket() string { return a.bucket }

// Content-Type is a signed header, so storage rejects any other type.
func (a *Authority) IssueUploadGrant(ctx context.Context, req entity.GrantRequest) (entity.UploadGrant, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	switch {
	case req.ObjectKey == "":
		return entity.UploadGrant{}, apperr.Validation("object_key", "object key is required")
	case req.ContentType == "":
		return entity.UploadGrant{}, apperr.Validation("content_type", "content type is required")
	case !allowedMethods[method]:
		return entity.UploadGrant{}, apperr.Validation("method", fmt.Sprintf("method %q cannot be granted", req.Method))
	case req.TTL < time.Second || req.TTL > maxGrantTTL:
		return entity.UploadGrant{}, apperr.Validation("ttl", fmt.Sprintf("ttl %s out of range", req.TTL))
	}

	if err := ctx.Err(); err != nil {
		return entity.UploadGrant{}, apperr.Authority(err, "issue upload grant")
	}

	headers := http.Header{}
	headers.Set("Content-Type", req.ContentType)

	issuedAt := a.now()
	u, err := a.client.PresignHeader(ctx, method, a.bucket, req.ObjectKey, req.TTL, nil, headers)
	if err != nil {
		return entity.UploadGrant{}, apperr.Authority(err, "issue upload grant")
	}

	return entity.UploadGrant{
		URL:         u.String(),
		Method:      method,
		ContentType: req.ContentType,
		ExpiresAt:   issuedAt.Add(req.TTL).UTC(),
	}, nil
}
