package certificates

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"aquanexus/marketplace-backend/pkg/storage"

	"go.uber.org/zap"
)

// Archive uploads rendered certificates to object storage
type Archive struct {
	client   storage.S3Client
	renderer *Renderer
	bucket   string
	prefix   string
	logger   *zap.Logger
}

// NewArchive creates an archive writing to bucket under prefix
func NewArchive(client storage.S3Client, renderer *Renderer, bucket, prefix string, logger *zap.Logger) *Archive {
	return &Archive{
		client:   client,
		renderer: renderer,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		logger:   logger,
	}
}

// Key returns the object key for cert. The transaction id keeps keys
// unique even when certificate ids collide.
func (a *Archive) Key(cert Certificate) string {
	name := fmt.Sprintf("%s-%s.pdf", cert.ID, strings.TrimPrefix(cert.Hash, "0x"))
	return path.Join(a.prefix, fmt.Sprintf("%d", cert.IssuedAt.UTC().Year()), name)
}

// Store renders cert and uploads it, returning the object key
func (a *Archive) Store(ctx context.Context, cert Certificate) (string, error) {
	body, err := a.renderer.Render(ctx, cert)
	if err != nil {
		return "", fmt.Errorf("failed to render certificate: %w", err)
	}

	key := a.Key(cert)
	if err := a.client.Upload(ctx, a.bucket, key, ContentTypePDF, bytes.NewReader(body)); err != nil {
		return "", err
	}

	a.logger.Info("Certificate archived",
		zap.String("certificate_id", cert.ID),
		zap.String("bucket", a.bucket),
		zap.String("key", key),
	)
	return key, nil
}

// URL returns a time-limited download link for an archived certificate
func (a *Archive) URL(ctx context.Context, cert Certificate, expiration time.Duration) (string, error) {
	return a.client.GetPresignedURL(ctx, a.bucket, a.Key(cert), expiration)
}
