package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/casfs/depot/config"
	"github.com/casfs/depot/logger"
	"github.com/casfs/depot/pkg/metrics"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// aclHeader is the S3 canned-ACL header. MinIO passes it through on
// copy requests, which is how ACLs are updated on S3-compatible stores.
const aclHeader = "x-amz-acl"

// S3Store is a Blobstore backed by an S3-compatible object store. It is
// a stateless relay: the client and bucket are fixed at construction and
// shared read-only across all operations, so a single instance is safe
// for unrestricted concurrent use.
type S3Store struct {
	client *minio.Client
	bucket string
	log    *slog.Logger
}

// NewS3Store wraps a pre-configured MinIO client. The bucket must exist;
// the store never creates it. A nil log falls back to the process logger.
func NewS3Store(client *minio.Client, bucket string, log *slog.Logger) (*S3Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage: client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("storage: bucket is required")
	}
	if log == nil {
		log = logger.Get()
	}
	return &S3Store{client: client, bucket: bucket, log: log}, nil
}

// NewS3StoreFromConfig builds the MinIO client from configuration and
// wraps it in an S3Store.
func NewS3StoreFromConfig(cfg config.S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: !cfg.DisableTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	// Enable detailed tracing of requests and responses for debugging
	if cfg.Debug {
		client.TraceOn(os.Stdout)
	}

	return NewS3Store(client, cfg.Bucket, nil)
}

// Put relays src through an internal pipe into the remote store. The
// pipe stage decouples read timing from upload timing, so a source that
// is simultaneously observed elsewhere (e.g. wrapped in an io.TeeReader
// feeding a metrics sink) still yields a complete upload. Put returns
// once the store confirms the object is durably committed.
func (s *S3Store) Put(ctx context.Context, key string, src io.Reader) (PutResult, error) {
	start := time.Now()

	pr, pw := io.Pipe()
	go func() {
		_, err := io.Copy(pw, src)
		pw.CloseWithError(err)
	}()

	info, err := s.client.PutObject(ctx, s.bucket, key, pr, -1,
		minio.PutObjectOptions{SendContentMd5: true})
	// Unblocks the relay goroutine if the upload aborted before EOF.
	pr.CloseWithError(err)

	s.finish("PUT", start, err)
	if err != nil {
		return PutResult{}, s.wrap(OpPut, key, err)
	}

	metrics.StorageBytesTransferred.WithLabelValues("upload").Add(float64(info.Size))
	s.log.Debug("object stored", "bucket", s.bucket, "key", key, "size", info.Size, "etag", info.ETag)

	return PutResult{
		Location:  s.Location(key),
		ETag:      info.ETag,
		Size:      info.Size,
		VersionID: info.VersionID,
	}, nil
}

// Get streams the object at key into dst. Failures on the remote read
// side and on the destination sink both fail the same call, so the
// operation can never hang half-finished.
func (s *S3Store) Get(ctx context.Context, key string, dst io.Writer, opts GetOptions) error {
	start := time.Now()

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		s.finish("GET", start, err)
		return s.wrap(OpGet, key, err)
	}
	defer obj.Close()

	n, err := relay(dst, obj, opts)
	s.finish("GET", start, err)
	if err != nil {
		return s.wrap(OpGet, key, err)
	}

	metrics.StorageBytesTransferred.WithLabelValues("download").Add(float64(n))
	return nil
}

// Move relocates a blob via copy-then-delete, in that order, with no
// rollback. A copy failure leaves the source untouched; a delete failure
// leaves the source present and a duplicate at dstKey.
func (s *S3Store) Move(ctx context.Context, srcKey, dstKey string) error {
	if _, err := s.Copy(ctx, srcKey, dstKey, CopyOptions{}); err != nil {
		return &Error{Op: OpMove, Key: srcKey, Err: err}
	}
	if err := s.Unlink(ctx, srcKey); err != nil {
		s.log.Warn("move left a duplicate behind",
			"bucket", s.bucket, "source", srcKey, "dest", dstKey, "error", err)
		return &Error{Op: OpMove, Key: srcKey, Err: err}
	}
	return nil
}

// Copy performs a server-side copy within the bucket. opts.ACL, when
// set, is applied to the new object.
func (s *S3Store) Copy(ctx context.Context, srcKey, dstKey string, opts CopyOptions) (CopyResult, error) {
	start := time.Now()

	dst := minio.CopyDestOptions{Bucket: s.bucket, Object: dstKey}
	if opts.ACL != "" {
		dst.ReplaceMetadata = true
		dst.UserMetadata = map[string]string{aclHeader: opts.ACL}
	}
	src := minio.CopySrcOptions{Bucket: s.bucket, Object: srcKey}

	info, err := s.client.CopyObject(ctx, dst, src)
	s.finish("COPY", start, err)
	if err != nil {
		return CopyResult{}, s.wrap(OpCopy, srcKey, err)
	}

	return CopyResult{
		Location:     s.Location(dstKey),
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

// Exists probes the object's metadata without fetching its content. A
// not-found condition is a successful false; every other error is
// returned as-is so an outage is never reported as absence.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()

	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		s.finish("STAT", start, nil)
		return true, nil
	}
	if isNotFound(err) {
		s.finish("STAT", start, nil)
		return false, nil
	}

	s.finish("STAT", start, err)
	return false, &Error{Op: OpExists, Key: key, Err: err}
}

// Unlink deletes the object at key without checking existence first; the
// remote store reports success for keys that do not exist, which makes
// the operation idempotent.
func (s *S3Store) Unlink(ctx context.Context, key string) error {
	start := time.Now()

	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	s.finish("DELETE", start, err)
	if err != nil {
		return &Error{Op: OpDelete, Key: key, Err: err}
	}
	return nil
}

// SetACL updates the object's canned ACL via a metadata-replacing
// server-side copy onto itself, the portable access-control update on
// S3-compatible stores.
func (s *S3Store) SetACL(ctx context.Context, key string, acl string) error {
	start := time.Now()

	dst := minio.CopyDestOptions{
		Bucket:          s.bucket,
		Object:          key,
		ReplaceMetadata: true,
		UserMetadata:    map[string]string{aclHeader: acl},
	}
	src := minio.CopySrcOptions{Bucket: s.bucket, Object: key}

	_, err := s.client.CopyObject(ctx, dst, src)
	s.finish("SETACL", start, err)
	if err != nil {
		return s.wrap(OpSetACL, key, err)
	}
	return nil
}

// Location returns "<bucket>/<key>" without touching the network.
func (s *S3Store) Location(key string) string {
	return s.bucket + "/" + key
}

// wrap translates a remote not-found condition into ErrNotFound and
// tags every failure with the operation that produced it.
func (s *S3Store) wrap(op Op, key string, err error) error {
	if isNotFound(err) {
		err = ErrNotFound
	}
	return &Error{Op: op, Key: key, Err: err}
}

func (s *S3Store) finish(op string, start time.Time, err error) {
	if err != nil {
		metrics.StorageOperationErrors.WithLabelValues(op, classifyRemoteError(err)).Inc()
		metrics.StorageOperationsTotal.WithLabelValues(op, "error").Inc()
	} else {
		metrics.StorageOperationsTotal.WithLabelValues(op, "success").Inc()
	}
	metrics.StorageOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// isNotFound inspects the remote error for the specific "object does not
// exist" condition, as opposed to any other failure.
func isNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.StatusCode == http.StatusNotFound
	}
	return false
}

// classifyRemoteError buckets remote errors for metrics tracking.
func classifyRemoteError(err error) string {
	if err == nil {
		return "none"
	}

	errStr := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case strings.Contains(errStr, "AccessDenied") || strings.Contains(errStr, "Forbidden"):
		return "access_denied"
	case strings.Contains(errStr, "NoSuchKey") || strings.Contains(errStr, "NotFound"):
		return "not_found"
	case strings.Contains(errStr, "SlowDown") || strings.Contains(errStr, "RequestLimitExceeded"):
		return "throttled"
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host"):
		return "network_error"
	default:
		return "unknown"
	}
}
