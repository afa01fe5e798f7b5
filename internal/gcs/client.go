// Package gcs wraps the Cloud Storage operations the upload and verify
// stages need: object upload under the case folder prefix, existence
// checks, and stale prefix cleanup.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// ObjectPrefix is the key prefix every uploaded document lives under.
const ObjectPrefix = "docs"

// Client is a thin wrapper over the Cloud Storage SDK bound to one
// bucket.
type Client struct {
	bucket string
	client *storage.Client
	logger *slog.Logger
}

// NewClient dials Cloud Storage using ambient credentials. Callers own
// Close.
func NewClient(ctx context.Context, bucket string, logger *slog.Logger) (*Client, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs: bucket name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	sc, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs: dial storage: %w", err)
	}
	return &Client{bucket: bucket, client: sc, logger: logger}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Bucket returns the bound bucket name.
func (c *Client) Bucket() string { return c.bucket }

// ObjectKey returns the bucket key for a document file within a case
// folder.
func ObjectKey(folder, file string) string {
	return path.Join(ObjectPrefix, folder, file)
}

// PublicURL returns the browser link for an uploaded document.
func (c *Client) PublicURL(folder, file string) string {
	return fmt.Sprintf("https://storage.cloud.google.com/%s/%s", c.bucket, ObjectKey(folder, file))
}

// UploadFile streams a local file to the case folder, overwriting any
// existing object at the same key.
func (c *Client) UploadFile(ctx context.Context, localPath, folder, file string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("gcs: open %s: %w", localPath, err)
	}
	defer f.Close()

	key := ObjectKey(folder, file)
	w := c.client.Bucket(c.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentTypeFor(file)

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs: write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs: finalize %s: %w", key, err)
	}
	c.logger.Debug("uploaded object", "bucket", c.bucket, "key", key)
	return nil
}

// Exists reports whether an object is present under the case folder.
func (c *Client) Exists(ctx context.Context, folder, file string) (bool, error) {
	key := ObjectKey(folder, file)
	_, err := c.client.Bucket(c.bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("gcs: stat %s: %w", key, err)
	}
	return true, nil
}

// ListFolder returns the file names currently stored under a case
// folder.
func (c *Client) ListFolder(ctx context.Context, folder string) ([]string, error) {
	prefix := ObjectKey(folder, "") + "/"
	it := c.client.Bucket(c.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs: list %s: %w", prefix, err)
		}
		names = append(names, path.Base(attrs.Name))
	}
	return names, nil
}

// DeleteFolder removes every object under a case folder. Used when a
// forced re-upload finds artifacts pointing at a stale folder name.
func (c *Client) DeleteFolder(ctx context.Context, folder string) (int, error) {
	prefix := ObjectKey(folder, "") + "/"
	it := c.client.Bucket(c.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	deleted := 0
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return deleted, fmt.Errorf("gcs: list %s: %w", prefix, err)
		}
		if err := c.client.Bucket(c.bucket).Object(attrs.Name).Delete(ctx); err != nil {
			return deleted, fmt.Errorf("gcs: delete %s: %w", attrs.Name, err)
		}
		deleted++
	}
	if deleted > 0 {
		c.logger.Info("removed stale upload folder", "bucket", c.bucket, "folder", folder, "objects", deleted)
	}
	return deleted, nil
}

func contentTypeFor(file string) string {
	switch path.Ext(file) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
