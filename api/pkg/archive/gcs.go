package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSTransport archives artifacts into a Google Cloud Storage bucket.
// Promotion and checksums are expressed as objects, buckets have no
// symlinks.
type GCSTransport struct {
	bucketName            string
	serviceAccountKeyFile string
	client                *storage.Client
	bucket                *storage.BucketHandle
	httpClient            *http.Client
}

func NewGCSTransport(bucketName, serviceAccountKeyFile string) *GCSTransport {
	return &GCSTransport{
		bucketName:            bucketName,
		serviceAccountKeyFile: serviceAccountKeyFile,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

func (t *GCSTransport) Start(ctx context.Context) error {
	var client *storage.Client
	var err error
	if t.serviceAccountKeyFile != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(t.serviceAccountKeyFile))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}
	t.client = client
	t.bucket = client.Bucket(t.bucketName)
	return nil
}

func (t *GCSTransport) End() {
	if t.client != nil {
		t.client.Close()
		t.client = nil
		t.bucket = nil
	}
}

func (t *GCSTransport) FetchAndStore(ctx context.Context, url string, creds Credentials, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if creds.Username != "" {
		req.SetBasicAuth(creds.Username, creds.Password)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	writer := t.bucket.Object(dest).NewWriter(ctx)
	size, err := io.Copy(writer, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to copy content to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize GCS object upload: %w", err)
	}
	return size, nil
}

// PromoteToCurrent writes a "current" marker object in the grandparent
// prefix naming the directory that holds path.
func (t *GCSTransport) PromoteToCurrent(ctx context.Context, p string) error {
	dir := path.Dir(p)
	marker := path.Join(path.Dir(dir), "current")

	writer := t.bucket.Object(marker).NewWriter(ctx)
	if _, err := writer.Write([]byte(path.Base(dir))); err != nil {
		return fmt.Errorf("failed to write current marker: %w", err)
	}
	return writer.Close()
}

func (t *GCSTransport) LinkPaths(ctx context.Context, src, dest string) error {
	source := t.bucket.Object(src)
	if _, err := t.bucket.Object(dest).CopierFrom(source).Run(ctx); err != nil {
		return fmt.Errorf("failed to copy GCS object: %w", err)
	}
	return nil
}

func (t *GCSTransport) GenerateChecksum(ctx context.Context, p string) error {
	reader, err := t.bucket.Object(p).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to create GCS object reader: %w", err)
	}
	defer reader.Close()

	h := sha256.New()
	if _, err := io.Copy(h, reader); err != nil {
		return err
	}

	sums := path.Join(path.Dir(p), "SHA256SUMS")
	var existing bytes.Buffer
	if r, err := t.bucket.Object(sums).NewReader(ctx); err == nil {
		_, err = io.Copy(&existing, r)
		r.Close()
		if err != nil {
			return err
		}
	}
	merged := mergeChecksum(existing.Bytes(), fmt.Sprintf("%x", h.Sum(nil)), path.Base(p))

	writer := t.bucket.Object(sums).NewWriter(ctx)
	if _, err := writer.Write(merged); err != nil {
		return fmt.Errorf("failed to write checksum file: %w", err)
	}
	return writer.Close()
}

var _ Transport = (*GCSTransport)(nil)
var _ Transport = (*LocalTransport)(nil)
