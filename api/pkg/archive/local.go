package archive

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
)

// LocalTransport archives artifacts onto a local filesystem below a base
// directory, the layout cdimage-style mirrors are served from.
type LocalTransport struct {
	basedir    string
	httpClient *http.Client
}

func NewLocalTransport(basedir string) *LocalTransport {
	return &LocalTransport{
		basedir: basedir,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

func (t *LocalTransport) Start(ctx context.Context) error {
	return os.MkdirAll(t.basedir, 0o755)
}

func (t *LocalTransport) End() {}

func (t *LocalTransport) FetchAndStore(ctx context.Context, url string, creds Credentials, dest string) (int64, error) {
	target := filepath.Join(t.basedir, filepath.FromSlash(dest))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}

	var size int64
	err := retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if creds.Username != "" {
			req.SetBasicAuth(creds.Username, creds.Password)
		}
		resp, err := t.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
		}

		f, err := os.Create(target)
		if err != nil {
			return err
		}
		defer f.Close()

		size, err = io.Copy(f, resp.Body)
		return err
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return 0, err
	}

	log.Debug().Str("url", url).Str("path", dest).Int64("size", size).Msg("archived artifact")
	return size, nil
}

// PromoteToCurrent points the "current" symlink in the grandparent
// directory at the directory holding path. The link is created under a
// temporary name and renamed into place, readers never see it missing.
func (t *LocalTransport) PromoteToCurrent(ctx context.Context, path string) error {
	dir := filepath.Dir(filepath.Join(t.basedir, filepath.FromSlash(path)))
	link := filepath.Join(filepath.Dir(dir), "current")

	tmp := link + ".new"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Symlink(filepath.Base(dir), tmp); err != nil {
		return err
	}
	return os.Rename(tmp, link)
}

func (t *LocalTransport) LinkPaths(ctx context.Context, src, dest string) error {
	source := filepath.Join(t.basedir, filepath.FromSlash(src))
	target := filepath.Join(t.basedir, filepath.FromSlash(dest))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Link(source, target); err == nil {
		return nil
	}
	// hard links fail across filesystems, fall back to a copy
	return copyFile(source, target)
}

func (t *LocalTransport) GenerateChecksum(ctx context.Context, path string) error {
	target := filepath.Join(t.basedir, filepath.FromSlash(path))

	f, err := os.Open(target)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}

	sumsPath := filepath.Join(filepath.Dir(target), "SHA256SUMS")
	existing, err := os.ReadFile(sumsPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	merged := mergeChecksum(existing, fmt.Sprintf("%x", h.Sum(nil)), filepath.Base(target))
	return os.WriteFile(sumsPath, merged, 0o644)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
