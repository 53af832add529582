package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

// Credentials authenticate the fetch of an artifact from the server
// hosting it.
type Credentials struct {
	Username string
	Password string
}

// Transport moves artifacts into an archive backend. A transport session
// is bracketed by Start and End, all other calls happen in between.
type Transport interface {
	Start(ctx context.Context) error
	End()

	// FetchAndStore downloads the artifact at url into the archive at
	// dest, returning the number of bytes stored.
	FetchAndStore(ctx context.Context, url string, creds Credentials, dest string) (int64, error)

	// PromoteToCurrent marks the directory holding path as the current
	// one for its parent.
	PromoteToCurrent(ctx context.Context, path string) error

	// LinkPaths populates dest from the already archived src without
	// fetching again.
	LinkPaths(ctx context.Context, src, dest string) error

	// GenerateChecksum records the SHA256 of path in the SHA256SUMS file
	// alongside it.
	GenerateChecksum(ctx context.Context, path string) error
}

// mergeChecksum replaces or appends the entry for name in a SHA256SUMS
// body, one line per file however often a checksum is regenerated.
func mergeChecksum(existing []byte, sum, name string) []byte {
	var out bytes.Buffer
	for _, line := range strings.Split(string(existing), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "  ", 2)
		if len(parts) == 2 && parts[1] == name {
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	fmt.Fprintf(&out, "%s  %s\n", sum, name)
	return out.Bytes()
}

// TransportFactory builds a transport for an archive configuration.
type TransportFactory func(archive *types.Archive) (Transport, error)

// NewTransport is the default factory, selecting the backend from the
// archive's transport name.
func NewTransport(archive *types.Archive) (Transport, error) {
	switch archive.Transport {
	case "local":
		return NewLocalTransport(archive.Basedir), nil
	case "gcs":
		return NewGCSTransport(archive.Bucket, archive.ServiceAccountKeyFile), nil
	default:
		return nil, fmt.Errorf("unknown archive transport %q", archive.Transport)
	}
}
