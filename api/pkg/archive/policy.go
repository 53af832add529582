package archive

import (
	"path"
	"strconv"
	"strings"
)

// PathContext carries everything a naming policy can use to place an
// artifact inside an archive. Project fields are empty for build-scoped
// items.
type PathContext struct {
	JobName        string
	BuildNumber    int
	ProjectName    string
	BuildKey       string
	DependencyName string
	Filename       string
}

// Policy maps an artifact onto its path within the archive.
type Policy func(ctx PathContext) string

// DefaultPolicy files artifacts under the job and build number that
// produced them.
func DefaultPolicy(ctx PathContext) string {
	return path.Join(slugify(ctx.JobName), strconv.Itoa(ctx.BuildNumber), path.Base(ctx.Filename))
}

// CDImagePolicy lays artifacts out the way a cdimage mirror expects,
// project/buildkey/dependency. Items without project context fall back to
// the default layout.
func CDImagePolicy(ctx PathContext) string {
	if ctx.ProjectName == "" {
		return DefaultPolicy(ctx)
	}
	return path.Join(slugify(ctx.ProjectName), ctx.BuildKey, slugify(ctx.DependencyName), path.Base(ctx.Filename))
}

// PolicyFor resolves a policy by its configured name, falling back to the
// default layout for unknown names.
func PolicyFor(name string) Policy {
	switch name {
	case "cdimage":
		return CDImagePolicy
	default:
		return DefaultPolicy
	}
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		case r == ' ', r == '_':
			return '-'
		default:
			return -1
		}
	}, s)
}
