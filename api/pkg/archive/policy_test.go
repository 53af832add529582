package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	path := DefaultPolicy(PathContext{
		JobName:     "My Job",
		BuildNumber: 12,
		Filename:    "output/artifact.img",
	})
	assert.Equal(t, "my-job/12/artifact.img", path)
}

func TestCDImagePolicy(t *testing.T) {
	path := CDImagePolicy(PathContext{
		JobName:        "base-job",
		BuildNumber:    12,
		ProjectName:    "Test Project",
		BuildKey:       "20140312.1",
		DependencyName: "Base System",
		Filename:       "artifact.img",
	})
	assert.Equal(t, "test-project/20140312.1/base-system/artifact.img", path)
}

func TestCDImagePolicy_WithoutProjectContext(t *testing.T) {
	path := CDImagePolicy(PathContext{
		JobName:     "base-job",
		BuildNumber: 12,
		Filename:    "artifact.img",
	})
	assert.Equal(t, "base-job/12/artifact.img", path)
}

func TestPolicyFor(t *testing.T) {
	ctx := PathContext{
		JobName:        "job",
		BuildNumber:    1,
		ProjectName:    "project",
		BuildKey:       "20140312.0",
		DependencyName: "dep",
		Filename:       "file.txt",
	}

	assert.Equal(t, DefaultPolicy(ctx), PolicyFor("default")(ctx))
	assert.Equal(t, CDImagePolicy(ctx), PolicyFor("cdimage")(ctx))
	assert.Equal(t, DefaultPolicy(ctx), PolicyFor("")(ctx))
}
