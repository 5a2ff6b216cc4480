package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion_DefaultValues(t *testing.T) {
	assert.Equal(t, "dev", Version)
	assert.Equal(t, "dev", Commit)
	assert.Equal(t, "unknown", BuildTime)
}

func TestInfo(t *testing.T) {
	original := Version
	t.Cleanup(func() { Version = original })
	Version = "v1.4.0"

	info := Info("noisewatch-worker")
	assert.Equal(t, "noisewatch-worker", info.Service)
	assert.Equal(t, "v1.4.0", info.Version)
	assert.Equal(t, Commit, info.Commit)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}
