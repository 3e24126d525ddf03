package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	oldV, oldSHA, oldT := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = oldV, oldSHA, oldT })

	Version, GitSHA, BuildTime = "1.2.3", "abc123", "2026-01-02T03:04:05Z"
	info := Get()
	assert.Equal(t, Info{Version: "1.2.3", GitSHA: "abc123", BuildTime: "2026-01-02T03:04:05Z"}, info)
	assert.Equal(t, "rutting 1.2.3 (abc123, built 2026-01-02T03:04:05Z)", info.String())
}
