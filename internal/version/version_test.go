package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	t.Parallel()

	info := Get()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.True(t, IsDevBuild())
}

func TestInfo_String(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		info Info
		want string
	}{
		"dev build":      {info: Info{Version: "dev", Commit: "unknown"}, want: "stepflow dev"},
		"release":        {info: Info{Version: "v1.2.0", Commit: "abc123"}, want: "stepflow v1.2.0 (abc123)"},
		"missing commit": {info: Info{Version: "v1.2.0"}, want: "stepflow v1.2.0"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.info.String())
		})
	}
}
