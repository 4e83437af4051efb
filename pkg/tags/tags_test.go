package tags

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpr_Match(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		expr string
		tags []string
		want bool
	}{
		"empty matches everything": {
			expr: "",
			tags: nil,
			want: true,
		},
		"single tag present": {
			expr: "@serial",
			tags: []string{"@infra", "@serial"},
			want: true,
		},
		"single tag absent": {
			expr: "@serial",
			tags: []string{"@infra"},
			want: false,
		},
		"and not": {
			expr: "@infra and not @slow",
			tags: []string{"@infra", "@slow"},
			want: false,
		},
		"or": {
			expr: "@a or @b",
			tags: []string{"@b"},
			want: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			e, err := Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Match(tt.tags))
		})
	}
}

func TestExpr_NilMatchesAll(t *testing.T) {
	t.Parallel()

	var e *Expr
	assert.True(t, e.Match([]string{"@anything"}))
	assert.True(t, e.IsEmpty())
	assert.Equal(t, "", e.String())
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	_, err := Parse("@a and")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `parsing tag expression "@a and"`)
}

func TestFindRetry(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		tags      []string
		wantFound bool
		want      RetryTag
	}{
		"no retry tag": {
			tags: []string{"@serial"},
		},
		"bare retry": {
			tags:      []string{"@retry"},
			wantFound: true,
			want:      RetryTag{Count: -1},
		},
		"retry with count": {
			tags:      []string{"@infra", "@retry(3)"},
			wantFound: true,
			want:      RetryTag{Count: 3},
		},
		"retry with count and delay": {
			tags:      []string{"@retry(2).after(150ms)"},
			wantFound: true,
			want:      RetryTag{Count: 2, After: 150 * time.Millisecond},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, found, err := FindRetry(tt.tags)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindRetry_BadDuration(t *testing.T) {
	t.Parallel()

	_, _, err := FindRetry([]string{"@retry(1).after(soon)"})
	require.Error(t, err)
}
