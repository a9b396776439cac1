package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBookmarks(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []int64
	}{
		{"empty", "", nil},
		{"null", "null", nil},
		{"array", "[5, 9]", []int64{5, 9}},
		{"strings", `["5", " 9 "]`, []int64{5, 9}},
		{"dedup", "[9, 5, 9]", []int64{9, 5}},
		{"bookmarks", `{"bookmarks": [3]}`, []int64{3}},
		{"list", `{"list": [5, 9]}`, []int64{5, 9}},
		{"set", `{"9": true, "5": 1, "7": false, "8": 0}`, []int64{5, 9}},
		{"empty array", "[]", []int64{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseBookmarks(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseBookmarksRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"5,9", `["x"]`, "[1.5]", "[-1]", `{"list": 5}`, `{"abc": true}`, "[{}]"} {
		_, err := ParseBookmarks(raw)
		assert.ErrorIs(t, err, ErrBookmarkFormat, raw)
	}
}
