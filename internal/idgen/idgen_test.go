package idgen

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEncodeBase36(t *testing.T) {
	assert.Equal(t, "0000", EncodeBase36([]byte{0}, 4))
	assert.Equal(t, "000z", EncodeBase36([]byte{35}, 4))
	assert.Equal(t, "0010", EncodeBase36([]byte{36}, 4))

	// Truncates to the least significant digits when too long.
	long := EncodeBase36([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, 4)
	assert.Len(t, long, 4)
}

func TestIssueIDStable(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	a := IssueID("crash", "details", ts, 0)
	b := IssueID("crash", "details", ts, 0)
	assert.Equal(t, a, b)
	assert.Len(t, a, IssueIDLength)
	assert.Equal(t, strings.ToLower(a), a)
}

func TestIssueIDVariesWithInputs(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	base := IssueID("crash", "details", ts, 0)
	assert.NotEqual(t, base, IssueID("crash!", "details", ts, 0))
	assert.NotEqual(t, base, IssueID("crash", "details", ts.Add(time.Nanosecond), 0))
	assert.NotEqual(t, base, IssueID("crash", "details", ts, 1), "nonce must change the id")
}

func TestClusterIDPrefix(t *testing.T) {
	id := ClusterID("parser crashes", time.Now(), 0)
	assert.True(t, strings.HasPrefix(id, ClusterIDPrefix))
	assert.Len(t, id, len(ClusterIDPrefix)+ClusterIDLength)
}
