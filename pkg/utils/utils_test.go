package utils

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("BW_STR", "value")
	t.Setenv("BW_INT", "-3")
	t.Setenv("BW_DUR", "250ms")
	t.Setenv("BW_BOOL", "Yes")
	t.Setenv("BW_LIST", " a, ,b ,c")
	t.Setenv("BW_U64", "18446744073709551615")

	assert.Equal(t, "value", Env("BW_STR", "def"))
	assert.Equal(t, "def", Env("BW_MISSING", "def"))
	assert.Equal(t, 7, EnvInt("BW_INT", 7), "negative values fall back to the default")
	assert.Equal(t, 250*time.Millisecond, EnvDuration("BW_DUR", time.Second))
	assert.True(t, EnvBool("BW_BOOL", false))
	assert.False(t, EnvBool("BW_STR", true))
	assert.Equal(t, []string{"a", "b", "c"}, EnvList("BW_LIST"))
	assert.Nil(t, EnvList("BW_MISSING"))
	assert.Equal(t, uint64(18446744073709551615), EnvUint64("BW_U64", 1))
}

func TestDedup(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, Dedup([]string{"http://a/", "http://a", "http://b"}))
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestDrainAndClose(t *testing.T) {
	rc := &closeRecorder{Reader: strings.NewReader("leftover body")}
	require.NoError(t, DrainAndClose(rc))
	assert.True(t, rc.closed)
	n, err := rc.Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}
