package crash

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time         { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDetector(delay time.Duration) (*Detector, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	return NewDetector(delay, clock.now), clock
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestDetector_NoCore(t *testing.T) {
	d, _ := newTestDetector(3 * time.Second)
	assert.Equal(t, None, d.Poll(t.TempDir()))
	assert.Equal(t, None, d.Poll(""))
}

func TestDetector_ConfirmsAfterDelay(t *testing.T) {
	dir := t.TempDir()
	touch(t, CorePath(dir))
	d, clock := newTestDetector(3 * time.Second)

	assert.Equal(t, DetectedUnconfirmed, d.Poll(dir))
	assert.False(t, d.DetectedAt().IsZero())

	clock.advance(2 * time.Second)
	assert.Equal(t, DetectedUnconfirmed, d.Poll(dir))

	clock.advance(2 * time.Second)
	assert.Equal(t, Confirmed, d.Poll(dir))
}

func TestDetector_HandledMarkerPreventsConfirmation(t *testing.T) {
	dir := t.TempDir()
	touch(t, CorePath(dir))
	d, clock := newTestDetector(time.Second)

	assert.Equal(t, DetectedUnconfirmed, d.Poll(dir))
	require.NoError(t, MarkHandled(dir))

	clock.advance(10 * time.Second)
	assert.Equal(t, None, d.Poll(dir))
	assert.True(t, CoreExists(dir), "the core stays for reporting")
}

func TestDetector_ResetsOnNewTempDir(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	touch(t, CorePath(first))
	touch(t, CorePath(second))
	d, clock := newTestDetector(time.Second)

	assert.Equal(t, DetectedUnconfirmed, d.Poll(first))
	clock.advance(5 * time.Second)
	assert.Equal(t, DetectedUnconfirmed, d.Poll(second), "a new test dir restarts the delay")
	clock.advance(2 * time.Second)
	assert.Equal(t, Confirmed, d.Poll(second))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "NONE", None.String())
	assert.Equal(t, "DETECTED_UNCONFIRMED", DetectedUnconfirmed.String())
	assert.Equal(t, "CONFIRMED", Confirmed.String())
}

func TestMarkers(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, CoreExists(dir))
	assert.False(t, HandledMarkerExists(dir))
	assert.False(t, HandledMarkerExists(""))

	require.NoError(t, os.Mkdir(CorePath(dir), 0755))
	assert.False(t, CoreExists(dir), "a directory named core is not a dump")

	require.NoError(t, MarkHandled(dir))
	assert.True(t, HandledMarkerExists(dir))
}
