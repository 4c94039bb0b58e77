package stream

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func appendFile(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(text)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func newTestTailer(t *testing.T, initial string) (*Tailer, *fakeClock, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rec.scc")
	require.NoError(t, os.WriteFile(path, []byte(initial), 0644))
	clock := &fakeClock{t: time.Unix(1000, 0)}
	tl := NewTailer(path, Options{Offset: int64(len(initial)), Now: clock.Now})
	return tl, clock, path
}

func TestPollReadsOnlyCompleteLines(t *testing.T) {
	tl, clock, path := newTestTailer(t, "version 2\nheader\n")

	lines, err := tl.Poll()
	require.NoError(t, err)
	assert.Empty(t, lines, "файл не вырос")

	appendFile(t, path, "start_block\ngrid,par")
	clock.Advance(DefaultPollInterval)
	lines, err = tl.Poll()
	require.NoError(t, err)
	assert.Equal(t, []string{"start_block"}, lines)
	assert.Equal(t, len("grid,par"), tl.Buffered())

	appendFile(t, path, "tial\n")
	clock.Advance(DefaultPollInterval)
	lines, err = tl.Poll()
	require.NoError(t, err)
	assert.Equal(t, []string{"grid,partial"}, lines)
	assert.Equal(t, 0, tl.Buffered())
	assert.Equal(t, int64(len("version 2\nheader\nstart_block\ngrid,partial\n")), tl.Offset())
}

func TestPollRateLimited(t *testing.T) {
	tl, clock, path := newTestTailer(t, "")

	_, err := tl.Poll()
	require.NoError(t, err)

	appendFile(t, path, "a\n")
	clock.Advance(10 * time.Millisecond)
	lines, err := tl.Poll()
	require.NoError(t, err)
	assert.Nil(t, lines, "интервал опроса еще не прошел")
	assert.False(t, tl.Due())

	clock.Advance(40 * time.Millisecond)
	assert.True(t, tl.Due())
	lines, err = tl.Poll()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, lines)
	assert.Equal(t, 2, tl.Stats().Polls)
}

func TestPollStripsCarriageReturn(t *testing.T) {
	tl, clock, path := newTestTailer(t, "")
	appendFile(t, path, "start_block\r\n\r\n")
	clock.Advance(time.Second)

	lines, err := tl.Poll()
	require.NoError(t, err)
	assert.Equal(t, []string{"start_block", ""}, lines)
}

func TestPollShrinkIgnored(t *testing.T) {
	tl, clock, path := newTestTailer(t, "version 2\nheader\nstart_block\n")
	require.NoError(t, os.WriteFile(path, []byte("v"), 0644))
	clock.Advance(time.Second)

	lines, err := tl.Poll()
	require.NoError(t, err)
	assert.Nil(t, lines)
	assert.Equal(t, int64(len("version 2\nheader\nstart_block\n")), tl.Offset())
	assert.Equal(t, 1, tl.Stats().Shrinks)

	clock.Advance(time.Second)
	_, err = tl.Poll()
	require.NoError(t, err)
	assert.Equal(t, 1, tl.Stats().Shrinks, "предупреждение не повторяется")
}

func TestPollMissingFile(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	tl := NewTailer(filepath.Join(t.TempDir(), "nope.scc"), Options{Now: clock.Now})
	_, err := tl.Poll()
	assert.Error(t, err)
	assert.Equal(t, int64(0), tl.Offset())
}

func TestFeedSharesLineSplitter(t *testing.T) {
	tl, clock, path := newTestTailer(t, "")

	assert.Nil(t, tl.Feed(nil))
	assert.Nil(t, tl.Feed([]byte("start_")))
	assert.Equal(t, []string{"start_block", "grid,1"}, tl.Feed([]byte("block\ngrid,1\n")))
	assert.Equal(t, int64(len("start_block\ngrid,1\n")), tl.Offset())

	// Те же байты на диске уже учтены и повторно не выдаются
	appendFile(t, path, "start_block\ngrid,1\n")
	clock.Advance(time.Second)
	lines, err := tl.Poll()
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCarryCompletesLineFromOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.scc")
	initial := "start_block\ngrid,Sh"
	require.NoError(t, os.WriteFile(path, []byte(initial), 0644))
	clock := &fakeClock{t: time.Unix(1000, 0)}
	tl := NewTailer(path, Options{Offset: int64(len(initial)), Carry: []byte("grid,Sh"), Now: clock.Now})
	assert.Equal(t, 7, tl.Buffered())

	appendFile(t, path, "ip,1\nstart_block\n")
	lines, err := tl.Poll()
	require.NoError(t, err)
	assert.Equal(t, []string{"grid,Ship,1", "start_block"}, lines)
	assert.Zero(t, tl.Buffered())
}
