package shortcode

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	mu    sync.Mutex
	taken map[string]bool
	all   bool
	err   error
	calls int
}

func (f *fakeChecker) SlugTaken(_ context.Context, candidate string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.all || f.taken[candidate], nil
}

func assertCode(t *testing.T, code string, length int) {
	t.Helper()
	assert.Len(t, code, length)
	for _, r := range code {
		assert.True(t, strings.ContainsRune(Charset, r), "非法字符 %q", r)
	}
}

func TestGenerator_NextWithoutBufferGeneratesDirectly(t *testing.T) {
	g := NewGenerator(&fakeChecker{}, Config{}, nil)

	code, err := g.Next(context.Background())
	require.NoError(t, err)
	assertCode(t, code, DefaultConfig().Length)
}

func TestGenerator_NextDiscardsCodeTakenSinceBuffering(t *testing.T) {
	checker := &fakeChecker{taken: map[string]bool{"claimed": true}}
	g := NewGenerator(checker, Config{Length: 9, BufferSize: 4}, nil)
	g.codeChan <- "claimed"

	code, err := g.Next(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "claimed", code)
	assertCode(t, code, 9)
	assert.Zero(t, g.Buffered())
}

func TestGenerator_Exhausted(t *testing.T) {
	checker := &fakeChecker{all: true}
	g := NewGenerator(checker, Config{}, nil)

	_, err := g.Next(context.Background())
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, maxAttempts, checker.calls)
}

func TestGenerator_CheckerErrorPropagates(t *testing.T) {
	boom := errors.New("database is down")
	g := NewGenerator(&fakeChecker{err: boom}, Config{}, nil)

	_, err := g.Next(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestGenerator_NextHonoursCancelledContext(t *testing.T) {
	g := NewGenerator(&fakeChecker{}, Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerator_StartFillsBuffer(t *testing.T) {
	g := NewGenerator(&fakeChecker{}, Config{BufferSize: 20, RefillInterval: 10 * time.Millisecond}, nil)
	g.Start()
	defer g.Stop()

	require.Eventually(t, func() bool { return g.Buffered() == 20 }, time.Second, 5*time.Millisecond)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		code, err := g.Next(context.Background())
		require.NoError(t, err)
		seen[code] = true
	}
	assert.Len(t, seen, 20)

	// 低于阈值后由后台补充
	require.Eventually(t, func() bool { return g.Buffered() > 0 }, time.Second, 5*time.Millisecond)
}

func TestGenerator_StopIsIdempotent(t *testing.T) {
	g := NewGenerator(&fakeChecker{}, Config{BufferSize: 2}, nil)
	g.Start()
	assert.NotPanics(t, func() {
		g.Stop()
		g.Stop()
	})
}
