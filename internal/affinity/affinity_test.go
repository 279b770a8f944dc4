package affinity

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPin_EmptySetIsNoop(t *testing.T) {
	assert.NoError(t, Pin(nil))
	assert.NoError(t, Pin([]int{}))
}

func TestPin_NegativeCPU(t *testing.T) {
	assert.Error(t, Pin([]int{-1}))
}

func TestPin_CurrentThread(t *testing.T) {
	if runtime.GOOS != "linux" {
		assert.ErrorIs(t, Pin([]int{0}), ErrUnsupported)
		return
	}

	type result struct {
		target int
		after  []int
		err    error
	}
	res := make(chan result, 1)
	go func() {
		// The pinned thread is discarded when this goroutine exits locked.
		runtime.LockOSThread()

		before, err := Current()
		if err != nil || len(before) == 0 {
			res <- result{err: err}
			return
		}
		target := before[0]
		if err := Pin([]int{target}); err != nil {
			res <- result{err: err}
			return
		}
		after, err := Current()
		res <- result{target: target, after: after, err: err}
	}()

	r := <-res
	require.NoError(t, r.err)
	assert.Equal(t, []int{r.target}, r.after)
}
