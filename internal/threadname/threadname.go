// Package threadname hands out unique, human-readable names for runtime
// worker threads.
package threadname

import (
	"fmt"
	"sync/atomic"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/constants"
)

// counter lives for the whole process and is never reset.
var counter atomic.Uint64

// Next returns the next worker name, e.g. "solGeyserDragonslayer07".
// Safe for concurrent use; only uniqueness is guaranteed, not ordering
// between callers.
func Next() string {
	id := counter.Add(1) - 1
	return fmt.Sprintf("%s%02d", constants.ThreadNamePrefix, id)
}
