// Package affinity pins the calling OS thread to a set of CPUs.
//
// Callers must hold the thread with runtime.LockOSThread for the pin to
// mean anything; the executor does this for every worker.
package affinity

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned on platforms without thread affinity support.
var ErrUnsupported = errors.New("affinity: thread pinning not supported on this platform")

// Pinner pins the current OS thread to cpus.
type Pinner func(cpus []int) error

// Pin pins the calling OS thread to cpus. An empty set is a no-op.
func Pin(cpus []int) error {
	if len(cpus) == 0 {
		return nil
	}
	for _, cpu := range cpus {
		if cpu < 0 {
			return fmt.Errorf("affinity: invalid cpu index %d", cpu)
		}
	}
	return pin(cpus)
}
