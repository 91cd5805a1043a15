// Package lifecycle holds timing constants for process start and stop.
package lifecycle

import "time"

// DefaultTimeout bounds startup pings and graceful shutdown of a single component.
const DefaultTimeout = 10 * time.Second
