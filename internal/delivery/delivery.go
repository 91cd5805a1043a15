// Package delivery holds the runnable entry points of a process.
package delivery

import "context"

// Delivery is a long-running component started by the fx invoke in main.
// Serve blocks until the component stops or fails.
type Delivery interface {
	Serve(ctx context.Context) error
}
