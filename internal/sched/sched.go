// Package sched moves the calling thread in and out of the realtime
// scheduling class so frame refreshes are not delayed by other processes.
//
// The policy applies to the OS thread that calls Elevate. Callers should
// runtime.LockOSThread on the goroutine that drives the strip.
package sched

import "errors"

var ErrUnsupported = errors.New("sched: realtime scheduling not supported on this platform")

// Priority raises and restores the scheduling class of the control thread.
type Priority interface {
	Elevate() error
	Restore() error
}

// Nop leaves scheduling untouched.
type Nop struct{}

func (Nop) Elevate() error { return nil }
func (Nop) Restore() error { return nil }

// MaxFIFOPriority is the highest SCHED_FIFO priority on Linux.
const MaxFIFOPriority = 99
