//go:build linux

package sched

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Realtime switches the calling thread to SCHED_FIFO.
type Realtime struct {
	// Priority is the FIFO priority, 1..99. Zero means MaxFIFOPriority.
	Priority uint32
}

func (r Realtime) Elevate() error {
	prio := r.Priority
	if prio == 0 || prio > MaxFIFOPriority {
		prio = MaxFIFOPriority
	}
	attr := &unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: prio,
	}
	if err := unix.SchedSetAttr(0, attr, 0); err != nil {
		return fmt.Errorf("sched_setattr SCHED_FIFO/%d: %w", prio, err)
	}
	return nil
}

func (Realtime) Restore() error {
	attr := &unix.SchedAttr{
		Size:   unix.SizeofSchedAttr,
		Policy: unix.SCHED_NORMAL,
	}
	if err := unix.SchedSetAttr(0, attr, 0); err != nil {
		return fmt.Errorf("sched_setattr SCHED_NORMAL: %w", err)
	}
	return nil
}

// Current reports the policy and priority of the calling thread.
func Current() (policy, priority uint32, err error) {
	attr, err := unix.SchedGetAttr(0, 0)
	if err != nil {
		return 0, 0, err
	}
	return attr.Policy, attr.Priority, nil
}
