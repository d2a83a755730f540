//go:build !linux

package sched

type Realtime struct {
	Priority uint32
}

func (Realtime) Elevate() error { return ErrUnsupported }
func (Realtime) Restore() error { return ErrUnsupported }

func Current() (policy, priority uint32, err error) {
	return 0, 0, ErrUnsupported
}
