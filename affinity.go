//go:build linux

package tickpool

import (
	"golang.org/x/sys/unix"
)

// PinToCPU restricts the calling OS thread to a single logical CPU.
// The caller must hold the thread with runtime.LockOSThread.
func PinToCPU(cpu int) error {
	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpu)
	return unix.SchedSetaffinity(0, &mask)
}
