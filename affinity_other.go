//go:build !linux

package tickpool

// PinToCPU restricts the calling OS thread to a single logical CPU. Thread
// affinity is only supported on linux; elsewhere it returns
// ErrPinUnsupported.
func PinToCPU(int) error {
	return ErrPinUnsupported
}
