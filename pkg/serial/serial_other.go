//go:build !linux

package serial

// Open is not supported on this platform.
func Open(path string, baud int) (Port, error) {
	return nil, ErrUnsupported
}
