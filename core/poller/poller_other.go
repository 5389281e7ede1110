//go:build !linux && !darwin

package poller

// NewPoller reports ErrUnsupported on platforms without epoll or kqueue
func NewPoller() (Poller, error) {
	return nil, ErrUnsupported
}
