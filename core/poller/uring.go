package poller

// NewUringPoller would return an io_uring backed poller (Linux 5.1+). No
// implementation exists yet, so callers always fall back to NewPoller.
func NewUringPoller() (Poller, error) {
	return nil, ErrUnsupported
}
