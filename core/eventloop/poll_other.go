//go:build !linux && !darwin

package eventloop

import "github.com/searchktools/hive/core/poller"

func newPoll(poller.Poller) (Loop, error) {
	return nil, ErrUnsupported
}
