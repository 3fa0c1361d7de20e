package cache

import (
	stderrors "errors"
	"fmt"
	"net"

	"github.com/canopyviz/canopy/pkg/errors"
)

// ErrNetwork is returned for failures reaching a remote cache backend.
var ErrNetwork = errors.New(errors.ErrCodeUnavailable, "cache backend unreachable")

// classify marks network failures as transient so reads and writes of a
// snapshot survive a dropped connection. Anything else fails at once.
func classify(err error) error {
	var ne net.Error
	if stderrors.As(err, &ne) {
		return errors.Transient(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	return err
}
