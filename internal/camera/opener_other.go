//go:build !linux

package camera

import "errors"

var errUnsupported = errors.New("v4l2 capture is only supported on linux")

// BlockingOpener always fails on this platform.
func BlockingOpener(string) (Device, error) {
	return nil, errUnsupported
}

// NonBlockingOpener always fails on this platform.
func NonBlockingOpener(string) (Device, error) {
	return nil, errUnsupported
}
