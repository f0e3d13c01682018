//go:build linux

package camera

import "github.com/smazurov/tinycam/pkg/linuxav/v4l2"

// BlockingOpener opens the node so that dequeue waits for a filled buffer.
func BlockingOpener(path string) (Device, error) {
	dev, err := v4l2.Open(path)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// NonBlockingOpener opens the node so that dequeue reports ErrTryAgain
// when no buffer is ready.
func NonBlockingOpener(path string) (Device, error) {
	dev, err := v4l2.OpenNonBlocking(path)
	if err != nil {
		return nil, err
	}
	return dev, nil
}
