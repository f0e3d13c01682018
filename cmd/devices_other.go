//go:build !linux

package cmd

import (
	"errors"

	"github.com/smazurov/tinycam/pkg/linuxav/v4l2"
)

func findDevices() ([]v4l2.DeviceInfo, error) {
	return nil, errors.New("device discovery is only supported on linux")
}
