//go:build linux

package cmd

import "github.com/smazurov/tinycam/pkg/linuxav/v4l2"

func findDevices() ([]v4l2.DeviceInfo, error) {
	return v4l2.FindDevices()
}
