//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// FindDevices finds all V4L2 video capture devices on the system.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir("/sys/class/video4linux")
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	logger := slog.With("component", "linuxav")
	var devices []DeviceInfo

	for _, entry := range entries {
		devicePath := "/dev/" + entry.Name()

		dev, err := OpenNonBlocking(devicePath)
		if err != nil {
			logger.Debug("failed to open video device", "path", devicePath, "error", err)
			continue
		}
		caps, err := dev.QueryCapability()
		_ = dev.Close()
		if err != nil {
			logger.Debug("failed to query device capabilities", "path", devicePath, "error", err)
			continue
		}

		// Only include video capture devices
		if !caps.Has(CapVideoCapture) {
			continue
		}

		indexValue := readSysfsInt(filepath.Join("/sys/class/video4linux", entry.Name(), "index"))

		stableID := findStableID(entry.Name(), indexValue)
		if stableID == "" {
			if strings.HasPrefix(caps.BusInfo, "usb-") {
				stableID = fmt.Sprintf("%s-video-index%d", caps.BusInfo, indexValue)
			} else {
				stableID = fmt.Sprintf("platform-%s-video-index%d", caps.BusInfo, indexValue)
			}
		}

		devices = append(devices, DeviceInfo{
			DevicePath: devicePath,
			DeviceName: caps.Card,
			DeviceID:   stableID,
			Caps:       caps.Effective(),
			Streaming:  caps.Has(CapStreaming),
		})
	}

	return devices, nil
}

// GetDevicePathByID finds the device path for a given stable device ID.
func GetDevicePathByID(deviceID string) (string, error) {
	devices, err := FindDevices()
	if err != nil {
		return "", fmt.Errorf("failed to find devices: %w", err)
	}

	for _, device := range devices {
		if device.DeviceID == deviceID {
			return device.DevicePath, nil
		}
	}

	return "", fmt.Errorf("device with ID %s not found", deviceID)
}

// findStableID looks for a stable ID symlink in /dev/v4l/by-id/
func findStableID(deviceName string, indexValue int) string {
	byIDDir := "/dev/v4l/by-id"
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return ""
	}

	expectedSuffix := fmt.Sprintf("-video-index%d", indexValue)

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}

		target, err := os.Readlink(filepath.Join(byIDDir, entry.Name()))
		if err != nil {
			continue
		}

		if filepath.Base(target) == deviceName && strings.HasSuffix(entry.Name(), expectedSuffix) {
			return entry.Name()
		}
	}

	return ""
}

func readSysfsInt(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	val, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return val
}

// EnumFrameSizes returns the supported resolutions for a pixel format.
// Stepwise and continuous ranges are reduced to the common sizes that fit.
func (d *Device) EnumFrameSizes(pixelFormat PixelFormat) ([]Resolution, error) {
	var resolutions []Resolution

	for i := uint32(0); ; i++ {
		frmsize := v4l2Frmsizeenum{
			index:       i,
			pixelFormat: uint32(pixelFormat),
		}

		if err := ioctl(d.fd, vidiocEnumFramesizes, unsafe.Pointer(&frmsize)); err != nil {
			if errors.Is(err, unix.EINVAL) {
				break
			}
			if errors.Is(err, unix.ENOTTY) {
				return []Resolution{}, nil
			}
			return nil, fmt.Errorf("failed to enumerate frame size %d: %w", i, err)
		}

		switch frmsize.typ {
		case frmsizeTypeDiscrete:
			resolutions = append(resolutions, Resolution{
				Width:  frmsize.discrete.width,
				Height: frmsize.discrete.height,
			})
		case frmsizeTypeContinuous, frmsizeTypeStepwise:
			stepwise := (*v4l2FrmsizeStepwise)(unsafe.Pointer(&frmsize.discrete))
			return append(resolutions, stepwiseResolutions(stepwise)...), nil
		}
	}

	return resolutions, nil
}

// EnumFrameIntervals returns the supported frame intervals for a format and
// resolution.
func (d *Device) EnumFrameIntervals(pixelFormat PixelFormat, width, height uint32) ([]Framerate, error) {
	var framerates []Framerate

	for i := uint32(0); ; i++ {
		frmival := v4l2Frmivalenum{
			index:       i,
			pixelFormat: uint32(pixelFormat),
			width:       width,
			height:      height,
		}

		if err := ioctl(d.fd, vidiocEnumFrameintervals, unsafe.Pointer(&frmival)); err != nil {
			if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOTTY) {
				break
			}
			return nil, fmt.Errorf("failed to enumerate frame interval %d: %w", i, err)
		}

		switch frmival.typ {
		case frmivalTypeDiscrete:
			framerates = append(framerates, Framerate{
				Numerator:   frmival.discrete.numerator,
				Denominator: frmival.discrete.denominator,
			})
		case frmivalTypeContinuous, frmivalTypeStepwise:
			return append(framerates, commonFramerates()...), nil
		}
	}

	return framerates, nil
}

func stepwiseResolutions(sw *v4l2FrmsizeStepwise) []Resolution {
	var resolutions []Resolution
	for _, res := range commonResolutions {
		if res.Width >= sw.minWidth && res.Width <= sw.maxWidth &&
			res.Height >= sw.minHeight && res.Height <= sw.maxHeight {
			resolutions = append(resolutions, res)
		}
	}
	return resolutions
}
