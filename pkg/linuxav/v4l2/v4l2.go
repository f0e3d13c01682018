// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2)
// streaming capture API.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Device Enumeration
//
// Use FindDevices to discover all V4L2 video capture devices:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Memory-Mapped Streaming
//
// A Device exposes the ioctls of the mmap streaming I/O method one to one:
//
//	dev, _ := v4l2.Open("/dev/video0")
//	defer dev.Close()
//	pix, _ := dev.SetFormat(v4l2.PixFormat{Width: 1280, Height: 720, PixelFormat: v4l2.PixelFormatYUYV})
//	count, _ := dev.RequestBuffers(4)
//	for i := uint32(0); i < count; i++ {
//	    info, _ := dev.QueryBuffer(i)
//	    mem, _ := dev.Map(info.Offset, info.Length)
//	    ...
//	}
//
// Sequencing and lifetime rules are left to the caller; see
// internal/camera for the state machine that enforces them.
package v4l2
