package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/smazurov/tinycam/internal/camera"
	"github.com/smazurov/tinycam/internal/logging"
)

// DefaultDevice is used when --device is not given.
const DefaultDevice = "/dev/video0"

// opener opens devices for the subcommands. Tests replace it.
var opener camera.Opener = camera.BlockingOpener

// openCamera opens path and checks it is a streaming capture node. The
// caller must Close the returned camera.
func openCamera(path string) (*camera.Camera, error) {
	cam := camera.New(path, camera.Options{
		Opener: opener,
		Logger: logging.GetLogger("camera"),
	})
	if err := cam.Open(); err != nil {
		return nil, err
	}
	if _, err := cam.QueryCapabilities(); err != nil {
		_ = cam.Close()
		return nil, err
	}
	return cam, nil
}

func addDeviceFlag(c *cobra.Command, device *string) {
	c.Flags().StringVarP(device, "device", "d", DefaultDevice, "Video capture device")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
