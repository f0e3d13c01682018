package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/smazurov/tinycam/internal/camera"
	"github.com/smazurov/tinycam/pkg/linuxav/v4l2"
)

// DeviceReport is the output of the info command.
type DeviceReport struct {
	Device   string          `json:"device"`
	Driver   string          `json:"driver"`
	Card     string          `json:"card"`
	BusInfo  string          `json:"bus_info"`
	Format   camera.Format   `json:"format"`
	FourCC   string          `json:"fourcc"`
	Formats  []string        `json:"formats"`
	Controls []ControlReport `json:"controls"`
}

// ControlReport describes one control and its current value.
type ControlReport struct {
	ID      uint32 `json:"id"`
	Name    string `json:"name"`
	Key     string `json:"key"`
	Type    string `json:"type"`
	Minimum int32  `json:"minimum"`
	Maximum int32  `json:"maximum"`
	Default int32  `json:"default"`
	Value   *int32 `json:"value,omitempty"`
}

// CreateInfoCmd creates the info command.
func CreateInfoCmd() *cobra.Command {
	var device string
	var asJSON bool

	c := &cobra.Command{
		Use:   "info",
		Short: "Show capabilities, formats and controls of a device",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			report, err := inspectDevice(device)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(c.OutOrStdout(), report)
			}
			return printReport(c, report)
		},
	}
	addDeviceFlag(c, &device)
	c.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return c
}

func inspectDevice(path string) (report DeviceReport, err error) {
	cam, err := openCamera(path)
	if err != nil {
		return report, err
	}
	defer func() { err = multierr.Append(err, cam.Close()) }()

	caps := cam.Capabilities()
	report = DeviceReport{
		Device:  path,
		Driver:  caps.Driver,
		Card:    caps.Card,
		BusInfo: caps.BusInfo,
	}

	if report.Format, err = cam.GetFormat(); err != nil {
		return report, err
	}
	report.FourCC = report.Format.FourCC()

	formats, err := cam.QueryFormats()
	if err != nil {
		return report, err
	}
	for _, f := range formats {
		report.Formats = append(report.Formats, fmt.Sprintf("%s (%s)", f.PixelFormat, f.FormatName))
	}

	controls, err := cam.QueryControls()
	if err != nil {
		return report, err
	}
	for _, ctrl := range controls {
		cr := ControlReport{
			ID:      ctrl.ID,
			Name:    ctrl.Name,
			Key:     camera.ControlKey(ctrl.Name),
			Type:    ctrl.Type.String(),
			Minimum: ctrl.Minimum,
			Maximum: ctrl.Maximum,
			Default: ctrl.Default,
		}
		if ctrl.Type != v4l2.ControlTypeButton {
			if v, gerr := cam.GetControl(ctrl.ID); gerr == nil {
				cr.Value = &v
			}
		}
		report.Controls = append(report.Controls, cr)
	}
	return report, nil
}

func printReport(c *cobra.Command, r DeviceReport) error {
	out := c.OutOrStdout()
	fmt.Fprintf(out, "Device:  %s\nDriver:  %s\nCard:    %s\nBus:     %s\nFormat:  %s\n\n",
		r.Device, r.Driver, r.Card, r.BusInfo, r.Format)

	fmt.Fprintln(out, "Formats:")
	for _, f := range r.Formats {
		fmt.Fprintf(out, "  %s\n", f)
	}

	fmt.Fprintln(out, "\nControls:")
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tKEY\tTYPE\tRANGE\tDEFAULT\tVALUE")
	for _, ctrl := range r.Controls {
		value := "-"
		if ctrl.Value != nil {
			value = fmt.Sprint(*ctrl.Value)
		}
		fmt.Fprintf(tw, "  0x%08x\t%s\t%s\t%d..%d\t%d\t%s\n",
			ctrl.ID, ctrl.Key, ctrl.Type, ctrl.Minimum, ctrl.Maximum, ctrl.Default, value)
	}
	return tw.Flush()
}
