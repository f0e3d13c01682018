package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// listDevices enumerates capture nodes. Tests replace it.
var listDevices = findDevices

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var asJSON bool
	c := &cobra.Command{
		Use:   "devices",
		Short: "List video capture devices",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			devices, err := listDevices()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(c.OutOrStdout(), devices)
			}
			if len(devices) == 0 {
				fmt.Fprintln(c.OutOrStdout(), "No capture devices found")
				return nil
			}
			tw := tabwriter.NewWriter(c.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tNAME\tID\tSTREAMING")
			for _, d := range devices {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", d.DevicePath, d.DeviceName, d.DeviceID, d.Streaming)
			}
			return tw.Flush()
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return c
}

