package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/smazurov/tinycam/internal/camera"
)

// CreateControlCmd creates the control command with get and set
// subcommands.
func CreateControlCmd() *cobra.Command {
	var device string

	c := &cobra.Command{
		Use:   "control",
		Short: "Read or write device controls",
	}
	c.PersistentFlags().StringVarP(&device, "device", "d", DefaultDevice, "Video capture device")

	c.AddCommand(&cobra.Command{
		Use:   "get <name|id>",
		Short: "Print the current value of a control",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) (err error) {
			cam, err := openCamera(device)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, cam.Close()) }()

			if _, err := cam.QueryControls(); err != nil {
				return err
			}
			sel := parseSelector(args[0])
			ctrl, ok := cam.LookupControl(sel.ID, sel.Name)
			if !ok {
				return fmt.Errorf("unknown control %q", args[0])
			}
			v, err := cam.GetControl(ctrl.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "%s=%d\n", camera.ControlKey(ctrl.Name), v)
			return nil
		},
	})

	c.AddCommand(&cobra.Command{
		Use:   "set <name|id>=<value>...",
		Short: "Write one or more controls",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) (err error) {
			values := make([]camera.ControlValue, 0, len(args))
			for _, arg := range args {
				cv, perr := ParseControlArg(arg)
				if perr != nil {
					return perr
				}
				values = append(values, cv)
			}

			cam, err := openCamera(device)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, cam.Close()) }()

			for _, cv := range values {
				ctrl, aerr := cam.ApplyControl(cv)
				if aerr != nil {
					return aerr
				}
				fmt.Fprintf(c.OutOrStdout(), "%s=%d\n", camera.ControlKey(ctrl.Name), cv.Value)
			}
			return nil
		},
	})

	return c
}

// ParseControlArg parses "brightness=120" or "0x00980900=120".
func ParseControlArg(arg string) (camera.ControlValue, error) {
	key, raw, ok := strings.Cut(arg, "=")
	if !ok || key == "" {
		return camera.ControlValue{}, fmt.Errorf("invalid control %q (want name=value)", arg)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 0, 32)
	if err != nil {
		return camera.ControlValue{}, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	cv := parseSelector(key)
	cv.Value = int32(v)
	return cv, nil
}

func parseSelector(s string) camera.ControlValue {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseUint(s, 0, 32); err == nil {
		return camera.ControlValue{ID: uint32(id)}
	}
	return camera.ControlValue{Name: s}
}
