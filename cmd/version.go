package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/tinycam/internal/version"
)

// CreateVersionCmd creates the version command.
func CreateVersionCmd() *cobra.Command {
	var asJSON bool
	c := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			info := version.Get()
			if asJSON {
				return writeJSON(c.OutOrStdout(), info)
			}
			fmt.Fprintf(c.OutOrStdout(), "tinycam %s (%s, built %s, %s %s)\n",
				info.Version, info.GitCommit, info.BuildDate, info.GoVersion, info.Platform)
			return nil
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return c
}
