package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanlex/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var asJSON, short, deps bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				return encodeJSON(cmd, version.Get())
			case short:
				_, err := fmt.Fprintln(out, version.Short())
				return err
			}
			if _, err := fmt.Fprintln(out, version.String()); err != nil {
				return err
			}
			if deps {
				for _, line := range version.DepLines() {
					_, _ = fmt.Fprintln(out, "  "+line)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print build info as JSON")
	cmd.Flags().BoolVar(&short, "short", false, "print only the version")
	cmd.Flags().BoolVar(&deps, "deps", false, "also list index and protocol library versions")
	return cmd
}
