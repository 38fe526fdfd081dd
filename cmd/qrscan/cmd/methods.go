package cmd

import (
	"fmt"
	"slices"

	"github.com/MeKo-Tech/qrscan/internal/transform"
	"github.com/spf13/cobra"
)

func newMethodsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the available pre-processing methods",
		Long: `List the pre-processing methods that can be passed to 'scan --methods'.
Methods marked with * are enabled by the current configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enabled, err := transform.DefaultRegistry().Resolve(a.cfg.Scan.Methods)
			if err != nil {
				return err
			}
			names := make([]string, len(enabled))
			for i, m := range enabled {
				names[i] = m.Name
			}

			out := cmd.OutOrStdout()
			for _, name := range transform.DefaultRegistry().Names() {
				mark := " "
				if slices.Contains(names, name) {
					mark = "*"
				}
				if _, err := fmt.Fprintf(out, "%s %s\n", mark, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
