package cli

import (
	"fmt"

	"github.com/aryankumar/fanout/internal/cli/cmdutil"
	"github.com/aryankumar/fanout/internal/output"
	"github.com/aryankumar/fanout/pkg/version"
	"github.com/spf13/cobra"
)

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Display detailed version information for the Fanout CLI",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd)
		},
	}

	return cmd
}

func runVersion(cmd *cobra.Command) error {
	info := version.Get()
	w := cmd.OutOrStdout()

	// Default to human-readable format
	if !cmd.Flags().Changed("output") {
		_, err := fmt.Fprintln(w, info.String())
		return err
	}

	rt, err := cmdutil.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	formatter, err := rt.Formatter()
	if err != nil {
		return err
	}

	if rt.Format() == output.FormatTable {
		return formatter.Format(w, map[string]interface{}{
			"Version":    info.Version,
			"Commit":     info.Commit,
			"Build Time": info.BuildTime,
			"Go Version": info.GoVersion,
			"Platform":   info.Platform,
		})
	}
	return formatter.Format(w, info)
}
