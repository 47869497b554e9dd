// Package cli is the sekaipass command line: the server itself plus the
// tools operators need around it.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/app"
	"github.com/spf13/cobra"
)

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sekaipass",
		Short: "SEKAI Pass identity provider",
		Long: `sekaipass runs the SEKAI Pass OAuth 2.0 authorization server and manages
its client registry.

The server is configured through environment variables (AUTH_*, see serve --help).
Registry commands open the same database the server uses.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newClientCmd(),
		newKeygenCmd(),
		newAssertionCmd(),
		newHashCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), app.BuildVersion)
			return err
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
