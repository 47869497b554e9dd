package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/spf13/cobra"
)

func newHashCmd() *cobra.Command {
	var pepperFile string
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Hash a password read from stdin",
		Long: `Read one line from stdin and print its Argon2id hash in the format the
server stores. Use the server's pepper file or the hash will not verify.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pepperFile != "" {
				if err := cryptox.LoadPepperFile(pepperFile); err != nil {
					return err
				}
			}

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.New("no password on stdin")
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return errors.New("empty password")
			}

			hash, err := cryptox.HashPassword(password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
	cmd.Flags().StringVar(&pepperFile, "pepper-file", "", "pepper file (default none)")
	return cmd
}
