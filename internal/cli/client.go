package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/app"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/service"
	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/spf13/cobra"
)

type registryFlags struct {
	dbFile string
}

// open loads the server config, overrides the database when --db is set and
// installs the pepper so secrets hash the way the server checks them.
func (f *registryFlags) open() (*service.ClientService, func() error, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if f.dbFile != "" {
		cfg.DatabaseFile = f.dbFile
	}
	if cfg.PepperFile != "" {
		if err := cryptox.LoadPepperFile(cfg.PepperFile); err != nil {
			return nil, nil, err
		}
	}
	st, err := app.OpenStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return &service.ClientService{Store: st}, st.Close, nil
}

func newClientCmd() *cobra.Command {
	flags := &registryFlags{}
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage the client registry",
	}
	cmd.PersistentFlags().StringVar(&flags.dbFile, "db", "", "database file (default $AUTH_DATABASE_FILE)")

	cmd.AddCommand(
		newClientCreateCmd(flags),
		newClientListCmd(flags),
		newClientAddKeyCmd(flags),
		newClientRevokeKeyCmd(flags),
		newClientDeleteCmd(flags),
	)
	return cmd
}

type clientOutput struct {
	ClientID                string      `json:"client_id"`
	Name                    string      `json:"client_name"`
	RedirectURIs            []string    `json:"redirect_uris"`
	Scopes                  []string    `json:"scopes,omitempty"`
	TokenEndpointAuthMethod string      `json:"token_endpoint_auth_method"`
	ClientSecret            string      `json:"client_secret,omitempty"`
	Keys                    []keyOutput `json:"keys,omitempty"`
}

type keyOutput struct {
	KeyID     string     `json:"kid"`
	Algorithm string     `json:"alg"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

func toClientOutput(c domain.Client, secret string) clientOutput {
	out := clientOutput{
		ClientID:                c.ID,
		Name:                    c.Name,
		RedirectURIs:            c.RedirectURIs,
		Scopes:                  c.Scopes,
		TokenEndpointAuthMethod: c.TokenEndpointAuthMethod,
		ClientSecret:            secret,
	}
	for _, k := range c.Keys {
		out.Keys = append(out.Keys, toKeyOutput(k))
	}
	return out
}

func toKeyOutput(k domain.ClientKey) keyOutput {
	return keyOutput{KeyID: k.KeyID, Algorithm: k.Algorithm, CreatedAt: k.CreatedAt, RevokedAt: k.RevokedAt}
}

func newClientCreateCmd(flags *registryFlags) *cobra.Command {
	var spec service.ClientSpec
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a client",
		Long: `Register a client. Secret clients without --secret get a generated secret,
printed once. private_key_jwt clients need keys added with "client add-key".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clients, closeFn, err := flags.open()
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			client, secret, err := clients.CreateClient(cmd.Context(), spec)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), toClientOutput(client, secret))
		},
	}
	cmd.Flags().StringVar(&spec.ID, "id", "", "client id (generated when empty)")
	cmd.Flags().StringVar(&spec.Name, "name", "", "display name")
	cmd.Flags().StringArrayVar(&spec.RedirectURIs, "redirect-uri", nil, "registered redirect URI, repeatable")
	cmd.Flags().StringSliceVar(&spec.Scopes, "scope", nil, "allowed scopes")
	cmd.Flags().StringVar(&spec.AuthMethod, "auth-method", domain.AuthMethodSecretPost,
		"client_secret_post, client_secret_basic or private_key_jwt")
	cmd.Flags().StringVar(&spec.Secret, "secret", "", "client secret (generated when empty)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("redirect-uri")
	return cmd
}

func newClientListCmd(flags *registryFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clients, closeFn, err := flags.open()
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			list, err := clients.ListClients(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				out := make([]clientOutput, 0, len(list))
				for _, c := range list {
					out = append(out, toClientOutput(c, ""))
				}
				return printJSON(cmd.OutOrStdout(), out)
			}
			return printClientTable(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printClientTable(w io.Writer, list []domain.Client) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CLIENT ID\tNAME\tAUTH METHOD\tREDIRECT URIS")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.TokenEndpointAuthMethod, strings.Join(c.RedirectURIs, ","))
	}
	return tw.Flush()
}

func newClientAddKeyCmd(flags *registryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-key CLIENT_ID JWK_FILE",
		Short: "Register a public JWK for a private_key_jwt client",
		Long:  `Register a public JWK. JWK_FILE may be "-" for stdin. The kid defaults to the RFC 7638 thumbprint.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				raw []byte
				err error
			)
			if args[1] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[1])
			}
			if err != nil {
				return err
			}

			clients, closeFn, err := flags.open()
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			key, err := clients.AddKey(cmd.Context(), args[0], raw)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), toKeyOutput(key))
		},
	}
	return cmd
}

func newClientRevokeKeyCmd(flags *registryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke-key CLIENT_ID KID",
		Short: "Stop a client key from verifying new assertions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, closeFn, err := flags.open()
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			if err := clients.RevokeKey(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "revoked %s/%s\n", args[0], args[1])
			return err
		},
	}
}

func newClientDeleteCmd(flags *registryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete CLIENT_ID",
		Short: "Delete a client and everything issued to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, closeFn, err := flags.open()
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			if err := clients.DeleteClient(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return err
		},
	}
}
