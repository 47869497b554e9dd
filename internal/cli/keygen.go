package cli

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"os"

	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/IaSoC/sekai-pass-l10n/pkg/jwtx"
	"github.com/go-jose/go-jose/v4"
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	var (
		alg     string
		kid     string
		bits    int
		keyOut  string
		jwkOut  string
		asJWKS  bool
		private bool
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a client key pair for private_key_jwt",
		Long: `Generate a private key for signing client assertions. The private key is
written as PKCS#8 PEM to --out; the public JWK is printed (or written to --jwk)
ready for "client add-key" or a clients file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				pemKey []byte
				err    error
			)
			switch alg {
			case jwtx.AlgES256:
				pemKey, err = cryptox.GenerateES256Key()
			case jwtx.AlgRS256:
				pemKey, err = cryptox.GenerateRSAKey(bits)
			default:
				return fmt.Errorf("%w: %q", jwtx.ErrUnsupportedAlgorithm, alg)
			}
			if err != nil {
				return err
			}

			signer, err := jwtx.NewSignerFromPEM(alg, kid, pemKey)
			if err != nil {
				return err
			}

			if keyOut != "" {
				if err := os.WriteFile(keyOut, pemKey, 0o600); err != nil {
					return err
				}
			} else if private {
				if _, err := cmd.OutOrStdout().Write(pemKey); err != nil {
					return err
				}
			} else {
				return fmt.Errorf("refusing to discard the private key: set --out or --print-private")
			}

			jwk := signer.PublicJWK()
			var doc any = jwk
			if asJWKS {
				doc = jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}}
			}
			if jwkOut != "" {
				f, err := os.OpenFile(jwkOut, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
				if err != nil {
					return err
				}
				defer f.Close()
				return printJSON(f, doc)
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}
	cmd.Flags().StringVar(&alg, "alg", jwtx.AlgES256, "ES256 or RS256")
	cmd.Flags().StringVar(&kid, "kid", "", "key id (default RFC 7638 thumbprint)")
	cmd.Flags().IntVar(&bits, "bits", 3072, "RSA modulus size")
	cmd.Flags().StringVarP(&keyOut, "out", "o", "", "private key PEM output file")
	cmd.Flags().StringVar(&jwkOut, "jwk", "", "public JWK output file (default stdout)")
	cmd.Flags().BoolVar(&asJWKS, "jwks", false, "wrap the public key in a JWK Set")
	cmd.Flags().BoolVar(&private, "print-private", false, "print the private key PEM to stdout when --out is not set")
	return cmd
}

func newAssertionCmd() *cobra.Command {
	var (
		clientID string
		keyFile  string
		audience string
		kid      string
	)
	cmd := &cobra.Command{
		Use:   "assertion",
		Short: "Mint a client assertion for manual token requests",
		Long: `Sign a single-use RFC 7523 client assertion. Send it as client_assertion with
client_assertion_type=urn:ietf:params:oauth:client-assertion-type:jwt-bearer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pemKey, err := os.ReadFile(keyFile)
			if err != nil {
				return err
			}
			key, err := cryptox.ParsePrivateKeyPEM(pemKey)
			if err != nil {
				return err
			}

			var alg string
			switch key.(type) {
			case *ecdsa.PrivateKey:
				alg = jwtx.AlgES256
			case *rsa.PrivateKey:
				alg = jwtx.AlgRS256
			default:
				return fmt.Errorf("%w: key type %T", jwtx.ErrUnsupportedAlgorithm, key)
			}
			signer, err := jwtx.NewSignerFromPEM(alg, kid, pemKey)
			if err != nil {
				return err
			}

			assertion, err := jwtx.BuildAssertion(clientID, audience, signer)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), assertion)
			return err
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", "", "client id (iss and sub)")
	cmd.Flags().StringVar(&keyFile, "key", "", "private key PEM")
	cmd.Flags().StringVar(&audience, "aud", "", "token endpoint URL")
	cmd.Flags().StringVar(&kid, "kid", "", "key id (default RFC 7638 thumbprint)")
	_ = cmd.MarkFlagRequired("client-id")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("aud")
	return cmd
}
