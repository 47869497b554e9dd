package cryptox_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateES256Key(t *testing.T) {
	pemBytes, err := cryptox.GenerateES256Key()
	require.NoError(t, err)

	block, _ := pem.Decode(pemBytes)
	require.NotNil(t, block)
	require.Equal(t, "PRIVATE KEY", block.Type)

	signer, err := cryptox.ParsePrivateKeyPEM(pemBytes)
	require.NoError(t, err)
	key, ok := signer.(*ecdsa.PrivateKey)
	require.True(t, ok)
	require.Equal(t, elliptic.P256(), key.Curve)
}

func TestGenerateRSAKey(t *testing.T) {
	pemBytes, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)

	signer, err := cryptox.ParsePrivateKeyPEM(pemBytes)
	require.NoError(t, err)
	key, ok := signer.(*rsa.PrivateKey)
	require.True(t, ok)
	require.Equal(t, 2048, key.N.BitLen())

	_, err = cryptox.GenerateRSAKey(1024)
	require.Error(t, err)
}

func TestParsePrivateKeyPEM_LegacyBlocks(t *testing.T) {
	pemBytes, err := cryptox.GenerateES256Key()
	require.NoError(t, err)
	signer, err := cryptox.ParsePrivateKeyPEM(pemBytes)
	require.NoError(t, err)

	sec1, err := x509.MarshalECPrivateKey(signer.(*ecdsa.PrivateKey))
	require.NoError(t, err)
	parsed, err := cryptox.ParsePrivateKeyPEM(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: sec1}))
	require.NoError(t, err)
	require.True(t, signer.(*ecdsa.PrivateKey).Equal(parsed))
}

func TestParsePrivateKeyPEM_Invalid(t *testing.T) {
	_, err := cryptox.ParsePrivateKeyPEM([]byte("not pem"))
	require.ErrorIs(t, err, cryptox.ErrInvalidKeyPEM)

	_, err = cryptox.ParsePrivateKeyPEM(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}}))
	require.ErrorIs(t, err, cryptox.ErrInvalidKeyPEM)

	_, err = cryptox.ParsePrivateKeyPEM(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{1, 2, 3}}))
	require.ErrorIs(t, err, cryptox.ErrInvalidKeyPEM)
}
