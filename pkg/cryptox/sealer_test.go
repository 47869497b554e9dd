package cryptox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer([]byte("master-key"))
	require.NoError(t, err)

	sealed1, err := s.Seal([]byte("JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)
	sealed2, err := s.Seal([]byte("JBSWY3DPEHPK3PXP"))
	require.NoError(t, err)
	require.NotEqual(t, sealed1, sealed2, "nonce must differ per seal")

	plain, err := s.Open(sealed1)
	require.NoError(t, err)
	require.Equal(t, "JBSWY3DPEHPK3PXP", string(plain))
}

func TestSealer_RejectsTamperingAndWrongKey(t *testing.T) {
	s, err := NewSealer([]byte("master-key"))
	require.NoError(t, err)
	sealed, err := s.Seal([]byte("secret"))
	require.NoError(t, err)

	tampered := []byte(sealed)
	tampered[len(tampered)-2] ^= 0x01
	_, err = s.Open(string(tampered))
	require.ErrorIs(t, err, ErrSealedDataInvalid)

	other, err := NewSealer([]byte("other-key"))
	require.NoError(t, err)
	_, err = other.Open(sealed)
	require.ErrorIs(t, err, ErrSealedDataInvalid)

	_, err = s.Open("short")
	require.ErrorIs(t, err, ErrSealedDataInvalid)
	_, err = s.Open("!!!")
	require.ErrorIs(t, err, ErrSealedDataInvalid)

	_, err = NewSealer(nil)
	require.Error(t, err)
}

func TestNewSealerFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.key")
	require.NoError(t, os.WriteFile(path, []byte("file-key\n"), 0o600))

	a, err := NewSealerFromFile(path)
	require.NoError(t, err)
	b, err := NewSealer([]byte("file-key"))
	require.NoError(t, err)

	sealed, err := a.Seal([]byte("x"))
	require.NoError(t, err)
	plain, err := b.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "x", string(plain))

	ephemeral, err := NewSealerFromFile("")
	require.NoError(t, err)
	require.NotNil(t, ephemeral)

	_, err = NewSealerFromFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
