package cryptox_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soundlab/soundlab/pkg/cryptox"
)

func TestGenerateToken(t *testing.T) {
	t.Run("generates distinct url-safe tokens", func(t *testing.T) {
		a, err := cryptox.GenerateToken(cryptox.TokenSize128)
		require.NoError(t, err)
		b, err := cryptox.GenerateToken(cryptox.TokenSize128)
		require.NoError(t, err)

		require.NotEqual(t, a, b)
		require.Len(t, a, 22) // 16 bytes base64url, no padding
		require.NotContains(t, a, "=")
		require.NotContains(t, a, "+")
		require.NotContains(t, a, "/")
	})

	t.Run("rejects non-positive size", func(t *testing.T) {
		_, err := cryptox.GenerateToken(0)
		require.Error(t, err)
	})
}

func TestFingerprintToken(t *testing.T) {
	fp := cryptox.FingerprintToken("some-bearer-token")

	require.Equal(t, cryptox.FingerprintToken("some-bearer-token"), fp)
	require.NotEqual(t, cryptox.FingerprintToken("other-token"), fp)
	require.NotContains(t, fp, "some-bearer-token")
}

func TestRateIdentity(t *testing.T) {
	id := cryptox.RateIdentity("bearer-abc")

	require.Equal(t, cryptox.RateIdentity("bearer-abc"), id)
	require.NotEqual(t, cryptox.RateIdentity("bearer-xyz"), id)
	require.Len(t, id, 22) // 128-bit digest base64url
}
