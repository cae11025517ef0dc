package secretbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSealOpen_RoundTrip(t *testing.T) {
	box, err := New(testKey)
	require.NoError(t, err)

	sealed, err := box.Seal("acct_tok_123", "org-1")
	require.NoError(t, err)
	require.NotContains(t, sealed, "acct_tok_123")

	plain, err := box.Open(sealed, "org-1")
	require.NoError(t, err)
	require.Equal(t, "acct_tok_123", plain)
}

func TestSeal_UsesFreshNonce(t *testing.T) {
	box, err := New(testKey)
	require.NoError(t, err)

	a, err := box.Seal("same", "org-1")
	require.NoError(t, err)
	b, err := box.Seal("same", "org-1")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestOpen_Failures(t *testing.T) {
	box, err := New(testKey)
	require.NoError(t, err)
	sealed, err := box.Seal("secret", "org-1")
	require.NoError(t, err)

	_, err = box.Open(sealed, "org-2")
	require.Error(t, err, "aad mismatch must fail")

	_, err = box.Open("not base64!!", "org-1")
	require.ErrorIs(t, err, ErrMalformed)

	_, err = box.Open("AAAA", "org-1")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestNew_RejectsBadKeys(t *testing.T) {
	_, err := New("zz")
	require.Error(t, err)

	_, err = New(strings.Repeat("ab", 16))
	require.Error(t, err)
}
