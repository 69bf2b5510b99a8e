package vault

import (
	"crypto/x509"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	key1 = []byte("thisis32byteslongsecretkey123456")
	key2 = []byte("another32byteslongsecretkey65432")
)

func TestSealOpen(t *testing.T) {
	plaintext := []byte(`{"id":"123","allocations":[]}`)

	sealed, err := Seal(plaintext, key1)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "allocations")

	opened, err := Open(sealed, key1)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenWithWrongKey(t *testing.T) {
	sealed, err := Seal([]byte("Secret message"), key1)
	require.NoError(t, err)

	_, err = Open(sealed, key2)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestOpenGarbage(t *testing.T) {
	_, err := Open([]byte("not hex at all"), key1)
	assert.Error(t, err)

	_, err = Open([]byte("abcd"), key1)
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	key, err := ParseKey("")
	require.NoError(t, err)
	assert.Nil(t, key)

	key, err = ParseKey(strings.Repeat("ab", KeySize))
	require.NoError(t, err)
	assert.Len(t, key, KeySize)

	_, err = ParseKey("abcd")
	assert.Error(t, err)

	_, err = ParseKey("zz")
	assert.Error(t, err)
}

func TestGenerateSelfSignedCert(t *testing.T) {
	cert, err := GenerateSelfSignedCert()
	require.NoError(t, err)
	require.Len(t, cert.Certificate, 1)

	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	assert.Contains(t, parsed.DNSNames, "localhost")
}
