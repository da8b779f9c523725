package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x42}, 32))
}

func TestCipher_RoundTrip(t *testing.T) {
	c, err := New(testKey())
	require.NoError(t, err)

	ct, err := c.Encrypt("ABCDE1234F")
	require.NoError(t, err)
	pt, err := c.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "ABCDE1234F", pt)

	// random nonce: same plaintext never encrypts identically
	ct2, err := c.Encrypt("ABCDE1234F")
	require.NoError(t, err)
	assert.NotEqual(t, ct, ct2)
}

func TestCipher_StringRoundTrip(t *testing.T) {
	c, err := New(testKey())
	require.NoError(t, err)

	enc, err := c.EncryptToString("FGHIJ5678K")
	require.NoError(t, err)
	pt, err := c.DecryptFromString(enc)
	require.NoError(t, err)
	assert.Equal(t, "FGHIJ5678K", pt)
}

func TestCipher_TamperedCiphertext(t *testing.T) {
	c, err := New(testKey())
	require.NoError(t, err)

	ct, err := c.Encrypt("ABCDE1234F")
	require.NoError(t, err)
	ct[len(ct)-1] ^= 0xff
	_, err = c.Decrypt(ct)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = c.Decrypt([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNew_RejectsBadKey(t *testing.T) {
	_, err := New("not-base64!!!")
	assert.Error(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("too-short"))
	_, err = New(short)
	assert.Error(t, err)
}

func TestHash_Deterministic(t *testing.T) {
	assert.Equal(t, Hash("ABCDE1234F"), Hash("ABCDE1234F"))
	assert.NotEqual(t, Hash("ABCDE1234F"), Hash("FGHIJ5678K"))
	assert.Len(t, Hash("ABCDE1234F"), 64)
}

func TestMaskPAN(t *testing.T) {
	assert.Equal(t, "XXXXX1234F", MaskPAN("ABCDE1234F"))
	assert.Equal(t, "XXXXXXXXXX", MaskPAN("short"))
	assert.Equal(t, "XXXXXXXXXX", MaskPAN(""))
}
