package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuthenticationPlugin(t *testing.T) {
	m, err := ParseAuthenticationPlugin("caching_sha2_password")
	require.NoError(t, err)
	assert.Equal(t, CachingSha2Password, m)

	_, err = ParseAuthenticationPlugin("dialog")
	assert.ErrorIs(t, err, ErrUnsupportedAuthenticationMethod)
}

func TestChallengeResponse(t *testing.T) {
	password := []byte("s3cret")
	salt := RandomBytes(20)

	for _, m := range []Method{MySQLNativePassword, CachingSha2Password} {
		t.Run(m.String(), func(t *testing.T) {
			challenge, err := m.GenerateChallengeData(password)
			require.NoError(t, err)

			authRes, err := m.EncryptPassword(password, salt)
			require.NoError(t, err)
			assert.NoError(t, m.ChallengeResponse(challenge, authRes, salt))

			wrong, err := m.EncryptPassword([]byte("other"), salt)
			require.NoError(t, err)
			assert.ErrorIs(t, m.ChallengeResponse(challenge, wrong, salt), ErrMismatch)
			assert.ErrorIs(t, m.ChallengeResponse(challenge, nil, salt), ErrMismatch)
		})
	}
}

func TestRandomBytes(t *testing.T) {
	bs := RandomBytes(64)
	assert.Len(t, bs, 64)
	for _, b := range bs {
		assert.NotEqual(t, byte(0x00), b)
		assert.NotEqual(t, byte('$'), b)
	}
}

func TestEncryptWithPublicKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pub, err := MarshalPublicKey(key)
	require.NoError(t, err)

	salt := RandomBytes(20)
	encrypted, err := EncryptWithPublicKey(pub, []byte("s3cret"), salt)
	require.NoError(t, err)

	plain, err := DecryptWithPrivateKey(key, encrypted, salt)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(plain))
}

func TestReAscertainPassword(t *testing.T) {
	for _, m := range []Method{MySQLNativePassword, SHA256Password, CachingSha2Password} {
		t.Run(m.String(), func(t *testing.T) {
			as, err := m.GenerateAuthenticationStringWithoutSalt([]byte("s3cret"))
			require.NoError(t, err)

			assert.NoError(t, m.ReAscertainPassword(as, []byte("s3cret")))
			assert.ErrorIs(t, m.ReAscertainPassword(as, []byte("other")), ErrMismatch)
		})
	}

	_, err := Method(9).GenerateChallengeData([]byte("s3cret"))
	assert.ErrorIs(t, err, ErrUnsupportedAuthenticationMethod)
	_, err = SHA256Password.EncryptPassword([]byte("s3cret"), RandomBytes(20))
	assert.ErrorIs(t, err, ErrUnsupportedAuthenticationMethod)
}
