package auth

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"

	mysqlpassword "github.com/vczyh/mysql-password"
)

var (
	ErrUnsupportedAuthenticationMethod = errors.New("auth: unsupported Method")
	ErrMismatch                        = errors.New("auth: validate mismatch")
)

// Method is an authentication plugin.
type Method uint8

const (
	MySQLNativePassword Method = iota
	SHA256Password
	CachingSha2Password
)

var methodNames = map[Method]string{
	MySQLNativePassword: "mysql_native_password",
	SHA256Password:      "sha256_password",
	CachingSha2Password: "caching_sha2_password",
}

func ParseAuthenticationPlugin(name string) (Method, error) {
	for m, s := range methodNames {
		if s == name {
			return m, nil
		}
	}
	return MySQLNativePassword, fmt.Errorf("%w: %s", ErrUnsupportedAuthenticationMethod, name)
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return ErrUnsupportedAuthenticationMethod.Error()
}

// passwordHasher computes and checks the mysql.user
// authentication_string of a plugin.
type passwordHasher interface {
	Encrypt(password, salt []byte) ([]byte, error)
	Validate(authenticationStr, password []byte) error
}

func (m Method) hasher() (passwordHasher, error) {
	switch m {
	case MySQLNativePassword:
		return mysqlpassword.NewMySQLNative(), nil
	case SHA256Password:
		return mysqlpassword.NewSHA256(), nil
	case CachingSha2Password:
		return mysqlpassword.NewCachingSHA2(), nil
	default:
		return nil, ErrUnsupportedAuthenticationMethod
	}
}

func (m Method) GenerateAuthenticationString(password, salt []byte) ([]byte, error) {
	h, err := m.hasher()
	if err != nil {
		return nil, err
	}
	return h.Encrypt(password, salt)
}

// GenerateAuthenticationStringWithoutSalt is GenerateAuthenticationString
// with a fresh salt. caching_sha2_password salts look like
// "$A$005$<20 bytes>", the digits being the hex rounds count in thousands.
func (m Method) GenerateAuthenticationStringWithoutSalt(password []byte) ([]byte, error) {
	var salt []byte
	switch m {
	case SHA256Password:
		salt = RandomBytes(20)
	case CachingSha2Password:
		prefix := fmt.Sprintf("$A$%03x$", mysqlpassword.RoundsDefault/1000)
		salt = append([]byte(prefix), RandomBytes(20)...)
	}
	return m.GenerateAuthenticationString(password, salt)
}

// ReAscertainPassword process 'Re-Ascertain-Password' authentication.
// It needs plaintext password and recalculate authentication_string,
// which is slower than 'Challenge-Response'.
//
// ReAscertainPassword return ErrMismatch if validation does not match.
func (m Method) ReAscertainPassword(authenticationStr, password []byte) error {
	h, err := m.hasher()
	if err != nil {
		return err
	}
	if err := h.Validate(authenticationStr, password); err != nil {
		if errors.Is(err, mysqlpassword.ErrMismatch) {
			return ErrMismatch
		}
		return err
	}
	return nil
}

// scrambleHash is the digest of the challenge-response scramble.
// sha256_password has none, it always sends the password itself.
func (m Method) scrambleHash() (func() hash.Hash, error) {
	switch m {
	case MySQLNativePassword:
		return sha1.New, nil
	case CachingSha2Password:
		return sha256.New, nil
	default:
		return nil, ErrUnsupportedAuthenticationMethod
	}
}

// withSalt orders the salt the way each plugin feeds it to the digest:
// mysql_native_password hashes salt first, caching_sha2_password last.
func (m Method) withSalt(salt, data []byte) [][]byte {
	if m == MySQLNativePassword {
		return [][]byte{salt, data}
	}
	return [][]byte{data, salt}
}

func digest(newHash func() hash.Hash, parts ...[]byte) []byte {
	h := newHash()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// GenerateChallengeData returns the double hash of password the server
// keeps to verify scrambles without the plaintext:
//
//	mysql_native_password -> SHA1(SHA1(password))
//	caching_sha2_password -> SHA256(SHA256(password))
func (m Method) GenerateChallengeData(password []byte) ([]byte, error) {
	newHash, err := m.scrambleHash()
	if err != nil {
		return nil, err
	}
	return digest(newHash, digest(newHash, password)), nil
}

// EncryptPassword scrambles password with the server salt, i.e.
// XOR(H(password), H(H(H(password)), salt)) with the salt order of withSalt.
// https://dev.mysql.com/doc/internals/en/secure-password-authentication.html
func (m Method) EncryptPassword(password, salt []byte) ([]byte, error) {
	newHash, err := m.scrambleHash()
	if err != nil {
		return nil, err
	}
	stage1 := digest(newHash, password)
	stage2 := digest(newHash, stage1)
	stage3 := digest(newHash, m.withSalt(salt, stage2)...)
	for i := range stage1 {
		stage1[i] ^= stage3[i]
	}
	return stage1, nil
}

// ChallengeResponse process 'Challenge-Response' authentication.
// It does not need know plaintext password, only compares challengeData
// with authRes that is from HandshakeResponse or AuthSwitchResponse packet.
// An empty authRes only matches an empty password.
//
// ChallengeResponse return ErrMismatch if validation does not match.
func (m Method) ChallengeResponse(challengeData, authRes, salt []byte) error {
	if len(authRes) == 0 {
		if len(challengeData) == 0 {
			return nil
		}
		return ErrMismatch
	}
	newHash, err := m.scrambleHash()
	if err != nil {
		return err
	}

	stage1 := digest(newHash, m.withSalt(salt, challengeData)...)
	if len(authRes) != len(stage1) {
		return ErrMismatch
	}
	for i := range stage1 {
		stage1[i] ^= authRes[i]
	}
	if !bytes.Equal(digest(newHash, stage1), challengeData) {
		return ErrMismatch
	}
	return nil
}
