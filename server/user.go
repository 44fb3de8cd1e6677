package server

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/vczyh/mysql-cdc/auth"
)

var (
	ErrUserNotFound                      = errors.New("user record not found")
	ErrUserExisted                       = errors.New("user already existed")
	ErrInvalidAuthenticationStringFormat = errors.New("invalid authentication string format")
)

// UserProvider looks up accounts. Implementations must be safe for
// concurrent use.
type UserProvider interface {
	// Key returns the account that (user, host) logs in as.
	Key(user, host string) (string, error)

	// AuthenticationString returns the stored hash, empty for an account
	// without password.
	AuthenticationString(key string) ([]byte, error)

	AuthenticationMethod(key string) (auth.Method, error)

	// TLSRequired reports whether the account must connect over TLS.
	TLSRequired(key string) (bool, error)
}

type MemoryUserProvider struct {
	users sync.Map
}

type user struct {
	Name                 string
	Host                 string
	AuthenticationString []byte
	Method               auth.Method
	TLSRequired          bool
}

type CreateUserRequest struct {
	User        string
	Host        string
	Password    string
	Method      auth.Method
	TLSRequired bool
}

func NewMemoryUserProvider() *MemoryUserProvider {
	return &MemoryUserProvider{}
}

func (mp *MemoryUserProvider) Create(r *CreateUserRequest) error {
	host := r.Host
	if host == "" {
		host = "%"
	}
	u := &user{
		Name:        r.User,
		Host:        host,
		Method:      r.Method,
		TLSRequired: r.TLSRequired,
	}
	if r.Password != "" {
		as, err := u.Method.GenerateAuthenticationStringWithoutSalt([]byte(r.Password))
		if err != nil {
			return err
		}
		u.AuthenticationString = as
	}

	if _, loaded := mp.users.LoadOrStore(mp.userKey(u.Name, u.Host), u); loaded {
		return errors.Wrapf(ErrUserExisted, "'%s'@'%s'", u.Name, u.Host)
	}
	return nil
}

func (mp *MemoryUserProvider) Key(user, host string) (string, error) {
	u := mp.bestMatch(user, host)
	if u == nil {
		return "", ErrUserNotFound
	}
	return mp.userKey(u.Name, u.Host), nil
}

func (mp *MemoryUserProvider) AuthenticationString(key string) ([]byte, error) {
	u := mp.getUser(key)
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u.AuthenticationString, nil
}

func (mp *MemoryUserProvider) AuthenticationMethod(key string) (auth.Method, error) {
	u := mp.getUser(key)
	if u == nil {
		return auth.MySQLNativePassword, ErrUserNotFound
	}
	return u.Method, nil
}

func (mp *MemoryUserProvider) TLSRequired(key string) (bool, error) {
	u := mp.getUser(key)
	if u == nil {
		return false, ErrUserNotFound
	}
	return u.TLSRequired, nil
}

// bestMatch prefers the exact host over the '%' wildcard.
func (mp *MemoryUserProvider) bestMatch(user, host string) *user {
	if u := mp.getUser(mp.userKey(user, host)); u != nil {
		return u
	}
	return mp.getUser(mp.userKey(user, "%"))
}

func (mp *MemoryUserProvider) userKey(user, host string) string {
	return fmt.Sprintf("%s@%s", user, host)
}

func (mp *MemoryUserProvider) getUser(key string) *user {
	val, ok := mp.users.Load(key)
	if !ok {
		return nil
	}
	return val.(*user)
}
