package stomp

import "github.com/woutdenolf/coilmq/config"

// Authenticator decides whether the credentials on a CONNECT may open a
// session.
type Authenticator interface {
	Authenticate(login, passcode string) bool
}

// AllowAllAuthenticator accepts every CONNECT. Used when authentication is
// disabled.
type AllowAllAuthenticator struct{}

func (AllowAllAuthenticator) Authenticate(login, passcode string) bool { return true }

// StaticAuthenticator checks credentials against the user table of the
// configuration file.
type StaticAuthenticator struct {
	users map[string]string
}

func NewStaticAuthenticator(cfg config.AuthConfig) *StaticAuthenticator {
	users := make(map[string]string, len(cfg.Users))
	for _, user := range cfg.Users {
		users[user.Login] = user.Passcode
	}
	return &StaticAuthenticator{users: users}
}

func (a *StaticAuthenticator) Authenticate(login, passcode string) bool {
	expected, ok := a.users[login]
	return ok && expected == passcode
}

// NewAuthenticator builds the authenticator selected by the configuration.
func NewAuthenticator(cfg config.AuthConfig) Authenticator {
	if cfg.Disable {
		return AllowAllAuthenticator{}
	}
	return NewStaticAuthenticator(cfg)
}
