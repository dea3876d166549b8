package stomp

import (
	"context"
	"testing"
	"time"

	"github.com/woutdenolf/coilmq/config"
)

func authTestConfig() config.AuthConfig {
	return config.AuthConfig{
		Users: []struct {
			Login    string `toml:"login"`
			Passcode string `toml:"passcode"`
		}{
			{Login: "guest", Passcode: "guest"},
			{Login: "admin", Passcode: "s3cret"},
		},
	}
}

func TestStaticAuthenticator(t *testing.T) {
	auth := NewStaticAuthenticator(authTestConfig())

	if !auth.Authenticate("guest", "guest") {
		t.Fatal("valid credentials rejected")
	}
	if auth.Authenticate("guest", "wrong") {
		t.Fatal("wrong passcode accepted")
	}
	if auth.Authenticate("nobody", "guest") {
		t.Fatal("unknown login accepted")
	}
	if auth.Authenticate("", "") {
		t.Fatal("empty credentials accepted")
	}
}

func TestNewAuthenticator(t *testing.T) {
	cfg := authTestConfig()
	cfg.Disable = true
	if !NewAuthenticator(cfg).Authenticate("anyone", "anything") {
		t.Fatal("disabled auth must accept everyone")
	}

	cfg.Disable = false
	auth := NewAuthenticator(cfg)
	if auth.Authenticate("anyone", "anything") {
		t.Fatal("enabled auth must check the user table")
	}
	if !auth.Authenticate("admin", "s3cret") {
		t.Fatal("configured user rejected")
	}
}

func TestHandlerConnectAuthentication(t *testing.T) {
	cfg := (&config.CoilConfig{}).MergeDefault()
	cfg.Auth = authTestConfig()
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	rejected := dialPipe(t, s)
	rejected.send(t, NewFrame(CmdConnect, nil,
		Header{HeaderLogin, "guest"},
		Header{HeaderPasscode, "wrong"},
	))
	if f := rejected.recv(t); f.Command != CmdError {
		t.Fatal("expect ERROR for bad credentials, got:", f.Command)
	}
	rejected.expectClosed(t)

	accepted := dialPipe(t, s)
	accepted.send(t, NewFrame(CmdConnect, nil,
		Header{HeaderLogin, "guest"},
		Header{HeaderPasscode, "guest"},
	))
	if f := accepted.recv(t); f.Command != CmdConnected {
		t.Fatal("expect CONNECTED, got:", f.Command)
	}
}
