package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// ---- token store ----

var errNoToken = errors.New("no valid token")

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Username    string    `json:"username,omitempty"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "notekeeper")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "notekeeper")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tf tokenFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tokenPath(), b, 0o600); err != nil {
		return err
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(tokenPath(), 0o600)
}

func loadToken(now time.Time) (string, error) {
	b, err := os.ReadFile(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return "", errNoToken
	}
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", fmt.Errorf("token file: %w", err)
	}
	if tf.AccessToken == "" || !now.Before(tf.ExpiresAt) {
		return "", errNoToken
	}
	return tf.AccessToken, nil
}

func removeToken() error {
	err := os.Remove(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ---- grpc dial ----

type bearerCreds struct {
	token     string
	plaintext bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return !b.plaintext }

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // --insecure
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

func (a *app) dialOptions(bearer string) ([]grpc.DialOption, error) {
	var creds credentials.TransportCredentials
	if a.plaintext {
		creds = insecure.NewCredentials()
	} else {
		c, err := loadTLS(a.caPath, a.insecure)
		if err != nil {
			return nil, err
		}
		creds = c
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if bearer != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: bearer, plaintext: a.plaintext}))
	}
	return opts, nil
}

func (a *app) dial(_ context.Context, bearer string) (*grpc.ClientConn, error) {
	opts, err := a.dialOptions(bearer)
	if err != nil {
		return nil, err
	}
	return grpc.NewClient(a.addr, opts...)
}

// ---- utils ----

func readContent(in io.Reader, p string) (string, error) {
	var (
		b   []byte
		err error
	)
	if p == "-" {
		b, err = io.ReadAll(in)
	} else {
		b, err = os.ReadFile(p)
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}
