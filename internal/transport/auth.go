package transport

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/agentstation/contactsync/pkg/errors"
)

// TokenSource supplies a bearer token for one account. Credential
// acquisition and refresh happen behind this interface; the engine only
// ever asks for a currently valid token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(_ context.Context) (string, error) {
	if t == "" {
		return "", errors.ErrAPIKeyRequired
	}
	return string(t), nil
}

// EnvToken reads the bearer token from an environment variable on every
// request, so an external refresher can rotate it between batches.
type EnvToken string

// Token implements TokenSource.
func (t EnvToken) Token(_ context.Context) (string, error) {
	v := strings.TrimSpace(os.Getenv(string(t)))
	if v == "" {
		return "", errors.ErrAPIKeyRequired
	}
	return v, nil
}

// TokenFunc adapts a function to the TokenSource interface.
type TokenFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

func applyBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}
