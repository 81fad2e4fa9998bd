package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	appLog "plansheet/internal/log"
)

// ErrAuthentication wraps every failure of the token exchange.
var ErrAuthentication = errors.New("authentication failed")

// Credentials describes the resource-owner password grant against the
// API's token endpoint.
type Credentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	Scopes       []string
}

func (c Credentials) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Authenticate exchanges username and password for a bearer token and
// returns an HTTP client that attaches it to every request. timeout bounds
// each request made with the returned client; zero means the default.
func Authenticate(ctx context.Context, cred Credentials, timeout time.Duration) (*http.Client, *oauth2.Token, error) {
	if cred.TokenURL == "" {
		return nil, nil, fmt.Errorf("%w: token url is empty", ErrAuthentication)
	}
	if cred.Username == "" || cred.Password == "" {
		return nil, nil, fmt.Errorf("%w: username and password are required", ErrAuthentication)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	base := &http.Client{Timeout: timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	conf := cred.oauth2Config()
	tok, err := conf.PasswordCredentialsToken(ctx, cred.Username, cred.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("%w for user %s at %s: %v", ErrAuthentication, cred.Username, redactURL(cred.TokenURL), err)
	}

	appLog.Info("authenticated", "user", cred.Username, "expires", tok.Expiry)

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok))
	client.Timeout = timeout
	return client, tok, nil
}
