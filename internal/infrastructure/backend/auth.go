package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/campusfin/client/internal/domain/identity"
	"github.com/campusfin/client/internal/infrastructure/httpclient"
)

// TokenResponse is returned by /auth/login
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges credentials for a bearer token. A 401 here means bad
// credentials, so the global unauthorized hook is not triggered.
func (a *API) Login(ctx context.Context, creds identity.Credentials) (*TokenResponse, error) {
	var out TokenResponse
	err := a.client.DoJSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Form: url.Values{
			"username": {creds.Email},
			"password": {creds.Password},
		},
		SkipUnauthorizedHook: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the profile of the token's owner
func (a *API) Me(ctx context.Context) (*identity.User, error) {
	var u identity.User
	if err := a.client.Get(ctx, "/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
