package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2/endpoints"

	"github.com/sakif/category-note/internal/apperror"
	"github.com/sakif/category-note/internal/model"
)

const googleAPI = "https://www.googleapis.com"

type googleUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	GivenName string `json:"given_name"`
	Picture   string `json:"picture"`
}

// GoogleProvider implements IdentityProvider for Google accounts.
type GoogleProvider struct {
	oauthClient
}

var _ IdentityProvider = (*GoogleProvider)(nil)

func NewGoogleProvider(cfg ProviderConfig) *GoogleProvider {
	return &GoogleProvider{
		oauthClient: newOAuthClient(model.ProviderGoogle, cfg, endpoints.Google, googleAPI, []string{"openid", "email", "profile"}),
	}
}

func (p *GoogleProvider) Name() model.Provider { return model.ProviderGoogle }

// ExchangeCode trades the code for a token and reads /oauth2/v2/userinfo.
// Username is the given name, or the local part of the email when Google
// does not return one.
func (p *GoogleProvider) ExchangeCode(ctx context.Context, code string) (*model.Identity, error) {
	client, err := p.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	var u googleUser
	if err := p.getJSON(ctx, client, "/oauth2/v2/userinfo", &u); err != nil {
		return nil, apperror.UpstreamAuth("google", err)
	}
	if u.ID == "" || u.Email == "" {
		return nil, apperror.UpstreamAuth("google", errors.New("userinfo has no id or email"))
	}

	username := u.GivenName
	if username == "" {
		username, _, _ = strings.Cut(u.Email, "@")
	}

	return &model.Identity{
		Email:      u.Email,
		Username:   username,
		FullName:   u.Name,
		AvatarURL:  u.Picture,
		Provider:   model.ProviderGoogle,
		ProviderID: u.ID,
	}, nil
}
