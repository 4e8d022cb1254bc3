package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/oauth2/github"

	"github.com/sakif/category-note/internal/apperror"
	"github.com/sakif/category-note/internal/model"
)

const githubAPI = "https://api.github.com"

// githubUser is the portion of the GitHub /user response we care about.
// GitHub API docs: https://docs.github.com/en/rest/users/users#get-the-authenticated-user
type githubUser struct {
	ID        int64  `json:"id"`         // stable numeric account id
	Login     string `json:"login"`      // GitHub username
	Name      string `json:"name"`       // display name, may be empty
	Email     string `json:"email"`      // public email, empty if hidden
	AvatarURL string `json:"avatar_url"` // profile picture
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubProvider implements IdentityProvider for GitHub.
//
// Scopes: "read:user" for the profile and "user:email" for /user/emails,
// which is the only way to see the address of a user who hides it.
type GitHubProvider struct {
	oauthClient
	logger *slog.Logger
}

var _ IdentityProvider = (*GitHubProvider)(nil)

func NewGitHubProvider(cfg ProviderConfig, logger *slog.Logger) *GitHubProvider {
	return &GitHubProvider{
		oauthClient: newOAuthClient(model.ProviderGitHub, cfg, github.Endpoint, githubAPI, []string{"read:user", "user:email"}),
		logger:      logger,
	}
}

func (p *GitHubProvider) Name() model.Provider { return model.ProviderGitHub }

// ExchangeCode completes the flow: code → token → /user → /user/emails.
func (p *GitHubProvider) ExchangeCode(ctx context.Context, code string) (*model.Identity, error) {
	client, err := p.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	var u githubUser
	if err := p.getJSON(ctx, client, "/user", &u); err != nil {
		return nil, apperror.UpstreamAuth("github", err)
	}
	if u.ID == 0 || u.Login == "" {
		return nil, apperror.UpstreamAuth("github", errors.New("profile has no id or login"))
	}

	email := u.Email
	var emails []githubEmail
	if err := p.getJSON(ctx, client, "/user/emails", &emails); err != nil {
		// The profile email is still usable when the scope was not granted.
		p.logger.Warn("github: listing emails failed, using profile email",
			slog.Int64("githubID", u.ID),
			slog.String("error", err.Error()),
		)
	} else if primary := primaryEmail(emails); primary != "" {
		email = primary
	}
	if email == "" {
		return nil, apperror.UpstreamAuth("github", fmt.Errorf("account %d has no usable email", u.ID))
	}

	return &model.Identity{
		Email:      email,
		Username:   u.Login,
		FullName:   u.Name,
		AvatarURL:  u.AvatarURL,
		Provider:   model.ProviderGitHub,
		ProviderID: strconv.FormatInt(u.ID, 10),
	}, nil
}

func primaryEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Email != "" {
			return e.Email
		}
	}
	return ""
}
