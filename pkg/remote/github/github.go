// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package github

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/walteh/plantshare/pkg/config"
	"github.com/walteh/plantshare/pkg/remote"
	"github.com/walteh/plantshare/pkg/session"
)

// Name is the backend name used in configuration
const Name = "github"

func init() {
	remote.Register(Name, New)
}

// 🎯 Client implements the collaboration backend on top of GitHub: hubs are
// the user and their organizations, projects are repositories and folders
// are top level directories
type Client struct {
	cfg      config.GitHubConfig
	sessions session.Store
	prompter remote.Prompter
	limiter  *rate.Limiter
	getenv   func(string) string
}

// 🏭 New creates a new GitHub backend
func New(ctx context.Context, opts remote.Options) (remote.Client, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	prompter := opts.Prompter
	if prompter == nil {
		prompter = remote.TerminalPrompter{}
	}
	return &Client{
		cfg:      opts.Config.GitHub,
		sessions: opts.Sessions,
		prompter: prompter,
		limiter:  rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
		getenv:   os.Getenv,
	}, nil
}

func (c *Client) Name() string {
	return Name
}

// 🔌 newAPI creates an authenticated API client for a token
func (c *Client) newAPI(ctx context.Context, token string) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	if c.cfg.BaseURL != "" {
		base := c.cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, errors.Errorf("parsing base url: %w", err)
		}
		client.BaseURL = u
	}
	return client, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.cfg.TokenEnv != "" {
		if tok := c.getenv(c.cfg.TokenEnv); tok != "" {
			return tok, nil
		}
	}
	stored, err := c.sessions.Load(ctx, Name)
	if err != nil {
		return "", err
	}
	if stored == nil {
		return "", nil
	}
	return stored.Value, nil
}

// 🔍 Lookup returns a session for the stored or environment token, or nil
// when there is none or it was rejected
func (c *Client) Lookup(ctx context.Context) (remote.Session, error) {
	logger := zerolog.Ctx(ctx)

	tok, err := c.token(ctx)
	if err != nil {
		return nil, errors.Errorf("loading token: %w", err)
	}
	if tok == "" {
		return nil, nil
	}

	api, err := c.newAPI(ctx, tok)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Errorf("waiting for rate limit: %w", err)
	}
	user, resp, err := api.Users.Get(ctx, "")
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			logger.Warn().Msg("stored github token was rejected")
			if err := c.sessions.Delete(ctx, Name); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return nil, errors.Errorf("getting authenticated user: %w", err)
	}

	return &Session{client: c, api: api, user: user}, nil
}

// 🔐 SignIn asks for a personal access token and stores it
func (c *Client) SignIn(ctx context.Context) error {
	tok, err := c.prompter.Secret(ctx, "GitHub personal access token")
	if err != nil {
		return errors.Errorf("prompting for token: %w", err)
	}
	if tok == "" {
		return errors.New("no token entered")
	}

	api, err := c.newAPI(ctx, tok)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Errorf("waiting for rate limit: %w", err)
	}
	user, _, err := api.Users.Get(ctx, "")
	if err != nil {
		return errors.Errorf("verifying token: %w", err)
	}

	return c.sessions.Save(ctx, &session.Token{
		Backend:   Name,
		User:      user.GetLogin(),
		Value:     tok,
		CreatedAt: time.Now().UTC(),
	})
}

// DocumentServer returns the commit based uploader for a session
func (c *Client) DocumentServer(ctx context.Context, s remote.Session) (remote.DocumentServer, error) {
	gs, ok := s.(*Session)
	if !ok {
		return nil, errors.Errorf("session of type %T does not belong to the github backend", s)
	}
	return newDocumentServer(gs), nil
}

// 🔐 Session is a signed in GitHub user
type Session struct {
	client *Client
	api    *github.Client
	user   *github.User
}

func (s *Session) User() string {
	return s.user.GetLogin()
}

func (s *Session) wait(ctx context.Context) error {
	if err := s.client.limiter.Wait(ctx); err != nil {
		return errors.Errorf("waiting for rate limit: %w", err)
	}
	return nil
}

// Hubs lists the user followed by their organizations
func (s *Session) Hubs(ctx context.Context) ([]remote.Hub, error) {
	hubs := []remote.Hub{{ID: s.user.GetNodeID(), Name: s.user.GetLogin()}}

	opts := &github.ListOptions{PerPage: 100}
	for {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		orgs, resp, err := s.api.Organizations.List(ctx, "", opts)
		if err != nil {
			return nil, errors.Errorf("listing organizations: %w", err)
		}
		for _, org := range orgs {
			hubs = append(hubs, remote.Hub{ID: org.GetNodeID(), Name: org.GetLogin()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return hubs, nil
}

// Projects lists the repositories owned by a hub
func (s *Session) Projects(ctx context.Context, hub remote.Hub) ([]remote.Project, error) {
	var out []remote.Project
	add := func(repos []*github.Repository) {
		for _, r := range repos {
			if !strings.EqualFold(r.GetOwner().GetLogin(), hub.Name) {
				continue
			}
			out = append(out, remote.Project{ID: r.GetNodeID(), Name: r.GetFullName(), RootFolder: r.GetFullName() + ":/"})
		}
	}

	if hub.Name == s.user.GetLogin() {
		opts := &github.RepositoryListByAuthenticatedUserOptions{Affiliation: "owner", ListOptions: github.ListOptions{PerPage: 100}}
		for {
			if err := s.wait(ctx); err != nil {
				return nil, err
			}
			repos, resp, err := s.api.Repositories.ListByAuthenticatedUser(ctx, opts)
			if err != nil {
				return nil, errors.Errorf("listing repositories: %w", err)
			}
			add(repos)
			if resp.NextPage == 0 {
				return out, nil
			}
			opts.Page = resp.NextPage
		}
	}

	opts := &github.RepositoryListByOrgOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		repos, resp, err := s.api.Repositories.ListByOrg(ctx, hub.Name, opts)
		if err != nil {
			return nil, errors.Errorf("listing repositories of %s: %w", hub.Name, err)
		}
		add(repos)
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// Folders lists the top level directories of a repository
func (s *Session) Folders(ctx context.Context, hub remote.Hub, project remote.Project) ([]remote.Folder, error) {
	owner, repo, err := parseRepo(project.Name)
	if err != nil {
		return nil, err
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	var opts *github.RepositoryContentGetOptions
	if s.client.cfg.Branch != "" {
		opts = &github.RepositoryContentGetOptions{Ref: s.client.cfg.Branch}
	}
	_, entries, resp, err := s.api.Repositories.GetContents(ctx, owner, repo, "", opts)
	if err != nil {
		// an empty repository has no contents yet
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, errors.Errorf("listing folders of %s: %w", project.Name, err)
	}

	var out []remote.Folder
	for _, e := range entries {
		if e.GetType() != "dir" {
			continue
		}
		out = append(out, remote.Folder{ID: e.GetSHA(), Name: e.GetPath()})
	}
	return out, nil
}

// 🔍 parseRepo splits an owner/name repository name
func parseRepo(repo string) (owner, name string, err error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Errorf("invalid repository format: %s", repo)
	}
	return parts[0], parts[1], nil
}
