/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package changemanager

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"chainguard.dev/changeagent/pipeline/errdefs"
	"chainguard.dev/changeagent/repository"
)

// Manager wraps the GitHub REST and GraphQL clients. It is safe for
// concurrent use.
type Manager struct {
	client *github.Client
	gql    *githubv4.Client

	restURL    string
	graphqlURL string
}

// Option configures a Manager.
type Option func(*Manager)

// WithEndpoints points the clients at a different REST base URL and GraphQL
// endpoint, e.g. GitHub Enterprise or a test server.
func WithEndpoints(restURL, graphqlURL string) Option {
	return func(m *Manager) {
		m.restURL = restURL
		m.graphqlURL = graphqlURL
	}
}

// New constructs a Manager over an authenticated HTTP client.
func New(httpClient *http.Client, opts ...Option) (*Manager, error) {
	if httpClient == nil {
		return nil, errors.New("http client cannot be nil")
	}
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}

	m.client = github.NewClient(httpClient)
	m.gql = githubv4.NewClient(httpClient)
	if m.restURL != "" {
		base := m.restURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parsing REST URL: %w", err)
		}
		m.client.BaseURL = u
	}
	if m.graphqlURL != "" {
		m.gql = githubv4.NewEnterpriseClient(m.graphqlURL, httpClient)
	}
	return m, nil
}

// NewFromTokenSource constructs a Manager authenticating with ts.
func NewFromTokenSource(ctx context.Context, ts oauth2.TokenSource, opts ...Option) (*Manager, error) {
	if ts == nil {
		return nil, errors.New("token source cannot be nil")
	}
	return New(oauth2.NewClient(ctx, ts), opts...)
}

// RepositoryInfo is what Inspect learns about a repository.
type RepositoryInfo struct {
	DefaultBranch    string
	Private          bool
	Archived         bool
	ViewerPermission string
}

// Inspect checks that ref is a public, writable repository with at least one
// commit. Anything else is an *errdefs.AccessError.
func (m *Manager) Inspect(ctx context.Context, ref repository.Ref) (*RepositoryInfo, error) {
	log := clog.FromContext(ctx)

	var query struct {
		Repository struct {
			IsPrivate        bool
			IsArchived       bool
			ViewerPermission githubv4.RepositoryPermission
			DefaultBranchRef *struct {
				Name string
			}
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}
	variables := map[string]any{
		"owner": githubv4.String(ref.Owner),
		"repo":  githubv4.String(ref.Name),
	}

	if err := m.gql.Query(ctx, &query, variables); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("inspecting repository: %w", ctx.Err())
		}
		return nil, &errdefs.AccessError{URL: ref.URL(), Reason: "repository not found or not accessible", Err: err}
	}

	r := query.Repository
	info := &RepositoryInfo{
		Private:          r.IsPrivate,
		Archived:         r.IsArchived,
		ViewerPermission: string(r.ViewerPermission),
	}
	if r.DefaultBranchRef != nil {
		info.DefaultBranch = r.DefaultBranchRef.Name
	}
	log.Infof("Repository %s: default branch %q, permission %s", ref, info.DefaultBranch, info.ViewerPermission)

	switch {
	case info.Private:
		return nil, &errdefs.AccessError{URL: ref.URL(), Reason: "private repositories are not supported"}
	case info.Archived:
		return nil, &errdefs.AccessError{URL: ref.URL(), Reason: "repository is archived"}
	case info.DefaultBranch == "":
		return nil, &errdefs.AccessError{URL: ref.URL(), Reason: "repository has no commits"}
	case !canPush(r.ViewerPermission):
		return nil, &errdefs.AccessError{URL: ref.URL(), Reason: "the token cannot push to this repository"}
	}
	return info, nil
}

func canPush(p githubv4.RepositoryPermission) bool {
	switch p {
	case githubv4.RepositoryPermissionAdmin, githubv4.RepositoryPermissionMaintain, githubv4.RepositoryPermissionWrite:
		return true
	default:
		return false
	}
}

// Request describes the pull request to open.
type Request struct {
	Ref    repository.Ref
	Head   string
	Base   string
	Prompt string
	Edits  []Edit
}

// PullRequest is an opened pull request.
type PullRequest struct {
	Number int
	URL    string
}

// Open creates the pull request from req.Head into req.Base. Rejections are
// *errdefs.PublishError.
func (m *Manager) Open(ctx context.Context, req Request) (*PullRequest, error) {
	log := clog.FromContext(ctx)

	body, err := Body(req.Prompt, req.Edits)
	if err != nil {
		return nil, fmt.Errorf("rendering body: %w", err)
	}

	log.Infof("Creating new PR with head %s and base %s", req.Head, req.Base)
	pr, _, err := m.client.PullRequests.Create(ctx, req.Ref.Owner, req.Ref.Name, &github.NewPullRequest{
		Title:               github.Ptr(Title(req.Prompt)),
		Body:                github.Ptr(body),
		Head:                github.Ptr(req.Head),
		Base:                github.Ptr(req.Base),
		MaintainerCanModify: github.Ptr(true),
	})
	if err != nil {
		return nil, publishError(ctx, err)
	}

	log.Infof("Created PR #%d: %s", pr.GetNumber(), pr.GetHTMLURL())
	return &PullRequest{Number: pr.GetNumber(), URL: pr.GetHTMLURL()}, nil
}

func publishError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("creating pull request: %w", ctx.Err())
	}

	var (
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
		respErr  *github.ErrorResponse
	)
	switch {
	case errors.As(err, &rateErr):
		return &errdefs.PublishError{StatusCode: statusOf(rateErr.Response), Reason: "GitHub API rate limit exceeded", Err: err}
	case errors.As(err, &abuseErr):
		return &errdefs.PublishError{StatusCode: statusOf(abuseErr.Response), Reason: "GitHub secondary rate limit exceeded", Err: err}
	case errors.As(err, &respErr):
		code := statusOf(respErr.Response)
		var reason string
		switch code {
		case http.StatusUnauthorized, http.StatusForbidden:
			reason = "permission denied"
		case http.StatusNotFound:
			reason = "repository or branch not found"
		case http.StatusUnprocessableEntity:
			reason = "rejected: " + validationMessage(respErr)
		default:
			reason = fmt.Sprintf("GitHub returned status %d", code)
		}
		return &errdefs.PublishError{StatusCode: code, Reason: reason, Err: err}
	default:
		return &errdefs.PublishError{Reason: "request failed", Err: err}
	}
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func validationMessage(e *github.ErrorResponse) string {
	var msgs []string
	for _, ve := range e.Errors {
		if ve.Message != "" {
			msgs = append(msgs, ve.Message)
		}
	}
	if len(msgs) == 0 {
		return e.Message
	}
	return strings.Join(msgs, "; ")
}
