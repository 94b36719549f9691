package issues

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-github/v60/github"
	"go.uber.org/zap"
)

// dedupSearchLimit bounds how many recent open issues are scanned for an
// existing issue before creating a new one. Listing is used instead of the
// search API because the search index lags by minutes and causes duplicates.
const dedupSearchLimit = 50

// GitHub files issues in a single repository.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
	logger *zap.Logger
}

// NewGitHub returns a tracker for a repository given in "owner/repo" form.
func NewGitHub(token, repo string, logger *zap.Logger) (*GitHub, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("invalid repository %q, expected owner/repo", repo)
	}

	return &GitHub{
		client: github.NewClient(nil).WithAuthToken(token),
		owner:  owner,
		repo:   name,
		logger: logger,
	}, nil
}

func (g *GitHub) Type() Type {
	return TypeGitHub
}

// Create files an issue for the request, unless a recent open issue already
// quotes the same message content.
func (g *GitHub) Create(ctx context.Context, req Request) (*Issue, error) {
	if existing := g.findExisting(ctx, req.Message.Text); existing != nil {
		g.logger.Info("Duplicate issue found, skipping creation",
			zap.String("issue_id", existing.ID),
			zap.String("issue_url", existing.URL))
		return existing, nil
	}

	title := buildTitle(req)
	issueReq := &github.IssueRequest{
		Title: github.String(title),
		Body:  github.String(buildBody(req)),
	}
	if len(req.Labels) > 0 {
		labels := append([]string(nil), req.Labels...)
		issueReq.Labels = &labels
	}

	issue, _, err := g.client.Issues.Create(ctx, g.owner, g.repo, issueReq)
	if err != nil {
		return nil, fmt.Errorf("creating issue in %s/%s: %w", g.owner, g.repo, err)
	}

	return &Issue{
		Tracker: TypeGitHub,
		ID:      strconv.Itoa(issue.GetNumber()),
		URL:     issue.GetHTMLURL(),
		Title:   title,
	}, nil
}

// findExisting scans the newest open issues for the exact quoted message
// content. Best-effort: any listing failure falls through to creation.
func (g *GitHub) findExisting(ctx context.Context, messageText string) *Issue {
	// Match the quoted form written by buildBody so that "help" does not
	// match an issue quoting "help with password reset".
	quoted := fmt.Sprintf("> %s\n", messageText)

	issues, _, err := g.client.Issues.ListByRepo(ctx, g.owner, g.repo, &github.IssueListByRepoOptions{
		State:       "open",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: dedupSearchLimit},
	})
	if err != nil {
		g.logger.Warn("Failed to list issues for dedup, proceeding with creation",
			zap.Error(err))
		return nil
	}

	for _, issue := range issues {
		if strings.Contains(issue.GetBody(), quoted) {
			return &Issue{
				Tracker: TypeGitHub,
				ID:      strconv.Itoa(issue.GetNumber()),
				URL:     issue.GetHTMLURL(),
				Title:   issue.GetTitle(),
			}
		}
	}
	return nil
}
