// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/repo-monitor/internal/domain"
)

// ErrSourceUnavailable marks transport and authentication failures. It is fatal for a cycle.
var ErrSourceUnavailable = errors.New("repository data source unavailable")

// Fetcher defines the behavior of a gateway for fetching repository state from GitHub.
type Fetcher interface {
	FetchOpenIssues(ctx context.Context, owner, name string) ([]domain.Issue, error)
	// FetchRecentPullRequests returns only pull requests merged or closed within
	// lookbackHours of the call time.
	FetchRecentPullRequests(ctx context.Context, owner, name string, lookbackHours int) ([]domain.PullRequest, error)
	FetchRepositorySummary(ctx context.Context, owner, name string) (*domain.RepositorySummary, error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *log.Logger
	now           func() time.Time
}

// recentPRQuery searches closed pull requests of one repository.
type recentPRQuery struct {
	Search struct {
		PageInfo struct {
			HasNextPage bool
			EndCursor   githubv4.String
		}
		Edges []struct {
			Node struct {
				Typename    string `graphql:"__typename"`
				PullRequest struct {
					Number   int
					Title    string
					URL      string
					MergedAt *githubv4.DateTime
					ClosedAt *githubv4.DateTime
					Labels   struct {
						Nodes []struct {
							Name  string
							Color string
						}
					} `graphql:"labels(first: 20)"`
					Assignees struct {
						Nodes []struct {
							Login     string
							AvatarURL string `graphql:"avatarUrl"`
						}
					} `graphql:"assignees(first: 20)"`
				} `graphql:"... on PullRequest"`
			}
		}
	} `graphql:"search(query: $query, type: ISSUE, first: 50, after: $cursor)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(token string, logger *log.Logger) (*GitHubGateway, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		logger:        logger,
		now:           time.Now,
	}, nil
}

// FetchOpenIssues lists the open issues of a repository, skipping pull requests.
func (g *GitHubGateway) FetchOpenIssues(ctx context.Context, owner, name string) ([]domain.Issue, error) {
	if err := domain.ValidateRepository(owner, name); err != nil {
		return nil, err
	}
	g.logger.Printf("Fetching open issues for %s/%s using REST API...", owner, name)
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	issues := make([]domain.Issue, 0)
	for {
		page, resp, err := g.restClient.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to list issues with REST API: %w", ErrSourceUnavailable, err)
		}
		for _, issue := range page {
			// The issues endpoint also returns pull requests.
			if issue.IsPullRequest() {
				continue
			}
			issues = append(issues, toDomainIssue(issue))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Println("  Fetching next page of issues...")
	}
	g.logger.Printf("Completed fetching %d open issues.", len(issues))
	return issues, nil
}

// FetchRecentPullRequests searches pull requests closed since now minus lookbackHours.
func (g *GitHubGateway) FetchRecentPullRequests(ctx context.Context, owner, name string, lookbackHours int) ([]domain.PullRequest, error) {
	if err := domain.ValidateRepository(owner, name); err != nil {
		return nil, err
	}
	since := g.now().Add(-time.Duration(lookbackHours) * time.Hour).UTC()
	g.logger.Printf("Fetching pull requests closed since %s using GraphQL API...", since.Format(time.RFC3339))

	// Merged pull requests are closed as well, so is:closed covers both.
	query := fmt.Sprintf("repo:%s/%s is:pr is:closed closed:>=%s", owner, name, since.Format("2006-01-02T15:04:05Z"))
	variables := map[string]interface{}{
		"query":  githubv4.String(query),
		"cursor": (*githubv4.String)(nil),
	}

	prs := make([]domain.PullRequest, 0)
	for {
		var q recentPRQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return nil, fmt.Errorf("%w: failed to execute GraphQL query for pull requests: %w", ErrSourceUnavailable, err)
		}
		for _, edge := range q.Search.Edges {
			if edge.Node.Typename != "PullRequest" {
				continue
			}
			pr := toDomainPullRequest(edge.Node.PullRequest.Number, edge.Node.PullRequest.Title, edge.Node.PullRequest.URL,
				edge.Node.PullRequest.MergedAt, edge.Node.PullRequest.ClosedAt)
			if !withinWindow(pr, since) {
				continue
			}
			for _, l := range edge.Node.PullRequest.Labels.Nodes {
				pr.Labels = append(pr.Labels, domain.Label{Name: l.Name, Color: l.Color})
			}
			for _, a := range edge.Node.PullRequest.Assignees.Nodes {
				pr.Assignees = append(pr.Assignees, domain.Assignee{Login: a.Login, AvatarURL: a.AvatarURL})
			}
			prs = append(prs, pr)
		}
		if !q.Search.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.Search.PageInfo.EndCursor)
		g.logger.Println("  Fetching next page of pull requests...")
	}
	g.logger.Printf("Completed fetching %d recent pull requests.", len(prs))
	return prs, nil
}

// FetchRepositorySummary returns the repository metadata used by the dashboard.
func (g *GitHubGateway) FetchRepositorySummary(ctx context.Context, owner, name string) (*domain.RepositorySummary, error) {
	if err := domain.ValidateRepository(owner, name); err != nil {
		return nil, err
	}
	repo, _, err := g.restClient.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get repository with REST API: %w", ErrSourceUnavailable, err)
	}
	return &domain.RepositorySummary{
		FullName:       repo.GetFullName(),
		Description:    repo.GetDescription(),
		OpenIssueCount: repo.GetOpenIssuesCount(),
		StarCount:      repo.GetStargazersCount(),
		ForkCount:      repo.GetForksCount(),
		URL:            repo.GetHTMLURL(),
	}, nil
}

// withinWindow keeps a pull request whose merge, or close when unmerged, is not before since.
func withinWindow(pr domain.PullRequest, since time.Time) bool {
	if pr.MergedAt != nil {
		return !pr.MergedAt.Before(since)
	}
	return pr.ClosedAt != nil && !pr.ClosedAt.Before(since)
}

func toDomainIssue(issue *github.Issue) domain.Issue {
	out := domain.Issue{
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		CreatedAt: issue.GetCreatedAt().Time,
		UpdatedAt: issue.GetUpdatedAt().Time,
		URL:       issue.GetHTMLURL(),
	}
	for _, l := range issue.Labels {
		out.Labels = append(out.Labels, domain.Label{Name: l.GetName(), Color: l.GetColor()})
	}
	for _, a := range issue.Assignees {
		out.Assignees = append(out.Assignees, domain.Assignee{Login: a.GetLogin(), AvatarURL: a.GetAvatarURL()})
	}
	return out
}

func toDomainPullRequest(number int, title, url string, mergedAt, closedAt *githubv4.DateTime) domain.PullRequest {
	pr := domain.PullRequest{Number: number, Title: title, URL: url}
	if mergedAt != nil {
		t := mergedAt.Time
		pr.MergedAt = &t
	}
	if closedAt != nil {
		t := closedAt.Time
		pr.ClosedAt = &t
	}
	return pr
}
