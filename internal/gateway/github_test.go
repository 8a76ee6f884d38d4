package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/naka-gawa/repo-monitor/internal/domain"
	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// graphqlVariables decodes the variables of a GraphQL request body.
func graphqlVariables(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	var payload struct {
		Variables map[string]interface{} `json:"variables"`
	}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
	return payload.Variables
}

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
func setupTestGateway(t *testing.T, handler http.Handler) (*GitHubGateway, *httptest.Server) {
	server := httptest.NewServer(handler)

	restClient := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	restClient.BaseURL = baseURL

	graphqlClient := githubv4.NewEnterpriseClient(server.URL, server.Client())

	gateway := &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		logger:        log.New(io.Discard, "", 0),
		now:           func() time.Time { return fixedNow },
	}
	return gateway, server
}

func TestGitHubGateway_FetchOpenIssues(t *testing.T) {
	testCases := []struct {
		name        string
		handlerFunc func(w http.ResponseWriter, r *http.Request)
		expected    []int
		expectError bool
	}{
		{
			name: "happy path - skips pull requests and keeps labels",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/repos/octo/repo/issues", r.URL.Path)
				assert.Equal(t, "open", r.URL.Query().Get("state"))
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, `[
					{"number": 1, "title": "old bug", "html_url": "https://github.com/octo/repo/issues/1",
					 "created_at": "2025-05-01T00:00:00Z", "updated_at": "2025-05-20T00:00:00Z",
					 "labels": [{"name": "bug", "color": "d73a4a"}],
					 "assignees": [{"login": "alice", "avatar_url": "https://avatars/alice"}]},
					{"number": 2, "title": "a pull request", "pull_request": {"url": "x"}}
				]`)
			},
			expected: []int{1},
		},
		{
			name: "error case - GitHub API returns an error",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"message": "Bad credentials"}`)
			},
			expectError: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, server := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))
			defer server.Close()

			issues, err := gateway.FetchOpenIssues(context.Background(), "octo", "repo")
			if tc.expectError {
				assert.ErrorIs(t, err, ErrSourceUnavailable)
				return
			}
			require.NoError(t, err)
			numbers := make([]int, 0, len(issues))
			for _, i := range issues {
				numbers = append(numbers, i.Number)
			}
			assert.Equal(t, tc.expected, numbers)
			assert.Equal(t, []domain.Label{{Name: "bug", Color: "d73a4a"}}, issues[0].Labels)
			assert.Equal(t, "alice", issues[0].Assignees[0].Login)
			assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), issues[0].CreatedAt.UTC())
		})
	}
}

func TestGitHubGateway_FetchRecentPullRequests(t *testing.T) {
	testCases := []struct {
		name           string
		responseBody   string
		expected       []domain.PRStatus
		expectError    bool
		expectedErrMsg string
	}{
		{
			name: "keeps merged and closed inside the window",
			responseBody: `{"data":{"search":{"pageInfo":{"hasNextPage":false,"endCursor":""},"edges":[
				{"node":{"__typename":"PullRequest","number":10,"title":"merged","url":"u10",
				 "mergedAt":"2025-06-01T10:00:00Z","closedAt":"2025-06-01T10:00:00Z",
				 "labels":{"nodes":[{"name":"feature","color":"00ff00"}]},"assignees":{"nodes":[]}}},
				{"node":{"__typename":"PullRequest","number":11,"title":"closed","url":"u11",
				 "mergedAt":null,"closedAt":"2025-06-01T11:00:00Z",
				 "labels":{"nodes":[]},"assignees":{"nodes":[{"login":"bob","avatarUrl":"a"}]}}}
			]}}}`,
			expected: []domain.PRStatus{domain.PRStatusMerged, domain.PRStatusClosed},
		},
		{
			name: "drops pull requests closed before the window",
			responseBody: `{"data":{"search":{"pageInfo":{"hasNextPage":false,"endCursor":""},"edges":[
				{"node":{"__typename":"PullRequest","number":12,"title":"old","url":"u12",
				 "mergedAt":"2025-05-20T10:00:00Z","closedAt":"2025-05-20T10:00:00Z",
				 "labels":{"nodes":[]},"assignees":{"nodes":[]}}}
			]}}}`,
			expected: []domain.PRStatus{},
		},
		{
			name:           "error case",
			responseBody:   `{"errors":[{"message":"Something went wrong"}]}`,
			expectError:    true,
			expectedErrMsg: "failed to execute GraphQL query",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				variables := graphqlVariables(t, r)
				assert.Equal(t, "repo:octo/repo is:pr is:closed closed:>=2025-05-31T12:00:00Z", variables["query"])
				assert.Nil(t, variables["cursor"])
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, tc.responseBody)
			}
			gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
			defer server.Close()

			prs, err := gateway.FetchRecentPullRequests(context.Background(), "octo", "repo", 24)
			if tc.expectError {
				assert.ErrorIs(t, err, ErrSourceUnavailable)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
				return
			}
			require.NoError(t, err)
			statuses := make([]domain.PRStatus, 0, len(prs))
			for _, pr := range prs {
				statuses = append(statuses, pr.Status())
			}
			assert.Equal(t, tc.expected, statuses)
		})
	}
}

func TestGitHubGateway_FetchOpenIssues_FollowsNextPage(t *testing.T) {
	var calls int
	var server *httptest.Server
	handler := func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch r.URL.Query().Get("page") {
		case "":
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/octo/repo/issues?state=open&per_page=100&page=2>; rel="next"`, server.URL))
			fmt.Fprint(w, `[{"number": 1, "title": "first page", "created_at": "2025-05-01T00:00:00Z"}]`)
		case "2":
			fmt.Fprint(w, `[{"number": 2, "title": "second page", "created_at": "2025-05-02T00:00:00Z"}]`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}
	gateway, srv := setupTestGateway(t, http.HandlerFunc(handler))
	server = srv
	defer server.Close()

	issues, err := gateway.FetchOpenIssues(context.Background(), "octo", "repo")
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, 1, issues[0].Number)
	assert.Equal(t, 2, issues[1].Number)
	assert.Equal(t, 2, calls)
}

func TestGitHubGateway_FetchRecentPullRequests_FollowsCursor(t *testing.T) {
	var cursors []interface{}
	handler := func(w http.ResponseWriter, r *http.Request) {
		variables := graphqlVariables(t, r)
		cursors = append(cursors, variables["cursor"])
		if variables["cursor"] == nil {
			fmt.Fprint(w, `{"data":{"search":{"pageInfo":{"hasNextPage":true,"endCursor":"C1"},"edges":[
				{"node":{"__typename":"PullRequest","number":20,"title":"first","url":"u20",
				 "mergedAt":"2025-06-01T09:00:00Z","closedAt":"2025-06-01T09:00:00Z",
				 "labels":{"nodes":[]},"assignees":{"nodes":[]}}}
			]}}}`)
			return
		}
		fmt.Fprint(w, `{"data":{"search":{"pageInfo":{"hasNextPage":false,"endCursor":"C2"},"edges":[
			{"node":{"__typename":"PullRequest","number":21,"title":"second","url":"u21",
			 "mergedAt":null,"closedAt":"2025-06-01T08:00:00Z",
			 "labels":{"nodes":[]},"assignees":{"nodes":[]}}}
		]}}}`)
	}
	gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
	defer server.Close()

	prs, err := gateway.FetchRecentPullRequests(context.Background(), "octo", "repo", 24)
	require.NoError(t, err)
	require.Len(t, prs, 2)
	assert.Equal(t, 20, prs[0].Number)
	assert.Equal(t, 21, prs[1].Number)
	assert.Equal(t, []interface{}{nil, "C1"}, cursors)
}

func TestGitHubGateway_FetchRepositorySummary(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/repo", r.URL.Path)
		fmt.Fprint(w, `{"full_name":"octo/repo","description":"demo","open_issues_count":4,
			"stargazers_count":12,"forks_count":3,"html_url":"https://github.com/octo/repo"}`)
	}
	gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
	defer server.Close()

	summary, err := gateway.FetchRepositorySummary(context.Background(), "octo", "repo")
	require.NoError(t, err)
	assert.Equal(t, &domain.RepositorySummary{
		FullName:       "octo/repo",
		Description:    "demo",
		OpenIssueCount: 4,
		StarCount:      12,
		ForkCount:      3,
		URL:            "https://github.com/octo/repo",
	}, summary)
}

func TestGitHubGateway_InvalidRepository(t *testing.T) {
	gateway, server := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer server.Close()

	_, err := gateway.FetchOpenIssues(context.Background(), "", "repo")
	assert.ErrorIs(t, err, domain.ErrInvalidRepository)
	_, err = gateway.FetchRecentPullRequests(context.Background(), "octo", "", 24)
	assert.ErrorIs(t, err, domain.ErrInvalidRepository)
}
