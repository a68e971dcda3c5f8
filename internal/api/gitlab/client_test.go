package gitlab

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/vilaca/alm-eventlog/internal/api"
	"github.com/vilaca/alm-eventlog/internal/domain"
)

// mockHTTPClient is a test double for HTTPClient.
// Follows FIRST principles - tests are Fast and Independent.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

// routes answers each request with the body registered for its path.
func routes(t *testing.T, bodies map[string]string) *mockHTTPClient {
	return &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("PRIVATE-TOKEN") != "test-token" {
				t.Errorf("expected PRIVATE-TOKEN header on %s", req.URL.Path)
			}
			body, ok := bodies[req.URL.Path]
			if !ok {
				body = "[]"
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString(body)),
			}, nil
		},
	}
}

// failing answers 500 on path and delegates every other request to next.
func failing(next *mockHTTPClient, path string) *mockHTTPClient {
	return &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			if req.URL.Path == path {
				return &http.Response{
					StatusCode: http.StatusInternalServerError,
					Body:       io.NopCloser(bytes.NewBufferString(`{"message":"internal error"}`)),
				}, nil
			}
			return next.Do(req)
		},
	}
}

func newTestClient(httpClient api.HTTPClient) *Client {
	return NewClient(api.ClientConfig{BaseURL: "https://gitlab.com", Token: "test-token"}, httpClient)
}

// TestGetProject tests retrieving a project from GitLab.
// Follows AAA (Arrange, Act, Assert) pattern.
func TestGetProject(t *testing.T) {
	// Arrange
	client := newTestClient(routes(t, map[string]string{
		"/api/v4/projects/123": `{"id": 123, "name": "api", "path_with_namespace": "team/api", "web_url": "https://gitlab.com/team/api"}`,
	}))

	// Act
	project, err := client.GetProject(context.Background(), "123")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if project.Namespace != "123" {
		t.Errorf("expected namespace '123', got '%s'", project.Namespace)
	}
	if project.Name != "team/api" {
		t.Errorf("expected name 'team/api', got '%s'", project.Name)
	}
	if project.Platform != domain.PlatformGitLab {
		t.Errorf("expected platform 'gitlab', got '%s'", project.Platform)
	}
}

// TestGetProject_APIError tests error handling when API returns error.
func TestGetProject_APIError(t *testing.T) {
	// Arrange
	mockHTTP := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusUnauthorized,
				Body:       io.NopCloser(bytes.NewBufferString(`{"error":"unauthorized"}`)),
			}, nil
		},
	}
	client := newTestClient(mockHTTP)

	// Act
	_, err := client.GetProject(context.Background(), "123")

	// Assert
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusUnauthorized {
		t.Errorf("expected wrapped 401 status error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("expected error to mention status code 401, got: %v", err)
	}
}

// TestGetIssues tests issues with notes, closing MRs and state events.
func TestGetIssues(t *testing.T) {
	// Arrange
	client := newTestClient(routes(t, map[string]string{
		"/api/v4/projects/123/issues": `[{
			"id": 9042, "iid": 42, "project_id": 123, "title": "Login broken",
			"state": "closed", "issue_type": "issue",
			"author": {"id": 7, "name": "Una"},
			"created_at": "2024-01-01T09:00:00.000Z", "updated_at": "2024-01-03T09:00:00.000Z"
		}]`,
		"/api/v4/projects/123/issues/42/notes": `[
			{"id": 1, "body": "mentioned in merge request !9", "system": true, "author": {"id": 8, "name": "Dev"}, "created_at": "2024-01-02T09:00:00.000Z"}
		]`,
		"/api/v4/projects/123/issues/42/closed_by": `[{"id": 9009, "iid": 9}]`,
		"/api/v4/projects/123/issues/42/resource_state_events": `[
			{"id": 5, "state": "closed", "user": {"id": 8, "name": "Dev"}, "created_at": "2024-01-03T09:00:00.000Z"}
		]`,
	}))

	// Act
	issues, err := client.GetIssues(context.Background(), "123")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(issues))
	}
	issue := issues[0]
	if issue.ID != "42" || issue.GlobalID != "9042" {
		t.Errorf("expected ids 42/9042, got %s/%s", issue.ID, issue.GlobalID)
	}
	if issue.Author.ID != "7" || issue.Author.Name != "Una" {
		t.Errorf("unexpected author %+v", issue.Author)
	}
	if len(issue.ClosedBy) != 1 || issue.ClosedBy[0] != "9" {
		t.Errorf("expected closed by MR 9, got %v", issue.ClosedBy)
	}
	if len(issue.Notes) != 1 || !issue.Notes[0].System {
		t.Errorf("expected 1 system note, got %+v", issue.Notes)
	}
	if len(issue.Revisions) != 2 || issue.Revisions[0].State != "opened" || issue.Revisions[1].State != "closed" {
		t.Errorf("unexpected revisions %+v", issue.Revisions)
	}
}

// TestGetMergeRequests tests merge request conversion.
func TestGetMergeRequests(t *testing.T) {
	// Arrange
	client := newTestClient(routes(t, map[string]string{
		"/api/v4/projects/123/merge_requests": `[{
			"id": 9009, "iid": 9, "project_id": 123, "title": "Fix login", "state": "merged",
			"source_branch": "42-login", "target_branch": "main",
			"author": {"id": 8, "name": "Dev"},
			"created_at": "2024-01-02T09:00:00.000Z",
			"merged_at": "2024-01-03T09:00:00.000Z", "merge_user": {"id": 7, "name": "Una"},
			"sha": "c1a2b3", "merge_commit_sha": null, "squash_commit_sha": "5q5q5q"
		}]`,
		"/api/v4/projects/123/merge_requests/9/commits": `[
			{"id": "c1a2b3", "message": "fix", "author_name": "Dev", "author_email": "dev@example.com", "created_at": "2024-01-02T08:00:00.000Z"}
		]`,
	}))

	// Act
	mrs, err := client.GetMergeRequests(context.Background(), "123")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(mrs) != 1 {
		t.Fatalf("expected 1 merge request, got %d", len(mrs))
	}
	mr := mrs[0]
	if mr.PreMergeSHA != "c1a2b3" || mr.PostMergeSHA != "5q5q5q" {
		t.Errorf("expected pre c1a2b3 / post 5q5q5q, got %s / %s", mr.PreMergeSHA, mr.PostMergeSHA)
	}
	if len(mr.Activities) != 1 || mr.Activities[0].Kind != domain.ActivityMerged || mr.Activities[0].Actor.ID != "7" {
		t.Errorf("unexpected activities %+v", mr.Activities)
	}
	if len(mr.Commits) != 1 || mr.Commits[0].Author.ID != "dev@example.com" {
		t.Errorf("unexpected commits %+v", mr.Commits)
	}
}

// TestGetPipelines tests retrieving pipelines with details and jobs.
func TestGetPipelines(t *testing.T) {
	// Arrange
	client := newTestClient(routes(t, map[string]string{
		"/api/v4/projects/123/pipelines": `[{"id": 500, "status": "success", "ref": "main", "sha": "c1a2b3"}]`,
		"/api/v4/projects/123/pipelines/500": `{
			"id": 500, "status": "success", "ref": "main", "sha": "c1a2b3", "source": "push",
			"user": {"id": 7, "name": "Una"},
			"created_at": "2024-01-02T09:05:00.000Z", "finished_at": "2024-01-02T09:10:00.000Z"
		}`,
		"/api/v4/projects/123/pipelines/500/jobs": `[
			{"id": 1, "name": "unit", "stage": "test", "status": "success", "started_at": "2024-01-02T09:06:00.000Z", "finished_at": "2024-01-02T09:09:00.000Z"},
			{"id": 2, "name": "deploy", "stage": "deploy", "status": "manual"}
		]`,
	}))

	// Act
	pipelines, err := client.GetPipelines(context.Background(), "123")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(pipelines) != 1 {
		t.Fatalf("expected 1 pipeline, got %d", len(pipelines))
	}
	p := pipelines[0]
	if p.SHA != "c1a2b3" || p.Author.ID != "7" || p.Trigger != "push" {
		t.Errorf("unexpected pipeline %+v", p)
	}
	if len(p.Stages) != 2 || p.Stages[0].Name != "test/unit" || p.Stages[1].Status != domain.StatusPending {
		t.Errorf("unexpected stages %+v", p.Stages)
	}
}

// TestGetCommits_Pagination tests that full pages trigger a next page request.
func TestGetCommits_Pagination(t *testing.T) {
	// Arrange
	var full strings.Builder
	full.WriteString("[")
	for i := 0; i < api.DefaultPageSize; i++ {
		if i > 0 {
			full.WriteString(",")
		}
		full.WriteString(`{"id": "sha", "author_email": "dev@example.com"}`)
	}
	full.WriteString("]")

	var pages []string
	mockHTTP := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			page := req.URL.Query().Get("page")
			pages = append(pages, page)
			body := "[]"
			if page == "1" {
				body = full.String()
			}
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString(body))}, nil
		},
	}
	client := newTestClient(mockHTTP)

	// Act
	commits, err := client.GetCommits(context.Background(), "123")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(commits) != api.DefaultPageSize {
		t.Errorf("expected %d commits, got %d", api.DefaultPageSize, len(commits))
	}
	if len(pages) != 2 {
		t.Errorf("expected 2 page requests, got %v", pages)
	}
}

// TestConvertStatus tests GitLab status mapping.
func TestConvertStatus(t *testing.T) {
	tests := []struct {
		glStatus string
		want     domain.Status
	}{
		{"success", domain.StatusSuccess},
		{"failed", domain.StatusFailed},
		{"running", domain.StatusRunning},
		{"manual", domain.StatusPending},
		{"canceled", domain.StatusCanceled},
		{"skipped", domain.StatusSkipped},
		{"weird", domain.Status("weird")},
	}

	for _, tt := range tests {
		t.Run(tt.glStatus, func(t *testing.T) {
			if got := convertStatus(tt.glStatus); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

// TestGetIssues_SubRequestFails tests that one issue's failing notes do not
// drop the other issues.
func TestGetIssues_SubRequestFails(t *testing.T) {
	// Arrange
	client := newTestClient(failing(routes(t, map[string]string{
		"/api/v4/projects/123/issues": `[
			{"id": 9001, "iid": 1, "project_id": 123, "title": "First", "state": "opened", "author": {"id": 7, "name": "Una"}, "created_at": "2024-01-01T09:00:00.000Z"},
			{"id": 9002, "iid": 2, "project_id": 123, "title": "Second", "state": "closed", "author": {"id": 7, "name": "Una"}, "created_at": "2024-01-02T09:00:00.000Z"}
		]`,
		"/api/v4/projects/123/issues/1/notes": `[
			{"id": 1, "body": "looks good", "author": {"id": 8, "name": "Dev"}, "created_at": "2024-01-01T10:00:00.000Z"}
		]`,
		"/api/v4/projects/123/issues/2/resource_state_events": `[
			{"id": 5, "state": "closed", "user": {"id": 8, "name": "Dev"}, "created_at": "2024-01-03T09:00:00.000Z"}
		]`,
	}), "/api/v4/projects/123/issues/2/notes"))

	// Act
	issues, err := client.GetIssues(context.Background(), "123")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(issues))
	}
	if len(issues[0].Notes) != 1 {
		t.Errorf("expected first issue to keep its note, got %+v", issues[0].Notes)
	}
	if len(issues[1].Notes) != 0 {
		t.Errorf("expected second issue without notes, got %+v", issues[1].Notes)
	}
	if len(issues[1].Revisions) != 2 {
		t.Errorf("expected second issue to keep its state events, got %+v", issues[1].Revisions)
	}
}

// TestGetPipelines_DetailFails tests the fallback to the listed pipeline.
func TestGetPipelines_DetailFails(t *testing.T) {
	// Arrange
	client := newTestClient(failing(routes(t, map[string]string{
		"/api/v4/projects/123/pipelines": `[
			{"id": 500, "status": "success", "ref": "main", "sha": "c1a2b3"},
			{"id": 501, "status": "failed", "ref": "main", "sha": "d4e5f6"}
		]`,
	}), "/api/v4/projects/123/pipelines/500"))

	// Act
	pipelines, err := client.GetPipelines(context.Background(), "123")

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(pipelines) != 2 {
		t.Fatalf("expected 2 pipelines, got %d", len(pipelines))
	}
	if pipelines[0].SHA != "c1a2b3" || pipelines[0].Status != domain.StatusSuccess {
		t.Errorf("expected listed fields to survive, got %+v", pipelines[0])
	}
}
