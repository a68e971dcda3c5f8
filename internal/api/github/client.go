package github

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/vilaca/alm-eventlog/internal/api"
	"github.com/vilaca/alm-eventlog/internal/domain"
)

// closingKeywordPattern finds "fixes #12" style references in pull request bodies.
var closingKeywordPattern = regexp.MustCompile(`(?i)\b(?:close[sd]?|fix(?:e[sd])?|resolve[sd]?)\s+#(\d+)`)

// reviewVotes maps review states to the shared vote scale.
var reviewVotes = map[string]int{
	"APPROVED":          10,
	"CHANGES_REQUESTED": -10,
	"DISMISSED":         0,
}

// Client implements api.Source for GitHub.
// Follows Single Responsibility Principle - only handles GitHub API communication.
type Client struct {
	*api.BaseClient
}

// NewClient creates a new GitHub client.
// Uses dependency injection for HTTPClient (IoC).
func NewClient(config api.ClientConfig, httpClient api.HTTPClient) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.github.com"
	}
	token := config.Token
	return &Client{
		BaseClient: api.NewBaseClient(config, httpClient, func(req *http.Request) {
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
			req.Header.Set("Accept", "application/vnd.github+json")
			req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		}),
	}
}

// Platform returns the platform name.
func (c *Client) Platform() string {
	return domain.PlatformGitHub
}

// repoURL builds the repository URL; projectID format: "owner/repo".
func (c *Client) repoURL(projectID string) string {
	return fmt.Sprintf("%s/repos/%s", c.BaseURL, projectID)
}

// GetProject retrieves a repository. The numeric repository id is the namespace.
func (c *Client) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	var repo githubRepository
	if _, err := c.GetJSON(ctx, c.repoURL(projectID), &repo); err != nil {
		return domain.Project{}, fmt.Errorf("failed to get repository: %w", err)
	}

	return domain.Project{
		ID:        repo.FullName,
		Name:      repo.FullName,
		Namespace: strconv.Itoa(repo.ID),
		WebURL:    repo.HTMLURL,
		Platform:  domain.PlatformGitHub,
	}, nil
}

// listAll fetches every page of a listing that answers with a JSON array.
func listAll[T any](ctx context.Context, c *Client, endpoint string) ([]T, error) {
	var all []T
	err := c.Paginate(ctx, func(page int) (int, error) {
		var batch []T
		if _, err := c.GetJSON(ctx, pageURL(endpoint, page), &batch); err != nil {
			return 0, err
		}
		all = append(all, batch...)
		return len(batch), nil
	})
	return all, err
}

func pageURL(endpoint string, page int) string {
	return fmt.Sprintf("%s%sper_page=%d&page=%d", endpoint, querySep(endpoint), api.DefaultPageSize, page)
}

func querySep(endpoint string) string {
	if strings.Contains(endpoint, "?") {
		return "&"
	}
	return "?"
}

// GetIssues retrieves issues and derives notes, closing pull requests and
// revisions from each issue's timeline. Pull requests listed by the issues
// endpoint are skipped.
func (c *Client) GetIssues(ctx context.Context, projectID string) ([]domain.Issue, error) {
	base := c.repoURL(projectID)
	ghIssues, err := listAll[githubIssue](ctx, c, base+"/issues?state=all")
	if err != nil {
		return nil, fmt.Errorf("failed to get issues: %w", err)
	}

	issues := make([]domain.Issue, 0, len(ghIssues))
	for _, ghi := range ghIssues {
		if ghi.PullRequest != nil {
			continue
		}
		timeline, err := listAll[githubTimelineEvent](ctx, c, fmt.Sprintf("%s/issues/%d/timeline", base, ghi.Number))
		if err != nil {
			if err := c.Partial(ctx, err, fmt.Sprintf("timeline of issue %d", ghi.Number)); err != nil {
				return nil, err
			}
		}
		issues = append(issues, convertIssue(ghi, timeline, projectID))
	}
	return issues, nil
}

// GetMergeRequests retrieves pull requests with commits and reviews.
func (c *Client) GetMergeRequests(ctx context.Context, projectID string) ([]domain.MergeRequest, error) {
	base := c.repoURL(projectID)
	pulls, err := listAll[githubPull](ctx, c, base+"/pulls?state=all")
	if err != nil {
		return nil, fmt.Errorf("failed to get pull requests: %w", err)
	}

	mrs := make([]domain.MergeRequest, 0, len(pulls))
	for _, pull := range pulls {
		pullURL := fmt.Sprintf("%s/pulls/%d", base, pull.Number)
		if pull.MergedAt != "" {
			// merged_by is only present on the single pull request resource
			detail := pull
			if _, err := c.GetJSON(ctx, pullURL, &detail); err != nil {
				if err := c.Partial(ctx, err, fmt.Sprintf("details of pull request %d", pull.Number)); err != nil {
					return nil, err
				}
			} else {
				pull = detail
			}
		}
		commits, err := listAll[githubCommit](ctx, c, pullURL+"/commits")
		if err != nil {
			if err := c.Partial(ctx, err, fmt.Sprintf("commits of pull request %d", pull.Number)); err != nil {
				return nil, err
			}
		}
		reviews, err := listAll[githubReview](ctx, c, pullURL+"/reviews")
		if err != nil {
			if err := c.Partial(ctx, err, fmt.Sprintf("reviews of pull request %d", pull.Number)); err != nil {
				return nil, err
			}
		}
		mrs = append(mrs, convertPull(pull, commits, reviews, projectID))
	}
	return mrs, nil
}

// GetCommits retrieves the commit history of the default branch.
func (c *Client) GetCommits(ctx context.Context, projectID string) ([]domain.Commit, error) {
	ghCommits, err := listAll[githubCommit](ctx, c, c.repoURL(projectID)+"/commits")
	if err != nil {
		return nil, fmt.Errorf("failed to get commits: %w", err)
	}

	commits := make([]domain.Commit, len(ghCommits))
	for i, ghc := range ghCommits {
		commits[i] = convertCommit(ghc)
	}
	return commits, nil
}

// GetPipelines retrieves workflow runs with their jobs.
func (c *Client) GetPipelines(ctx context.Context, projectID string) ([]domain.Pipeline, error) {
	base := c.repoURL(projectID)

	var runs []githubWorkflowRun
	err := c.Paginate(ctx, func(page int) (int, error) {
		var response githubWorkflowRunsResponse
		if _, err := c.GetJSON(ctx, pageURL(base+"/actions/runs", page), &response); err != nil {
			return 0, err
		}
		runs = append(runs, response.WorkflowRuns...)
		return len(response.WorkflowRuns), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow runs: %w", err)
	}

	pipelines := make([]domain.Pipeline, 0, len(runs))
	for _, run := range runs {
		var jobs githubJobsResponse
		if _, err := c.GetJSON(ctx, pageURL(fmt.Sprintf("%s/actions/runs/%d/jobs", base, run.ID), 1), &jobs); err != nil {
			if err := c.Partial(ctx, err, fmt.Sprintf("jobs of run %d", run.ID)); err != nil {
				return nil, err
			}
		}
		pipelines = append(pipelines, convertPipeline(run, jobs.Jobs, projectID))
	}
	return pipelines, nil
}

func convertUser(u *githubUser) domain.Actor {
	if u == nil || u.Login == "" {
		return domain.Actor{}
	}
	return domain.Actor{ID: u.Login, Name: u.Login}
}

// convertIssue converts a GitHub issue and its timeline to domain model.
// Cross references become mention notes so the engine scans them like any
// other platform's system notes.
func convertIssue(ghi githubIssue, timeline []githubTimelineEvent, projectID string) domain.Issue {
	author := convertUser(ghi.User)
	issue := domain.Issue{
		ID:          strconv.Itoa(ghi.Number),
		GlobalID:    strconv.Itoa(ghi.ID),
		Title:       ghi.Title,
		Description: ghi.Body,
		Type:        "issue",
		State:       ghi.State,
		Author:      author,
		CreatedAt:   ghi.CreatedAt,
		UpdatedAt:   ghi.UpdatedAt,
		WebURL:      ghi.HTMLURL,
		ProjectID:   projectID,
		Revisions: []domain.Revision{
			{Rev: 0, State: "open", ChangedAt: ghi.CreatedAt, ChangedBy: author},
		},
	}

	for i, ev := range timeline {
		actor := convertUser(ev.Actor)
		switch ev.Event {
		case "cross-referenced":
			if ev.Source == nil || ev.Source.Issue == nil {
				continue
			}
			src := ev.Source.Issue
			kind := "issue"
			if src.PullRequest != nil {
				kind = "pull request"
				if closesIssue(src.Body, ghi.Number) {
					issue.ClosedBy = append(issue.ClosedBy, strconv.Itoa(src.Number))
				}
			}
			issue.Notes = append(issue.Notes, domain.Note{
				ID:        fmt.Sprintf("%d-xref-%d", ghi.ID, i),
				Body:      fmt.Sprintf("mentioned in %s #%d", kind, src.Number),
				Author:    actor,
				CreatedAt: ev.CreatedAt,
				System:    true,
			})
		case "assigned":
			assignee := ""
			if ev.Assignee != nil {
				assignee = ev.Assignee.Login
			}
			issue.Notes = append(issue.Notes, domain.Note{
				ID:        strconv.FormatInt(ev.ID, 10),
				Body:      "assigned to @" + assignee,
				Author:    actor,
				CreatedAt: ev.CreatedAt,
				System:    true,
			})
		case "closed", "reopened":
			state := "closed"
			if ev.Event == "reopened" {
				state = "open"
			}
			issue.Revisions = append(issue.Revisions, domain.Revision{
				Rev:       len(issue.Revisions),
				State:     state,
				ChangedAt: ev.CreatedAt,
				ChangedBy: actor,
			})
		}
	}
	return issue
}

// closesIssue reports whether body closes issue number with a keyword.
func closesIssue(body string, number int) bool {
	for _, m := range closingKeywordPattern.FindAllStringSubmatch(body, -1) {
		if m[1] == strconv.Itoa(number) {
			return true
		}
	}
	return false
}

// convertPull converts a GitHub pull request to domain model. The merge
// commit is only meaningful once merged; before that it is a test merge.
func convertPull(pull githubPull, commits []githubCommit, reviews []githubReview, projectID string) domain.MergeRequest {
	mr := domain.MergeRequest{
		ID:           strconv.Itoa(pull.Number),
		GlobalID:     strconv.Itoa(pull.ID),
		Title:        pull.Title,
		Description:  pull.Body,
		State:        pull.State,
		IsDraft:      pull.Draft,
		SourceBranch: pull.Head.Ref,
		TargetBranch: pull.Base.Ref,
		Author:       convertUser(pull.User),
		CreatedAt:    pull.CreatedAt,
		UpdatedAt:    pull.UpdatedAt,
		WebURL:       pull.HTMLURL,
		ProjectID:    projectID,
		PreMergeSHA:  pull.Head.SHA,
	}

	// closed-without-merge carries no actor on this resource and is not emitted
	if pull.MergedAt != "" {
		mr.PostMergeSHA = pull.MergeCommitSHA
		mr.Activities = append(mr.Activities, domain.MRActivity{
			ID: mr.GlobalID, Kind: domain.ActivityMerged, Actor: convertUser(pull.MergedBy), At: pull.MergedAt,
		})
	}

	for _, r := range reviews {
		activity := domain.MRActivity{
			ID:    strconv.FormatInt(r.ID, 10),
			Kind:  domain.ActivityComment,
			Actor: convertUser(r.User),
			At:    r.SubmittedAt,
		}
		if vote, ok := reviewVotes[r.State]; ok {
			activity.Kind = domain.ActivityVote
			activity.Vote = vote
		}
		mr.Activities = append(mr.Activities, activity)
	}

	for _, ghc := range commits {
		mr.Commits = append(mr.Commits, convertCommit(ghc))
	}
	return mr
}

// convertCommit converts a GitHub commit; the git author email identifies the actor.
func convertCommit(ghc githubCommit) domain.Commit {
	return domain.Commit{
		SHA:       ghc.SHA,
		Message:   ghc.Commit.Message,
		Author:    domain.Actor{ID: ghc.Commit.Author.Email, Name: ghc.Commit.Author.Name},
		CreatedAt: ghc.Commit.Author.Date,
	}
}

// convertPipeline converts a GitHub workflow run to domain model.
func convertPipeline(run githubWorkflowRun, jobs []githubJob, projectID string) domain.Pipeline {
	p := domain.Pipeline{
		ID:             strconv.FormatInt(run.ID, 10),
		Kind:           domain.KindPipeline,
		DefinitionID:   strconv.FormatInt(run.WorkflowID, 10),
		DefinitionName: run.Name,
		Name:           run.DisplayTitle,
		ProjectID:      projectID,
		SHA:            run.HeadSHA,
		Branch:         run.HeadBranch,
		Status:         convertStatus(run.Status, run.Conclusion),
		Trigger:        run.Event,
		Author:         convertUser(run.Actor),
		CreatedAt:      run.CreatedAt,
		WebURL:         run.HTMLURL,
	}
	if run.Status == "completed" {
		p.FinishedAt = run.UpdatedAt
	}
	for _, j := range jobs {
		p.Stages = append(p.Stages, domain.Stage{
			ID:         strconv.FormatInt(j.ID, 10),
			Name:       j.Name,
			Status:     convertStatus(j.Status, j.Conclusion),
			StartedAt:  j.StartedAt,
			FinishedAt: j.CompletedAt,
		})
	}
	return p
}

// convertStatus converts GitHub status and conclusion to domain status.
func convertStatus(status, conclusion string) domain.Status {
	// GitHub uses both 'status' (queued, in_progress, completed) and 'conclusion' (success, failure, etc.)
	if status == "queued" || status == "waiting" || status == "pending" {
		return domain.StatusPending
	}
	if status == "in_progress" {
		return domain.StatusRunning
	}

	// Status is 'completed', check conclusion
	switch conclusion {
	case "success":
		return domain.StatusSuccess
	case "failure":
		return domain.StatusFailed
	case "cancelled":
		return domain.StatusCanceled
	case "skipped":
		return domain.StatusSkipped
	default:
		return domain.StatusFailed
	}
}

// GitHub API response types
type githubRepository struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

type githubIssue struct {
	ID          int         `json:"id"`
	Number      int         `json:"number"`
	Title       string      `json:"title"`
	Body        string      `json:"body"`
	State       string      `json:"state"`
	User        *githubUser `json:"user"`
	CreatedAt   string      `json:"created_at"`
	UpdatedAt   string      `json:"updated_at"`
	HTMLURL     string      `json:"html_url"`
	PullRequest *struct{}   `json:"pull_request"`
}

type githubTimelineEvent struct {
	ID        int64       `json:"id"`
	Event     string      `json:"event"`
	Actor     *githubUser `json:"actor"`
	Assignee  *githubUser `json:"assignee"`
	CreatedAt string      `json:"created_at"`
	Source    *struct {
		Type  string       `json:"type"`
		Issue *githubIssue `json:"issue"`
	} `json:"source"`
}

type githubRef struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type githubPull struct {
	ID             int         `json:"id"`
	Number         int         `json:"number"`
	Title          string      `json:"title"`
	Body           string      `json:"body"`
	State          string      `json:"state"`
	Draft          bool        `json:"draft"`
	User           *githubUser `json:"user"`
	Head           githubRef   `json:"head"`
	Base           githubRef   `json:"base"`
	CreatedAt      string      `json:"created_at"`
	UpdatedAt      string      `json:"updated_at"`
	MergedAt       string      `json:"merged_at"`
	MergedBy       *githubUser `json:"merged_by"`
	MergeCommitSHA string      `json:"merge_commit_sha"`
	HTMLURL        string      `json:"html_url"`
}

type githubReview struct {
	ID          int64       `json:"id"`
	User        *githubUser `json:"user"`
	State       string      `json:"state"`
	SubmittedAt string      `json:"submitted_at"`
}

type githubCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name  string `json:"name"`
			Email string `json:"email"`
			Date  string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

type githubWorkflowRunsResponse struct {
	TotalCount   int                 `json:"total_count"`
	WorkflowRuns []githubWorkflowRun `json:"workflow_runs"`
}

type githubWorkflowRun struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	DisplayTitle string      `json:"display_title"`
	WorkflowID   int64       `json:"workflow_id"`
	HeadBranch   string      `json:"head_branch"`
	HeadSHA      string      `json:"head_sha"`
	Event        string      `json:"event"`
	Status       string      `json:"status"`
	Conclusion   string      `json:"conclusion"`
	HTMLURL      string      `json:"html_url"`
	Actor        *githubUser `json:"actor"`
	CreatedAt    string      `json:"created_at"`
	UpdatedAt    string      `json:"updated_at"`
}

type githubJobsResponse struct {
	TotalCount int         `json:"total_count"`
	Jobs       []githubJob `json:"jobs"`
}

type githubJob struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Conclusion  string `json:"conclusion"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at"`
}
