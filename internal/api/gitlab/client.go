package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/vilaca/alm-eventlog/internal/api"
	"github.com/vilaca/alm-eventlog/internal/domain"
)

// Client implements api.Source for GitLab.
// Follows Single Responsibility Principle - only handles GitLab API communication.
type Client struct {
	*api.BaseClient
}

// NewClient creates a new GitLab client.
// Uses dependency injection for HTTPClient (IoC).
func NewClient(config api.ClientConfig, httpClient api.HTTPClient) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://gitlab.com"
	}
	token := config.Token
	return &Client{
		BaseClient: api.NewBaseClient(config, httpClient, func(req *http.Request) {
			req.Header.Set("PRIVATE-TOKEN", token)
		}),
	}
}

// Platform returns the platform name.
func (c *Client) Platform() string {
	return domain.PlatformGitLab
}

func (c *Client) projectURL(projectID string) string {
	return fmt.Sprintf("%s/api/v4/projects/%s", c.BaseURL, url.PathEscape(projectID))
}

// GetProject retrieves a project. The numeric project id is the namespace.
func (c *Client) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	var glp gitlabProject
	if _, err := c.GetJSON(ctx, c.projectURL(projectID), &glp); err != nil {
		return domain.Project{}, fmt.Errorf("failed to get project: %w", err)
	}

	id := strconv.Itoa(glp.ID)
	return domain.Project{
		ID:        id,
		Name:      glp.PathWithNamespace,
		Namespace: id,
		WebURL:    glp.WebURL,
		Platform:  domain.PlatformGitLab,
	}, nil
}

// listAll fetches every page of a listing endpoint.
func listAll[T any](ctx context.Context, c *Client, endpoint string) ([]T, error) {
	var all []T
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	err := c.Paginate(ctx, func(page int) (int, error) {
		var batch []T
		pageURL := fmt.Sprintf("%s%sper_page=%d&page=%d", endpoint, sep, api.DefaultPageSize, page)
		if _, err := c.GetJSON(ctx, pageURL, &batch); err != nil {
			return 0, err
		}
		all = append(all, batch...)
		return len(batch), nil
	})
	return all, err
}

// GetIssues retrieves issues with notes, closing merge requests and state events.
func (c *Client) GetIssues(ctx context.Context, projectID string) ([]domain.Issue, error) {
	base := c.projectURL(projectID)
	glIssues, err := listAll[gitlabIssue](ctx, c, base+"/issues?scope=all")
	if err != nil {
		return nil, fmt.Errorf("failed to get issues: %w", err)
	}

	issues := make([]domain.Issue, 0, len(glIssues))
	for _, gli := range glIssues {
		issueURL := fmt.Sprintf("%s/issues/%d", base, gli.IID)

		notes, err := listAll[gitlabNote](ctx, c, issueURL+"/notes")
		if err != nil {
			if err := c.Partial(ctx, err, fmt.Sprintf("notes of issue %d", gli.IID)); err != nil {
				return nil, err
			}
		}
		var closedBy []gitlabMergeRequest
		if _, err := c.GetJSON(ctx, issueURL+"/closed_by", &closedBy); err != nil {
			if err := c.Partial(ctx, err, fmt.Sprintf("closing merge requests of issue %d", gli.IID)); err != nil {
				return nil, err
			}
		}
		stateEvents, err := listAll[gitlabStateEvent](ctx, c, issueURL+"/resource_state_events")
		if err != nil {
			if err := c.Partial(ctx, err, fmt.Sprintf("state events of issue %d", gli.IID)); err != nil {
				return nil, err
			}
		}

		issues = append(issues, convertIssue(gli, notes, closedBy, stateEvents))
	}
	return issues, nil
}

// GetMergeRequests retrieves merge requests in every state, with their commits.
func (c *Client) GetMergeRequests(ctx context.Context, projectID string) ([]domain.MergeRequest, error) {
	base := c.projectURL(projectID)
	glMRs, err := listAll[gitlabMergeRequest](ctx, c, base+"/merge_requests?state=all")
	if err != nil {
		return nil, fmt.Errorf("failed to get merge requests: %w", err)
	}

	mrs := make([]domain.MergeRequest, 0, len(glMRs))
	for _, glm := range glMRs {
		commits, err := listAll[gitlabCommit](ctx, c, fmt.Sprintf("%s/merge_requests/%d/commits", base, glm.IID))
		if err != nil {
			if err := c.Partial(ctx, err, fmt.Sprintf("commits of merge request %d", glm.IID)); err != nil {
				return nil, err
			}
		}
		mrs = append(mrs, convertMergeRequest(glm, commits))
	}
	return mrs, nil
}

// GetCommits retrieves the commit history of every branch.
func (c *Client) GetCommits(ctx context.Context, projectID string) ([]domain.Commit, error) {
	glCommits, err := listAll[gitlabCommit](ctx, c, c.projectURL(projectID)+"/repository/commits?all=true")
	if err != nil {
		return nil, fmt.Errorf("failed to get commits: %w", err)
	}

	commits := make([]domain.Commit, len(glCommits))
	for i, glc := range glCommits {
		commits[i] = convertCommit(glc)
	}
	return commits, nil
}

// GetPipelines retrieves pipelines with their details and jobs.
func (c *Client) GetPipelines(ctx context.Context, projectID string) ([]domain.Pipeline, error) {
	base := c.projectURL(projectID)
	glPipelines, err := listAll[gitlabPipeline](ctx, c, base+"/pipelines")
	if err != nil {
		return nil, fmt.Errorf("failed to get pipelines: %w", err)
	}

	pipelines := make([]domain.Pipeline, 0, len(glPipelines))
	for _, listed := range glPipelines {
		// the listing omits user and timing fields
		var detail gitlabPipeline
		if _, err := c.GetJSON(ctx, fmt.Sprintf("%s/pipelines/%d", base, listed.ID), &detail); err != nil {
			if err := c.Partial(ctx, err, fmt.Sprintf("details of pipeline %d", listed.ID)); err != nil {
				return nil, err
			}
			detail = listed
		}
		jobs, err := listAll[gitlabJob](ctx, c, fmt.Sprintf("%s/pipelines/%d/jobs", base, listed.ID))
		if err != nil {
			if err := c.Partial(ctx, err, fmt.Sprintf("jobs of pipeline %d", listed.ID)); err != nil {
				return nil, err
			}
		}
		pipelines = append(pipelines, convertPipeline(detail, jobs, projectID))
	}
	return pipelines, nil
}

func convertUser(u *gitlabUser) domain.Actor {
	if u == nil || u.ID == 0 {
		return domain.Actor{}
	}
	return domain.Actor{ID: strconv.Itoa(u.ID), Name: u.Name}
}

// convertIssue converts a GitLab issue to domain model. State events become
// revisions on top of an initial "opened" revision at creation.
func convertIssue(gli gitlabIssue, notes []gitlabNote, closedBy []gitlabMergeRequest, stateEvents []gitlabStateEvent) domain.Issue {
	author := convertUser(gli.Author)
	issue := domain.Issue{
		ID:          strconv.Itoa(gli.IID),
		GlobalID:    strconv.Itoa(gli.ID),
		Title:       gli.Title,
		Description: gli.Description,
		Type:        gli.IssueType,
		State:       gli.State,
		Author:      author,
		CreatedAt:   gli.CreatedAt,
		UpdatedAt:   gli.UpdatedAt,
		WebURL:      gli.WebURL,
		ProjectID:   strconv.Itoa(gli.ProjectID),
		Revisions: []domain.Revision{
			{Rev: 0, State: "opened", ChangedAt: gli.CreatedAt, ChangedBy: author},
		},
	}

	for _, n := range notes {
		issue.Notes = append(issue.Notes, domain.Note{
			ID:        strconv.Itoa(n.ID),
			Body:      n.Body,
			Author:    convertUser(n.Author),
			CreatedAt: n.CreatedAt,
			System:    n.System,
		})
	}
	for _, mr := range closedBy {
		issue.ClosedBy = append(issue.ClosedBy, strconv.Itoa(mr.IID))
	}
	for i, ev := range stateEvents {
		issue.Revisions = append(issue.Revisions, domain.Revision{
			Rev:       i + 1,
			State:     ev.State,
			ChangedAt: ev.CreatedAt,
			ChangedBy: convertUser(ev.User),
		})
	}
	return issue
}

// convertMergeRequest converts a GitLab merge request to domain model.
// The head SHA is the pre-merge commit; the merge or squash commit is the
// post-merge commit.
func convertMergeRequest(glm gitlabMergeRequest, commits []gitlabCommit) domain.MergeRequest {
	mr := domain.MergeRequest{
		ID:           strconv.Itoa(glm.IID),
		GlobalID:     strconv.Itoa(glm.ID),
		Title:        glm.Title,
		Description:  glm.Description,
		State:        glm.State,
		IsDraft:      glm.Draft,
		SourceBranch: glm.SourceBranch,
		TargetBranch: glm.TargetBranch,
		Author:       convertUser(glm.Author),
		CreatedAt:    glm.CreatedAt,
		UpdatedAt:    glm.UpdatedAt,
		WebURL:       glm.WebURL,
		ProjectID:    strconv.Itoa(glm.ProjectID),
		PreMergeSHA:  glm.SHA,
		PostMergeSHA: glm.MergeCommitSHA,
	}
	if mr.PostMergeSHA == "" {
		mr.PostMergeSHA = glm.SquashCommitSHA
	}

	if glm.MergedAt != "" {
		// merge user is sometimes missing; the event is then dropped by the log
		merger := glm.MergeUser
		if merger == nil {
			merger = glm.MergedBy
		}
		mr.Activities = append(mr.Activities, domain.MRActivity{
			ID: mr.GlobalID, Kind: domain.ActivityMerged, Actor: convertUser(merger), At: glm.MergedAt,
		})
	}
	if glm.ClosedAt != "" {
		mr.Activities = append(mr.Activities, domain.MRActivity{
			ID: mr.GlobalID, Kind: domain.ActivityClosed, Actor: convertUser(glm.ClosedBy), At: glm.ClosedAt,
		})
	}

	for _, glc := range commits {
		mr.Commits = append(mr.Commits, convertCommit(glc))
	}
	return mr
}

// convertCommit converts a GitLab commit. Commits carry no GitLab user id,
// so the author email identifies the actor.
func convertCommit(glc gitlabCommit) domain.Commit {
	return domain.Commit{
		SHA:       glc.ID,
		Message:   glc.Message,
		Author:    domain.Actor{ID: glc.AuthorEmail, Name: glc.AuthorName},
		CreatedAt: glc.CreatedAt,
	}
}

// convertPipeline converts a GitLab pipeline and its jobs to domain model.
func convertPipeline(glp gitlabPipeline, jobs []gitlabJob, projectID string) domain.Pipeline {
	p := domain.Pipeline{
		ID:         strconv.Itoa(glp.ID),
		Kind:       domain.KindPipeline,
		Name:       glp.Ref,
		ProjectID:  projectID,
		SHA:        glp.SHA,
		Branch:     glp.Ref,
		Status:     convertStatus(glp.Status),
		Trigger:    glp.Source,
		Author:     convertUser(glp.User),
		CreatedAt:  glp.CreatedAt,
		FinishedAt: glp.FinishedAt,
		WebURL:     glp.WebURL,
	}
	for _, j := range jobs {
		p.Stages = append(p.Stages, domain.Stage{
			ID:         strconv.Itoa(j.ID),
			Name:       j.Stage + "/" + j.Name,
			Status:     convertStatus(j.Status),
			StartedAt:  j.StartedAt,
			FinishedAt: j.FinishedAt,
			Actor:      convertUser(j.User),
		})
	}
	return p
}

// convertStatus converts GitLab status to domain status.
func convertStatus(glStatus string) domain.Status {
	switch glStatus {
	case "created", "waiting_for_resource", "preparing", "pending", "scheduled", "manual":
		return domain.StatusPending
	case "running":
		return domain.StatusRunning
	case "success":
		return domain.StatusSuccess
	case "failed":
		return domain.StatusFailed
	case "canceled":
		return domain.StatusCanceled
	case "skipped":
		return domain.StatusSkipped
	default:
		return domain.Status(glStatus)
	}
}

// GitLab API response types
type gitlabProject struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
}

type gitlabUser struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type gitlabIssue struct {
	ID          int         `json:"id"`
	IID         int         `json:"iid"`
	ProjectID   int         `json:"project_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	State       string      `json:"state"`
	IssueType   string      `json:"issue_type"`
	Author      *gitlabUser `json:"author"`
	CreatedAt   string      `json:"created_at"`
	UpdatedAt   string      `json:"updated_at"`
	ClosedAt    string      `json:"closed_at"`
	WebURL      string      `json:"web_url"`
}

type gitlabNote struct {
	ID        int         `json:"id"`
	Body      string      `json:"body"`
	Author    *gitlabUser `json:"author"`
	CreatedAt string      `json:"created_at"`
	System    bool        `json:"system"`
}

type gitlabStateEvent struct {
	ID        int         `json:"id"`
	User      *gitlabUser `json:"user"`
	CreatedAt string      `json:"created_at"`
	State     string      `json:"state"`
}

type gitlabMergeRequest struct {
	ID              int         `json:"id"`
	IID             int         `json:"iid"`
	ProjectID       int         `json:"project_id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	State           string      `json:"state"`
	Draft           bool        `json:"draft"`
	SourceBranch    string      `json:"source_branch"`
	TargetBranch    string      `json:"target_branch"`
	Author          *gitlabUser `json:"author"`
	CreatedAt       string      `json:"created_at"`
	UpdatedAt       string      `json:"updated_at"`
	MergedAt        string      `json:"merged_at"`
	MergeUser       *gitlabUser `json:"merge_user"`
	MergedBy        *gitlabUser `json:"merged_by"`
	ClosedAt        string      `json:"closed_at"`
	ClosedBy        *gitlabUser `json:"closed_by"`
	SHA             string      `json:"sha"`
	MergeCommitSHA  string      `json:"merge_commit_sha"`
	SquashCommitSHA string      `json:"squash_commit_sha"`
	WebURL          string      `json:"web_url"`
}

type gitlabCommit struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
	CreatedAt   string `json:"created_at"`
}

type gitlabPipeline struct {
	ID         int         `json:"id"`
	Status     string      `json:"status"`
	Source     string      `json:"source"`
	Ref        string      `json:"ref"`
	SHA        string      `json:"sha"`
	WebURL     string      `json:"web_url"`
	User       *gitlabUser `json:"user"`
	CreatedAt  string      `json:"created_at"`
	FinishedAt string      `json:"finished_at"`
}

type gitlabJob struct {
	ID         int         `json:"id"`
	Name       string      `json:"name"`
	Stage      string      `json:"stage"`
	Status     string      `json:"status"`
	StartedAt  string      `json:"started_at"`
	FinishedAt string      `json:"finished_at"`
	User       *gitlabUser `json:"user"`
}
