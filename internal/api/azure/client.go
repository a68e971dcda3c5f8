// Package azure implements the Azure DevOps collaborator: boards work items,
// repos pull requests, build pipelines and classic releases.
package azure

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/vilaca/alm-eventlog/internal/api"
	"github.com/vilaca/alm-eventlog/internal/domain"
)

const (
	apiVersion = "7.1"
	// workItemBatch is the maximum number of ids per work item batch request.
	workItemBatch = 200
	// continuationHeader carries the next page token of list endpoints.
	continuationHeader = "X-Ms-Continuationtoken"
)

// Thread comment patterns. System comments are the only source of review
// and status history for a pull request.
var (
	reviewPattern    = regexp.MustCompile(`([+-]?\d+)$`)
	completedPattern = regexp.MustCompile(`^.*updated the pull request status to Completed$`)
	abandonedPattern = regexp.MustCompile(`^.*updated the pull request status to Abandoned$`)
)

// Client implements api.DefinitionSource for Azure DevOps.
// Follows Single Responsibility Principle - only handles Azure DevOps API communication.
type Client struct {
	*api.BaseClient
	releaseURL string
}

// NewClient creates a new Azure DevOps client. config.BaseURL is the
// organization URL, e.g. https://dev.azure.com/contoso.
func NewClient(config api.ClientConfig, httpClient api.HTTPClient) *Client {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	token := config.Token
	return &Client{
		BaseClient: api.NewBaseClient(config, httpClient, func(req *http.Request) {
			req.SetBasicAuth("", token)
		}),
		releaseURL: ReleaseURL(config.BaseURL),
	}
}

// ReleaseURL derives the release management host of an organization URL.
func ReleaseURL(orgURL string) string {
	return strings.Replace(orgURL, "://dev.azure.com", "://vsrm.dev.azure.com", 1)
}

// Platform returns the platform name.
func (c *Client) Platform() string {
	return domain.PlatformAzure
}

func (c *Client) projectURL(project string) string {
	return c.BaseURL + "/" + url.PathEscape(project)
}

func withVersion(endpoint string) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + "api-version=" + apiVersion
}

// GetProject retrieves a project. The first 7 characters of the project
// GUID are the namespace.
func (c *Client) GetProject(ctx context.Context, project string) (domain.Project, error) {
	var azp azureProject
	endpoint := withVersion(c.BaseURL + "/_apis/projects/" + url.PathEscape(project))
	if _, err := c.GetJSON(ctx, endpoint, &azp); err != nil {
		return domain.Project{}, fmt.Errorf("failed to get project: %w", err)
	}

	return domain.Project{
		ID:        azp.ID,
		Name:      azp.Name,
		Namespace: ShortProjectID(azp.ID),
		WebURL:    azp.URL,
		Platform:  domain.PlatformAzure,
	}, nil
}

// ShortProjectID truncates a project GUID to its namespace form.
func ShortProjectID(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}

// GetIssues retrieves work items with relations and revisions.
// Ids come from a WIQL query; items are then fetched in batches.
func (c *Client) GetIssues(ctx context.Context, project string) ([]domain.Issue, error) {
	base := c.projectURL(project)

	query := azureWiql{
		Query: "SELECT [System.Id] FROM WorkItems WHERE [System.TeamProject] = '" +
			strings.ReplaceAll(project, "'", "''") + "'",
	}
	var result azureWiqlResult
	if err := c.PostJSON(ctx, withVersion(base+"/_apis/wit/wiql"), query, &result); err != nil {
		return nil, fmt.Errorf("failed to query work items: %w", err)
	}

	ids := make([]string, 0, len(result.WorkItems))
	for _, ref := range result.WorkItems {
		ids = append(ids, strconv.Itoa(ref.ID))
	}

	var issues []domain.Issue
	for start := 0; start < len(ids); start += workItemBatch {
		end := min(start+workItemBatch, len(ids))
		var batch azureList[azureWorkItem]
		endpoint := withVersion(fmt.Sprintf("%s/_apis/wit/workitems?ids=%s&$expand=all", base, strings.Join(ids[start:end], ",")))
		if _, err := c.GetJSON(ctx, endpoint, &batch); err != nil {
			if err := c.Partial(ctx, err, fmt.Sprintf("work items %s", strings.Join(ids[start:end], ","))); err != nil {
				return nil, err
			}
			continue
		}

		for _, item := range batch.Value {
			var revisions azureList[azureRevision]
			endpoint := withVersion(fmt.Sprintf("%s/_apis/wit/workItems/%d/revisions", base, item.ID))
			if _, err := c.GetJSON(ctx, endpoint, &revisions); err != nil {
				if err := c.Partial(ctx, err, fmt.Sprintf("revisions of work item %d", item.ID)); err != nil {
					return nil, err
				}
			}
			issues = append(issues, convertWorkItem(item, revisions.Value, project))
		}
	}
	return issues, nil
}

// GetMergeRequests retrieves pull requests in every status, with threads and commits.
func (c *Client) GetMergeRequests(ctx context.Context, project string) ([]domain.MergeRequest, error) {
	base := c.projectURL(project)

	var prs []azurePullRequest
	err := c.Paginate(ctx, func(page int) (int, error) {
		var batch azureList[azurePullRequest]
		endpoint := withVersion(fmt.Sprintf("%s/_apis/git/pullrequests?searchCriteria.status=all&$top=%d&$skip=%d",
			base, api.DefaultPageSize, (page-1)*api.DefaultPageSize))
		if _, err := c.GetJSON(ctx, endpoint, &batch); err != nil {
			return 0, err
		}
		prs = append(prs, batch.Value...)
		return len(batch.Value), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pull requests: %w", err)
	}

	mrs := make([]domain.MergeRequest, 0, len(prs))
	for _, pr := range prs {
		prURL := fmt.Sprintf("%s/_apis/git/repositories/%s/pullRequests/%d", base, pr.Repository.ID, pr.PullRequestID)

		var threads azureList[azureThread]
		if _, err := c.GetJSON(ctx, withVersion(prURL+"/threads"), &threads); err != nil {
			if err := c.Partial(ctx, err, fmt.Sprintf("threads of pull request %d", pr.PullRequestID)); err != nil {
				return nil, err
			}
		}
		var commits azureList[azureCommit]
		if _, err := c.GetJSON(ctx, withVersion(prURL+"/commits"), &commits); err != nil {
			if err := c.Partial(ctx, err, fmt.Sprintf("commits of pull request %d", pr.PullRequestID)); err != nil {
				return nil, err
			}
		}
		mrs = append(mrs, convertPullRequest(pr, threads.Value, commits.Value, project))
	}
	return mrs, nil
}

// GetCommits retrieves the commit history of every repository of the project.
func (c *Client) GetCommits(ctx context.Context, project string) ([]domain.Commit, error) {
	base := c.projectURL(project)

	var repos azureList[azureRepository]
	if _, err := c.GetJSON(ctx, withVersion(base+"/_apis/git/repositories"), &repos); err != nil {
		return nil, fmt.Errorf("failed to get repositories: %w", err)
	}

	var commits []domain.Commit
	for _, repo := range repos.Value {
		err := c.Paginate(ctx, func(page int) (int, error) {
			var batch azureList[azureCommit]
			endpoint := withVersion(fmt.Sprintf("%s/_apis/git/repositories/%s/commits?$top=%d&$skip=%d",
				base, repo.ID, api.DefaultPageSize, (page-1)*api.DefaultPageSize))
			if _, err := c.GetJSON(ctx, endpoint, &batch); err != nil {
				return 0, err
			}
			for _, azc := range batch.Value {
				commits = append(commits, convertCommit(azc))
			}
			return len(batch.Value), nil
		})
		if err != nil {
			if err := c.Partial(ctx, err, fmt.Sprintf("commits of repository %s", repo.Name)); err != nil {
				return nil, err
			}
		}
	}
	return commits, nil
}

// listWithToken fetches every page of a continuation-token listing.
func listWithToken[T any](ctx context.Context, c *Client, endpoint string) ([]T, error) {
	var all []T
	err := c.PaginateToken(ctx, func(token string) (string, error) {
		pageURL := endpoint
		if token != "" {
			pageURL += "&continuationToken=" + url.QueryEscape(token)
		}
		var batch azureList[T]
		header, err := c.GetJSON(ctx, pageURL, &batch)
		if err != nil {
			return "", err
		}
		all = append(all, batch.Value...)
		return header.Get(continuationHeader), nil
	})
	return all, err
}

// GetPipelineDefinitions retrieves build and release definitions.
func (c *Client) GetPipelineDefinitions(ctx context.Context, project string) ([]domain.PipelineDefinition, error) {
	builds, err := listWithToken[azureDefinition](ctx, c, withVersion(c.projectURL(project)+"/_apis/build/definitions"))
	if err != nil {
		return nil, fmt.Errorf("failed to get build definitions: %w", err)
	}
	releases, err := listWithToken[azureDefinition](ctx, c, withVersion(c.releaseURL+"/"+url.PathEscape(project)+"/_apis/release/definitions"))
	if err != nil {
		return nil, fmt.Errorf("failed to get release definitions: %w", err)
	}

	defs := make([]domain.PipelineDefinition, 0, len(builds)+len(releases))
	for _, d := range builds {
		defs = append(defs, domain.PipelineDefinition{
			ID:        strconv.Itoa(d.ID),
			Kind:      domain.KindPipeline,
			Name:      d.Name,
			Author:    d.AuthoredBy.actor(),
			CreatedAt: d.CreatedDate,
		})
	}
	for _, d := range releases {
		defs = append(defs, domain.PipelineDefinition{
			ID:        strconv.Itoa(d.ID),
			Kind:      domain.KindRelease,
			Name:      d.Name,
			Author:    d.CreatedBy.actor(),
			CreatedAt: d.CreatedOn,
		})
	}
	return defs, nil
}

// GetPipelines retrieves builds and releases. Release details are fetched
// for their deployment jobs and primary Git artifact.
func (c *Client) GetPipelines(ctx context.Context, project string) ([]domain.Pipeline, error) {
	builds, err := listWithToken[azureBuild](ctx, c, withVersion(c.projectURL(project)+"/_apis/build/builds"))
	if err != nil {
		return nil, fmt.Errorf("failed to get builds: %w", err)
	}

	releaseBase := c.releaseURL + "/" + url.PathEscape(project) + "/_apis/release/releases"
	releases, err := listWithToken[azureRelease](ctx, c, withVersion(releaseBase))
	if err != nil {
		return nil, fmt.Errorf("failed to get releases: %w", err)
	}

	pipelines := make([]domain.Pipeline, 0, len(builds)+len(releases))
	for _, b := range builds {
		pipelines = append(pipelines, convertBuild(b, project))
	}
	for _, listed := range releases {
		var detail azureRelease
		if _, err := c.GetJSON(ctx, withVersion(fmt.Sprintf("%s/%d", releaseBase, listed.ID)), &detail); err != nil {
			if err := c.Partial(ctx, err, fmt.Sprintf("details of release %d", listed.ID)); err != nil {
				return nil, err
			}
			detail = listed
		}
		pipelines = append(pipelines, convertRelease(detail, project))
	}
	return pipelines, nil
}

// convertWorkItem converts a work item with its revisions to domain model.
func convertWorkItem(item azureWorkItem, revisions []azureRevision, project string) domain.Issue {
	f := item.Fields
	issue := domain.Issue{
		ID:          strconv.Itoa(item.ID),
		Title:       f.Title,
		Description: f.Description,
		Type:        f.WorkItemType,
		State:       f.State,
		Author:      f.CreatedBy.actor(),
		CreatedAt:   f.CreatedDate,
		UpdatedAt:   f.ChangedDate,
		WebURL:      item.URL,
		ProjectID:   project,
	}

	for _, rel := range item.Relations {
		switch rel.Attributes.Name {
		case "Parent":
			issue.Relations = append(issue.Relations, domain.Relation{
				Kind: domain.RelationParent, TargetID: lastSegment(rel.URL), Comment: rel.Attributes.Comment,
			})
		case "Related":
			issue.Relations = append(issue.Relations, domain.Relation{
				Kind: domain.RelationRelated, TargetID: lastSegment(rel.URL), Comment: rel.Attributes.Comment,
			})
		case "Pull Request":
			// vstfs:///Git/PullRequestId/{project}%2F{repository}%2F{id}
			if id := lastSegment(strings.ReplaceAll(rel.URL, "%2F", "/")); id != "" {
				issue.ClosedBy = append(issue.ClosedBy, id)
			}
		}
	}

	for _, r := range revisions {
		issue.Revisions = append(issue.Revisions, domain.Revision{
			Rev:       r.Rev,
			State:     r.Fields.State,
			ChangedAt: r.Fields.ChangedDate,
			ChangedBy: r.Fields.ChangedBy.actor(),
		})
	}
	return issue
}

func lastSegment(u string) string {
	return u[strings.LastIndex(u, "/")+1:]
}

// convertPullRequest converts a pull request, its threads and commits.
func convertPullRequest(pr azurePullRequest, threads []azureThread, commits []azureCommit, project string) domain.MergeRequest {
	mr := domain.MergeRequest{
		ID:           strconv.Itoa(pr.PullRequestID),
		Title:        pr.Title,
		Description:  pr.Description,
		State:        pr.Status,
		IsDraft:      pr.IsDraft,
		SourceBranch: pr.SourceRefName,
		TargetBranch: pr.TargetRefName,
		Author:       pr.CreatedBy.actor(),
		CreatedAt:    pr.CreationDate,
		WebURL:       pr.URL,
		ProjectID:    project,
	}
	if pr.LastMergeSourceCommit != nil {
		mr.PreMergeSHA = pr.LastMergeSourceCommit.CommitID
	}
	if pr.LastMergeCommit != nil {
		mr.PostMergeSHA = pr.LastMergeCommit.CommitID
	}

	for _, thread := range threads {
		for _, comment := range thread.Comments {
			mr.Activities = append(mr.Activities, convertComment(comment))
		}
	}
	for _, azc := range commits {
		mr.Commits = append(mr.Commits, convertCommit(azc))
	}
	return mr
}

// convertComment classifies a thread comment. System comments ending in a
// number are votes; status texts are completion and abandonment.
func convertComment(comment azureComment) domain.MRActivity {
	activity := domain.MRActivity{
		ID:    strconv.Itoa(comment.ID),
		Kind:  domain.ActivityUnknown,
		Actor: comment.Author.actor(),
		At:    comment.PublishedDate,
	}

	switch comment.CommentType {
	case "system":
		if m := reviewPattern.FindStringSubmatch(comment.Content); m != nil {
			vote, _ := strconv.Atoi(m[1])
			activity.Kind = domain.ActivityVote
			activity.Vote = vote
		} else if completedPattern.MatchString(comment.Content) {
			activity.Kind = domain.ActivityCompleted
		} else if abandonedPattern.MatchString(comment.Content) {
			activity.Kind = domain.ActivityAbandoned
		}
	case "text":
		activity.Kind = domain.ActivityComment
	}
	return activity
}

func convertCommit(azc azureCommit) domain.Commit {
	return domain.Commit{
		SHA:       azc.CommitID,
		Message:   azc.Comment,
		Author:    domain.Actor{ID: azc.Author.Email, Name: azc.Author.Name},
		CreatedAt: azc.Author.Date,
	}
}

// convertBuild converts a build. Builds carry no stages here, so their own
// finish time is the completion time.
func convertBuild(b azureBuild, project string) domain.Pipeline {
	return domain.Pipeline{
		ID:             strconv.Itoa(b.ID),
		Kind:           domain.KindPipeline,
		DefinitionID:   strconv.Itoa(b.Definition.ID),
		DefinitionName: b.Definition.Name,
		Name:           b.BuildNumber,
		ProjectID:      project,
		SHA:            b.SourceVersion,
		Branch:         b.SourceBranch,
		Status:         convertBuildStatus(b.Status, b.Result),
		Trigger:        b.Reason,
		Author:         b.RequestedFor.actor(),
		CreatedAt:      firstNonEmpty(b.StartTime, b.QueueTime),
		FinishedAt:     b.FinishTime,
	}
}

// convertRelease converts a release detail. Every deployment job becomes a
// stage, so completion is the latest job finish time.
func convertRelease(r azureRelease, project string) domain.Pipeline {
	p := domain.Pipeline{
		ID:             strconv.Itoa(r.ID),
		Kind:           domain.KindRelease,
		DefinitionID:   strconv.Itoa(r.ReleaseDefinition.ID),
		DefinitionName: r.ReleaseDefinition.Name,
		Name:           r.Name,
		ProjectID:      project,
		Status:         convertReleaseStatus(r.Status),
		Trigger:        r.Reason,
		Author:         r.CreatedBy.actor(),
		CreatedAt:      r.CreatedOn,
	}

	for _, artifact := range r.Artifacts {
		if artifact.Type == "Git" && artifact.IsPrimary {
			p.SHA = artifact.DefinitionReference.Version.ID
			p.Branch = artifact.DefinitionReference.Branch.Name
		}
	}

	for _, env := range r.Environments {
		for _, step := range env.DeploySteps {
			for _, phase := range step.ReleaseDeployPhases {
				for _, dj := range phase.DeploymentJobs {
					p.Stages = append(p.Stages, domain.Stage{
						ID:         strconv.Itoa(dj.Job.ID),
						Name:       env.Name + "/" + dj.Job.Name,
						Status:     convertReleaseStatus(dj.Job.Status),
						StartedAt:  dj.Job.StartTime,
						FinishedAt: dj.Job.FinishTime,
					})
				}
			}
		}
	}
	return p
}

func convertBuildStatus(status, result string) domain.Status {
	switch status {
	case "notStarted", "postponed":
		return domain.StatusPending
	case "inProgress", "cancelling":
		return domain.StatusRunning
	}
	switch result {
	case "succeeded", "partiallySucceeded":
		return domain.StatusSuccess
	case "failed":
		return domain.StatusFailed
	case "canceled":
		return domain.StatusCanceled
	}
	return domain.Status(status)
}

func convertReleaseStatus(status string) domain.Status {
	switch strings.ToLower(status) {
	case "succeeded", "partiallysucceeded":
		return domain.StatusSuccess
	case "failed", "rejected":
		return domain.StatusFailed
	case "canceled":
		return domain.StatusCanceled
	case "inprogress", "active":
		return domain.StatusRunning
	case "pending", "queued", "notstarted", "draft":
		return domain.StatusPending
	case "skipped":
		return domain.StatusSkipped
	}
	return domain.Status(status)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Azure DevOps API response types
type azureList[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

type azureIdentity struct {
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName"`
}

// actor identifies people by their unique name (usually the email).
func (i *azureIdentity) actor() domain.Actor {
	if i == nil {
		return domain.Actor{}
	}
	return domain.Actor{ID: i.UniqueName, Name: i.DisplayName}
}

type azureProject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type azureWiql struct {
	Query string `json:"query"`
}

type azureWiqlResult struct {
	WorkItems []struct {
		ID int `json:"id"`
	} `json:"workItems"`
}

type azureFields struct {
	ID           int            `json:"System.Id"`
	Title        string         `json:"System.Title"`
	Description  string         `json:"System.Description"`
	WorkItemType string         `json:"System.WorkItemType"`
	State        string         `json:"System.State"`
	CreatedDate  string         `json:"System.CreatedDate"`
	ChangedDate  string         `json:"System.ChangedDate"`
	CreatedBy    *azureIdentity `json:"System.CreatedBy"`
	ChangedBy    *azureIdentity `json:"System.ChangedBy"`
}

type azureRelation struct {
	Rel        string `json:"rel"`
	URL        string `json:"url"`
	Attributes struct {
		Name    string `json:"name"`
		Comment string `json:"comment"`
	} `json:"attributes"`
}

type azureWorkItem struct {
	ID        int             `json:"id"`
	Rev       int             `json:"rev"`
	URL       string          `json:"url"`
	Fields    azureFields     `json:"fields"`
	Relations []azureRelation `json:"relations"`
}

type azureRevision struct {
	Rev    int         `json:"rev"`
	Fields azureFields `json:"fields"`
}

type azureRepository struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type azureCommitRef struct {
	CommitID string `json:"commitId"`
}

type azurePullRequest struct {
	PullRequestID         int             `json:"pullRequestId"`
	Repository            azureRepository `json:"repository"`
	Title                 string          `json:"title"`
	Description           string          `json:"description"`
	Status                string          `json:"status"`
	IsDraft               bool            `json:"isDraft"`
	CreatedBy             *azureIdentity  `json:"createdBy"`
	CreationDate          string          `json:"creationDate"`
	SourceRefName         string          `json:"sourceRefName"`
	TargetRefName         string          `json:"targetRefName"`
	LastMergeSourceCommit *azureCommitRef `json:"lastMergeSourceCommit"`
	LastMergeCommit       *azureCommitRef `json:"lastMergeCommit"`
	URL                   string          `json:"url"`
}

type azureComment struct {
	ID            int            `json:"id"`
	Content       string         `json:"content"`
	CommentType   string         `json:"commentType"`
	PublishedDate string         `json:"publishedDate"`
	Author        *azureIdentity `json:"author"`
}

type azureThread struct {
	ID       int            `json:"id"`
	Comments []azureComment `json:"comments"`
}

type azureCommit struct {
	CommitID string `json:"commitId"`
	Comment  string `json:"comment"`
	Author   struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Date  string `json:"date"`
	} `json:"author"`
}

type azureDefinition struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	CreatedDate string         `json:"createdDate"`
	AuthoredBy  *azureIdentity `json:"authoredBy"`
	CreatedOn   string         `json:"createdOn"`
	CreatedBy   *azureIdentity `json:"createdBy"`
}

type azureBuild struct {
	ID          int    `json:"id"`
	BuildNumber string `json:"buildNumber"`
	Definition  struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"definition"`
	Status        string         `json:"status"`
	Result        string         `json:"result"`
	Reason        string         `json:"reason"`
	QueueTime     string         `json:"queueTime"`
	StartTime     string         `json:"startTime"`
	FinishTime    string         `json:"finishTime"`
	SourceBranch  string         `json:"sourceBranch"`
	SourceVersion string         `json:"sourceVersion"`
	RequestedFor  *azureIdentity `json:"requestedFor"`
}

type azureRelease struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	Status            string `json:"status"`
	Reason            string `json:"reason"`
	CreatedOn         string `json:"createdOn"`
	ReleaseDefinition struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"releaseDefinition"`
	CreatedBy *azureIdentity `json:"createdBy"`
	Artifacts []struct {
		Type                string `json:"type"`
		IsPrimary           bool   `json:"isPrimary"`
		DefinitionReference struct {
			Version struct {
				ID string `json:"id"`
			} `json:"version"`
			Branch struct {
				Name string `json:"name"`
			} `json:"branch"`
		} `json:"definitionReference"`
	} `json:"artifacts"`
	Environments []struct {
		Name        string `json:"name"`
		DeploySteps []struct {
			ReleaseDeployPhases []struct {
				DeploymentJobs []struct {
					Job struct {
						ID         int    `json:"id"`
						Name       string `json:"name"`
						Status     string `json:"status"`
						StartTime  string `json:"startTime"`
						FinishTime string `json:"finishTime"`
					} `json:"job"`
				} `json:"deploymentJobs"`
			} `json:"releaseDeployPhases"`
		} `json:"deploySteps"`
	} `json:"environments"`
}
