package correlation

import (
	"errors"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vilaca/alm-eventlog/internal/domain"
	"github.com/vilaca/alm-eventlog/internal/eventlog"
	"github.com/vilaca/alm-eventlog/internal/logging"
)

var (
	una = domain.Actor{ID: "u1", Name: "Una"}
	dev = domain.Actor{ID: "dev@example.com", Name: "Dev"}
	bot = domain.Actor{ID: "ci", Name: "CI Bot"}
)

type step struct {
	Action string
	Case   string
}

func steps(events []eventlog.Event) []step {
	out := make([]step, 0, len(events))
	for _, ev := range events {
		out = append(out, step{Action: ev.Action, Case: ev.Case})
	}
	return out
}

func mustRun(t *testing.T, e *Engine, b Batches) *Result {
	t.Helper()
	res, err := e.Run(b)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return res
}

// TestEngine_PropagatesIssueCase tests that a closing link carries the issue
// case through the merge request, its pre-merge commit and the pipeline.
func TestEngine_PropagatesIssueCase(t *testing.T) {
	// Arrange
	e := newGitLabEngine()
	batches := Batches{
		Issues: []domain.Issue{{
			ID: "42", GlobalID: "1042", Type: "issue", Author: una,
			CreatedAt: "2024-01-01T09:00:00Z", ClosedBy: []string{"9"},
		}},
		MergeRequests: []domain.MergeRequest{{
			ID: "9", Author: dev, CreatedAt: "2024-01-02T09:00:00Z",
			SourceBranch: "42-fix", TargetBranch: "main",
			PreMergeSHA: "c1a2b3d4e5f6",
			Commits: []domain.Commit{
				{SHA: "c1a2b3d4e5f6", Author: dev, CreatedAt: "2024-01-02T08:00:00Z"},
			},
			Activities: []domain.MRActivity{
				{Kind: domain.ActivityMerged, Actor: una, At: "2024-01-03T09:00:00Z"},
			},
		}},
		Pipelines: []domain.Pipeline{{
			ID: "500", SHA: "c1a2b3d4e5f6", Author: bot, Status: domain.StatusSuccess,
			CreatedAt: "2024-01-02T09:05:00Z", FinishedAt: "2024-01-02T09:10:00Z",
		}},
	}

	// Act
	res := mustRun(t, e, batches)

	// Assert
	want := []step{
		{"gl_issue_created", "GLI-77-42"},
		{"gl_MR_created", "GLI-77-42"},
		{"gl_MR_merged", "GLI-77-42"},
		{"gl_commit", "GLI-77-42"},
		{"gl_PL_created", "GLI-77-42"},
		{"gl_PL_completed", "GLI-77-42"},
	}
	if diff := cmp.Diff(want, steps(res.Events)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	if res.MergeRequests[0].LinkType != LinkMR {
		t.Errorf("expected MR link type %q, got %q", LinkMR, res.MergeRequests[0].LinkType)
	}
	commit := res.Commits[0]
	if commit.LinkType != LinkPreMerge || commit.ChosenMR != "9" {
		t.Errorf("expected pre-merge via MR 9, got %q via %q", commit.LinkType, commit.ChosenMR)
	}
	if res.Pipelines[0].LinkType != LinkPreMerge {
		t.Errorf("expected pipeline to inherit %q, got %q", LinkPreMerge, res.Pipelines[0].LinkType)
	}
	if res.Pipelines[0].Duration != 300 {
		t.Errorf("expected duration 300, got %v", res.Pipelines[0].Duration)
	}

	for _, ev := range res.Events {
		if ev.Namespace != "77" {
			t.Errorf("expected namespace 77 on %s, got %q", ev.Action, ev.Namespace)
		}
	}
	if res.Events[0].ID != "1042" {
		t.Errorf("expected issue event to use global id, got %q", res.Events[0].ID)
	}
	if res.Events[3].Info1 != RolePreMerge || res.Events[3].LocalCase != "GLC-77-c1a2b3" {
		t.Errorf("unexpected commit event %+v", res.Events[3])
	}
	if res.Users["dev@example.com"] != "Dev" {
		t.Errorf("expected user registry to carry commit author, got %v", res.Users)
	}
}

// TestEngine_AmbiguousMentions tests that an MR mentioned by two issues roots
// its own case.
func TestEngine_AmbiguousMentions(t *testing.T) {
	// Arrange
	e := newGitLabEngine()
	note := func(id string) domain.Note {
		return domain.Note{ID: id, Body: "mentioned in merge request !10", Author: una, CreatedAt: "2024-01-05T09:00:00Z", System: true}
	}
	batches := Batches{
		Issues: []domain.Issue{
			{ID: "1", Author: una, CreatedAt: "2024-01-01T09:00:00Z", Notes: []domain.Note{note("n1")}},
			{ID: "2", Author: una, CreatedAt: "2024-01-02T09:00:00Z", Notes: []domain.Note{note("n2")}},
		},
		MergeRequests: []domain.MergeRequest{
			{ID: "10", Author: dev, CreatedAt: "2024-01-04T09:00:00Z"},
		},
	}

	// Act
	res := mustRun(t, e, batches)

	// Assert
	mr := res.MergeRequests[0]
	if mr.CaseID != "MR-77-10" || mr.LinkType != LinkUndefined {
		t.Errorf("expected MR-77-10/undefined, got %s/%s", mr.CaseID, mr.LinkType)
	}
	if diff := cmp.Diff([]string{"1", "2"}, mr.MentionedIssues); diff != "" {
		t.Errorf("mentioned issues mismatch (-want +got):\n%s", diff)
	}
}

// TestEngine_SingleMention tests that one mention is accepted as a weak link.
func TestEngine_SingleMention(t *testing.T) {
	e := newGitLabEngine()
	batches := Batches{
		Issues: []domain.Issue{{
			ID: "3", Author: una, CreatedAt: "2024-01-01T09:00:00Z",
			Notes: []domain.Note{{ID: "n1", Body: "mentioned in merge request !11", Author: una, CreatedAt: "2024-01-05T09:00:00Z"}},
		}},
		MergeRequests: []domain.MergeRequest{{ID: "11", Author: dev, CreatedAt: "2024-01-04T09:00:00Z"}},
	}

	res := mustRun(t, e, batches)

	if res.MergeRequests[0].CaseID != "GLI-77-3" || res.MergeRequests[0].LinkType != LinkMention {
		t.Errorf("expected GLI-77-3/mr_mention, got %+v", res.MergeRequests[0])
	}
}

// TestEngine_OrphanCommit tests a history commit unrelated to any MR.
func TestEngine_OrphanCommit(t *testing.T) {
	// Arrange
	e := newGitLabEngine()
	batches := Batches{
		Commits: []domain.Commit{
			{SHA: "deadbeefcafe", Author: dev, CreatedAt: "2024-02-01T09:00:00Z", Message: "hotfix"},
		},
	}

	// Act
	res := mustRun(t, e, batches)

	// Assert
	if len(res.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(res.Events))
	}
	ev := res.Events[0]
	if ev.Case != "GLC-77-deadbe" || ev.LocalCase != "GLC-77-deadbe" {
		t.Errorf("expected self-rooted commit case, got case=%q local=%q", ev.Case, ev.LocalCase)
	}
	if res.Commits[0].LinkType != LinkUndefined || res.Commits[0].Message != "hotfix" {
		t.Errorf("unexpected commit record %+v", res.Commits[0])
	}
}

// TestEngine_SharedCommitEmittedOnce tests that a commit listed by two MRs and
// the history yields one event, resolved to the latest MR.
func TestEngine_SharedCommitEmittedOnce(t *testing.T) {
	// Arrange
	e := newGitLabEngine()
	shared := domain.Commit{SHA: "aaaaaa111111", Author: dev, CreatedAt: "2024-01-01T08:00:00Z", Message: "from mr"}
	batches := Batches{
		MergeRequests: []domain.MergeRequest{
			{ID: "1", Author: dev, CreatedAt: "2024-01-01T09:00:00Z", Commits: []domain.Commit{shared}},
			{ID: "2", Author: dev, CreatedAt: "2024-01-02T09:00:00Z", Commits: []domain.Commit{shared}},
		},
		Commits: []domain.Commit{
			{SHA: "aaaaaa111111", Author: una, CreatedAt: "2024-01-01T08:00:00Z", Message: "from history"},
		},
	}

	// Act
	res := mustRun(t, e, batches)

	// Assert
	var commitEvents int
	for _, ev := range res.Events {
		if ev.Action == "gl_commit" {
			commitEvents++
			if ev.Case != "MR-77-2" || ev.User != dev.ID {
				t.Errorf("unexpected commit event %+v", ev)
			}
		}
	}
	if commitEvents != 1 {
		t.Errorf("expected 1 commit event, got %d", commitEvents)
	}
	if res.Commits[0].LinkType != LinkCommitRelated || res.Commits[0].Message != "from mr" {
		t.Errorf("unexpected commit record %+v", res.Commits[0])
	}
}

// TestEngine_IssueStateChanges tests revision driven state events.
func TestEngine_IssueStateChanges(t *testing.T) {
	// Arrange
	e := NewEngine(Options{Namespace: "abc1234", Prefixes: DefaultPrefixes(domain.PlatformAzure)}, logging.Discard())
	batches := Batches{
		Issues: []domain.Issue{{
			ID: "7", Author: una, CreatedAt: "2024-01-01T09:00:00Z",
			Revisions: []domain.Revision{
				{Rev: 3, State: "Closed", ChangedAt: "2024-01-03T09:00:00Z", ChangedBy: dev},
				{Rev: 1, State: "New", ChangedAt: "2024-01-01T09:00:00Z", ChangedBy: una},
				{Rev: 2, State: "Active", ChangedAt: "2024-01-02T09:00:00Z", ChangedBy: dev},
				{Rev: 4, State: "Closed", ChangedAt: "2024-01-04T09:00:00Z", ChangedBy: dev},
			},
		}},
	}

	// Act
	res := mustRun(t, e, batches)

	// Assert
	got := make([][2]string, 0, len(res.Events))
	for _, ev := range res.Events {
		got = append(got, [2]string{ev.ID, ev.Action})
	}
	want := [][2]string{
		{"7", "AZD_issue_created"},
		{"AZI-abc1234-7-2", "AZD_issue_Active"},
		{"AZI-abc1234-7-3", "AZD_issue_Closed"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

// TestEngine_IssueNotes tests assignment, branch and issue mention notes.
func TestEngine_IssueNotes(t *testing.T) {
	// Arrange
	e := newGitLabEngine()
	batches := Batches{
		Issues: []domain.Issue{{
			ID: "5", Author: una, CreatedAt: "2024-01-01T09:00:00Z",
			Notes: []domain.Note{
				{ID: "n1", Body: "assigned to @dev", Author: una, CreatedAt: "2024-01-01T10:00:00Z"},
				{ID: "n2", Body: "created branch `5-login` to address this issue", Author: dev, CreatedAt: "2024-01-01T11:00:00Z"},
				{ID: "n3", Body: "mentioned in issue #8", Author: dev, CreatedAt: "2024-01-01T12:00:00Z"},
				{ID: "n4", Body: "mentioned in issue #5", Author: dev, CreatedAt: "2024-01-01T12:00:00Z"},
			},
		}},
	}

	// Act
	res := mustRun(t, e, batches)

	// Assert
	if len(res.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(res.Events))
	}
	branch := res.Events[2]
	if branch.Action != "gl_branch_created" || branch.LocalCase != "GLB-77-5-login" || branch.Case != "GLI-77-5" {
		t.Errorf("unexpected branch event %+v", branch)
	}
	if res.Events[1].Action != "gl_issue_assigned" {
		t.Errorf("expected assignment event, got %s", res.Events[1].Action)
	}
	record := res.Issues[0]
	if diff := cmp.Diff([]string{"5-login"}, record.Branches); diff != "" {
		t.Errorf("branches mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"8"}, record.MentionedIssues); diff != "" {
		t.Errorf("mentioned issues mismatch (-want +got):\n%s", diff)
	}
}

// TestEngine_WorkItemRelations tests related links carrying a mention comment.
func TestEngine_WorkItemRelations(t *testing.T) {
	e := newGitLabEngine()
	batches := Batches{
		Issues: []domain.Issue{{
			ID: "5", Author: una, CreatedAt: "2024-01-01T09:00:00Z",
			Relations: []domain.Relation{
				{Kind: domain.RelationRelated, TargetID: "9", Comment: "mentioned work item #9"},
				{Kind: domain.RelationRelated, TargetID: "10", Comment: "manual link"},
				{Kind: domain.RelationParent, TargetID: "11", Comment: "mentioned work item #11"},
			},
		}},
	}

	res := mustRun(t, e, batches)

	if diff := cmp.Diff([]string{"9"}, res.Issues[0].MentionedIssues); diff != "" {
		t.Errorf("mentioned issues mismatch (-want +got):\n%s", diff)
	}
}

// TestEngine_SkipsMalformedEntities tests that a broken entity does not stop
// the phase.
func TestEngine_SkipsMalformedEntities(t *testing.T) {
	// Arrange
	e := newGitLabEngine()
	batches := Batches{
		Issues: []domain.Issue{
			{ID: "1", CreatedAt: "2024-01-01T09:00:00Z"},
			{ID: "2", Author: una, CreatedAt: "2024-01-01T09:00:00Z"},
		},
		MergeRequests: []domain.MergeRequest{{Author: dev, CreatedAt: "2024-01-01T09:00:00Z"}},
		Pipelines:     []domain.Pipeline{{ID: "9"}},
	}

	// Act
	res := mustRun(t, e, batches)

	// Assert
	if res.Skipped != 3 {
		t.Errorf("expected 3 skipped entities, got %d", res.Skipped)
	}
	if len(res.Issues) != 1 || res.Issues[0].ID != "2" {
		t.Errorf("expected only issue 2 recorded, got %+v", res.Issues)
	}
}

// TestEngine_DropsInvalidEvents tests that an activity without actor loses its
// event but not the merge request.
func TestEngine_DropsInvalidEvents(t *testing.T) {
	e := newGitLabEngine()
	batches := Batches{
		MergeRequests: []domain.MergeRequest{{
			ID: "3", Author: dev, CreatedAt: "2024-01-01T09:00:00Z",
			Activities: []domain.MRActivity{
				{Kind: domain.ActivityClosed, At: "2024-01-02T09:00:00Z"},
				{Kind: domain.ActivityClosed, Actor: una, At: "yesterday"},
			},
		}},
	}

	res := mustRun(t, e, batches)

	if len(res.Events) != 1 || res.Events[0].Action != "gl_MR_created" {
		t.Errorf("expected only MR_created, got %+v", steps(res.Events))
	}
	if len(res.MergeRequests) != 1 {
		t.Errorf("expected MR record, got %d", len(res.MergeRequests))
	}
}

// TestEngine_VoteActions tests the vote to action mapping.
func TestEngine_VoteActions(t *testing.T) {
	tests := []struct {
		vote int
		want string
	}{
		{10, "AZD_MR_approved"},
		{5, "AZD_MR_appr_sug"},
		{0, "AZD_MR_vote_reset"},
		{-5, "AZD_MR_wait_author"},
		{-10, "AZD_MR_rejected"},
		{7, "AZD_MR_comment_UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			e := NewEngine(Options{Namespace: "abc1234", Prefixes: DefaultPrefixes(domain.PlatformAzure)}, logging.Discard())
			batches := Batches{
				MergeRequests: []domain.MergeRequest{{
					ID: "3", Author: dev, CreatedAt: "2024-01-01T09:00:00Z",
					Activities: []domain.MRActivity{
						{Kind: domain.ActivityVote, Vote: tt.vote, Actor: una, At: "2024-01-02T09:00:00Z"},
					},
				}},
			}

			res := mustRun(t, e, batches)

			if got := res.Events[1].Action; got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestEngine_PipelineStages tests job events and completion from stages.
func TestEngine_PipelineStages(t *testing.T) {
	// Arrange
	e := newGitLabEngine()
	batches := Batches{
		Pipelines: []domain.Pipeline{{
			ID: "600", DefinitionID: "3", DefinitionName: "build", Author: bot,
			Status: domain.StatusFailed, CreatedAt: "2024-01-01T09:00:00Z",
			Stages: []domain.Stage{
				{ID: "j1", Name: "compile", Status: domain.StatusSuccess, StartedAt: "2024-01-01T09:01:00Z", FinishedAt: "2024-01-01T09:05:00Z", Actor: dev},
				{ID: "j2", Name: "test", Status: domain.StatusFailed, StartedAt: "2024-01-01T09:05:00Z", FinishedAt: "2024-01-01T09:10:00Z"},
				{ID: "j3", Name: "deploy", Status: domain.StatusSkipped},
			},
		}},
	}

	// Act
	res := mustRun(t, e, batches)

	// Assert
	want := []step{
		{"gl_PL_created", "GLPL-77-600"},
		{"gl_job_started", "GLPL-77-600"},
		{"gl_job_started", "GLPL-77-600"},
		{"gl_PL_completed", "GLPL-77-600"},
	}
	if diff := cmp.Diff(want, steps(res.Events)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if res.Events[1].User != dev.ID || res.Events[2].User != bot.ID {
		t.Errorf("unexpected stage actors %q, %q", res.Events[1].User, res.Events[2].User)
	}
	completed := res.Events[3]
	if completed.Time != "2024-01-01T09:10:00Z" || completed.Duration != 600 {
		t.Errorf("unexpected completion %+v", completed)
	}
	if completed.LocalCase != "GLPL-77-3" {
		t.Errorf("expected local case from definition, got %q", completed.LocalCase)
	}
}

// TestEngine_PipelineWithoutFinish tests that an unfinished run has no
// completion event.
func TestEngine_PipelineWithoutFinish(t *testing.T) {
	e := newGitLabEngine()
	batches := Batches{
		Pipelines: []domain.Pipeline{{
			ID: "601", Kind: domain.KindRelease, Author: bot, Status: domain.StatusRunning,
			CreatedAt: "2024-01-01T09:00:00Z",
		}},
	}

	res := mustRun(t, e, batches)

	if diff := cmp.Diff([]step{{"gl_REL_created", "GLR-77-601"}}, steps(res.Events)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if res.Pipelines[0].Duration != 0 {
		t.Errorf("expected zero duration, got %v", res.Pipelines[0].Duration)
	}
}

// TestEngine_PipelineStillRunning tests that finished stages of a running
// pipeline do not complete it.
func TestEngine_PipelineStillRunning(t *testing.T) {
	// Arrange
	e := newGitLabEngine()
	batches := Batches{
		Pipelines: []domain.Pipeline{{
			ID: "602", Author: bot, Status: domain.StatusRunning, CreatedAt: "2024-01-01T09:00:00Z",
			Stages: []domain.Stage{
				{ID: "j1", Name: "build", Status: domain.StatusSuccess, StartedAt: "2024-01-01T09:00:00Z", FinishedAt: "2024-01-01T09:02:00Z"},
				{ID: "j2", Name: "test", Status: domain.StatusRunning, StartedAt: "2024-01-01T09:03:00Z"},
			},
		}},
	}

	// Act
	res := mustRun(t, e, batches)

	// Assert
	want := []step{
		{"gl_PL_created", "GLPL-77-602"},
		{"gl_job_started", "GLPL-77-602"},
		{"gl_job_started", "GLPL-77-602"},
	}
	if diff := cmp.Diff(want, steps(res.Events)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if res.Pipelines[0].Duration != 0 {
		t.Errorf("expected zero duration, got %v", res.Pipelines[0].Duration)
	}
}

// TestEngine_Definitions tests definition events scoped to their own case.
func TestEngine_Definitions(t *testing.T) {
	e := newGitLabEngine()
	batches := Batches{
		Definitions: []domain.PipelineDefinition{
			{ID: "3", Kind: domain.KindPipeline, Name: "build", Author: dev, CreatedAt: "2023-12-01T09:00:00Z"},
			{ID: "4", Kind: domain.KindRelease, Name: "prod", Author: dev, CreatedAt: "2023-12-02T09:00:00Z"},
		},
	}

	res := mustRun(t, e, batches)

	want := []step{{"gl_PL_defined", "GLPL-77-3"}, {"gl_REL_defined", "GLR-77-4"}}
	if diff := cmp.Diff(want, steps(res.Events)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

// TestEngine_ExtIssuePattern tests external issue extraction.
func TestEngine_ExtIssuePattern(t *testing.T) {
	e := NewEngine(Options{
		Namespace:       "77",
		Prefixes:        DefaultPrefixes(domain.PlatformGitLab),
		ExtIssuePattern: regexp.MustCompile(`([A-Z]+-\d+)`),
	}, logging.Discard())
	batches := Batches{
		Issues:        []domain.Issue{{ID: "1", Title: "Fix OPS-12 login", Author: una, CreatedAt: "2024-01-01T09:00:00Z"}},
		MergeRequests: []domain.MergeRequest{{ID: "2", Title: "no ref", Author: dev, CreatedAt: "2024-01-01T09:00:00Z"}},
	}

	res := mustRun(t, e, batches)

	if res.Issues[0].ExtIssueID != "OPS-12" {
		t.Errorf("expected OPS-12, got %q", res.Issues[0].ExtIssueID)
	}
	if res.MergeRequests[0].ExtIssueID != "" {
		t.Errorf("expected no external id, got %q", res.MergeRequests[0].ExtIssueID)
	}
}

// TestEngine_RunTwice tests that an engine is single-use.
func TestEngine_RunTwice(t *testing.T) {
	e := newGitLabEngine()
	mustRun(t, e, Batches{})

	_, err := e.Run(Batches{})

	if !errors.Is(err, ErrPhaseOrder) {
		t.Errorf("expected ErrPhaseOrder, got %v", err)
	}
}

// TestCompletionTime tests the completion time rules.
func TestCompletionTime(t *testing.T) {
	tests := []struct {
		name string
		run  domain.Pipeline
		want string
	}{
		{"no stages uses run finish", domain.Pipeline{Status: domain.StatusSuccess, FinishedAt: "2024-01-01T09:00:00Z"}, "2024-01-01T09:00:00Z"},
		{"latest stage finish", domain.Pipeline{Status: domain.StatusFailed, FinishedAt: "2024-01-01T08:00:00Z", Stages: []domain.Stage{
			{FinishedAt: "2024-01-01T09:30:00Z"}, {FinishedAt: "2024-01-01T09:45:00Z"}, {},
		}}, "2024-01-01T09:45:00Z"},
		{"stages without finish", domain.Pipeline{Status: domain.StatusCanceled, FinishedAt: "2024-01-01T08:00:00Z", Stages: []domain.Stage{{}}}, ""},
		{"not finished", domain.Pipeline{Status: domain.StatusSuccess}, ""},
		{"running run", domain.Pipeline{Status: domain.StatusRunning, FinishedAt: "2024-01-01T09:00:00Z"}, ""},
		{"unknown status", domain.Pipeline{Status: "manual", FinishedAt: "2024-01-01T09:00:00Z"}, ""},
		{"started stage still open", domain.Pipeline{Status: domain.StatusSuccess, Stages: []domain.Stage{
			{StartedAt: "2024-01-01T09:00:00Z", FinishedAt: "2024-01-01T09:02:00Z"},
			{StartedAt: "2024-01-01T09:03:00Z"},
		}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompletionTime(tt.run); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestEntityError tests unwrapping of skipped entity errors.
func TestEntityError(t *testing.T) {
	err := &EntityError{Kind: KindIssue, ID: "4", Err: missing("author")}

	if !errors.Is(err, ErrMissingField) {
		t.Error("expected error to wrap ErrMissingField")
	}
	if err.Error() != "issue 4: missing field: author" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
