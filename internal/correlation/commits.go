package correlation

import (
	"github.com/vilaca/alm-eventlog/internal/domain"
	"github.com/vilaca/alm-eventlog/internal/eventlog"
)

// ProcessCommits runs the commits phase over every commit buffered by the
// merge request phase plus the repository history in history. History entries
// never override metadata already buffered from a merge request.
func (e *Engine) ProcessCommits(history []domain.Commit) error {
	if err := e.ctx.begin(PhaseCommits); err != nil {
		return err
	}

	for _, commit := range history {
		if commit.SHA == "" {
			continue
		}
		if _, seen := e.ctx.pending[commit.SHA]; seen {
			continue
		}
		e.ctx.bufferCommit(commit.SHA, pendingCommit{
			time:    commit.CreatedAt,
			user:    commit.Author.ID,
			userRef: commit.Author.Name,
			message: commit.Message,
		})
	}

	e.logger.Infof("analysing %d commits for project %s", len(e.ctx.pendingOrder), e.opts.ProjectID)
	before := e.log.Total()

	for i, sha := range e.ctx.pendingOrder {
		e.guard(KindCommit, sha, func() error { return e.processCommit(sha) })
		e.progress(KindCommit, i+1, len(e.ctx.pendingOrder))
	}

	e.ctx.finish(PhaseCommits)
	e.logger.Infof("number of commit events found: %d", e.log.Total()-before)
	return nil
}

func (e *Engine) processCommit(sha string) error {
	pc := e.ctx.pending[sha]
	res, err := e.FindCaseIDForCommit(sha)
	if err != nil {
		return err
	}
	e.ctx.setCommitCase(sha, res.CaseID, res.LinkType)

	e.addEvent(eventlog.Event{
		ID:        sha,
		Action:    e.gen.Action("commit"),
		Time:      pc.time,
		Case:      res.CaseID,
		User:      pc.user,
		UserRef:   pc.userRef,
		LocalCase: e.gen.Generate(shortSHA(sha), KindCommit),
		Info1:     pc.role,
	})

	e.commits = append(e.commits, CommitRecord{
		ID:          sha,
		Author:      pc.user,
		CreatedTime: pc.time,
		Message:     pc.message,
		ProjectID:   e.opts.ProjectID,
		PreMerge:    e.ctx.commitPreMerge.Get(sha),
		PostMerge:   e.ctx.commitPostMerge.Get(sha),
		CommitList:  e.ctx.commitInMR.Get(sha),
		ChosenMR:    res.Via,
		CaseID:      res.CaseID,
		LinkType:    res.LinkType,
	})
	return nil
}
