package correlation

import (
	"github.com/vilaca/alm-eventlog/internal/domain"
	"github.com/vilaca/alm-eventlog/internal/eventlog"
)

// ProcessPipelines runs the last phase. Definitions are scoped to their own
// local case; each run inherits the case of its triggering commit.
func (e *Engine) ProcessPipelines(defs []domain.PipelineDefinition, runs []domain.Pipeline) error {
	if err := e.ctx.begin(PhasePipelines); err != nil {
		return err
	}
	e.logger.Infof("scanning %d definitions and %d runs in project %s", len(defs), len(runs), e.opts.ProjectID)
	before := e.log.Total()

	for _, def := range defs {
		e.guard(pipelineKind(def.Kind), def.ID, func() error { return e.processDefinition(def) })
	}
	for i, run := range runs {
		e.guard(pipelineKind(run.Kind), run.ID, func() error { return e.processPipeline(run) })
		e.progress(KindPipeline, i+1, len(runs))
	}

	e.ctx.finish(PhasePipelines)
	e.logger.Infof("number of pipeline related events found: %d", e.log.Total()-before)
	return nil
}

func pipelineKind(k domain.PipelineKind) Kind {
	if k == domain.KindRelease {
		return KindRelease
	}
	return KindPipeline
}

func actionStem(kind Kind) string {
	if kind == KindRelease {
		return "REL"
	}
	return "PL"
}

func (e *Engine) processDefinition(def domain.PipelineDefinition) error {
	if def.ID == "" {
		return missing("id")
	}
	kind := pipelineKind(def.Kind)
	localCase := e.gen.Generate(def.ID, kind)
	e.addEvent(eventlog.Event{
		ID:        def.ID,
		Action:    e.gen.Action(actionStem(kind) + "_defined"),
		Time:      def.CreatedAt,
		Case:      localCase,
		User:      def.Author.ID,
		UserRef:   def.Author.Name,
		LocalCase: localCase,
		Info1:     def.Name,
	})
	return nil
}

// CompletionTime returns when a run completed: the latest stage finish time
// for multi-stage runs, otherwise the run's own finish time. "" means the run
// has not completed: its status is not final or a started stage is still open.
func CompletionTime(run domain.Pipeline) string {
	if !run.Status.IsTerminal() && run.Status != domain.StatusSkipped {
		return ""
	}
	if len(run.Stages) == 0 {
		return run.FinishedAt
	}
	finished := make([]string, 0, len(run.Stages))
	for _, s := range run.Stages {
		if s.FinishedAt == "" {
			if s.StartedAt != "" || s.Status == domain.StatusRunning {
				return ""
			}
			continue
		}
		finished = append(finished, s.FinishedAt)
	}
	return domain.LatestTime(finished...)
}

func validatePipeline(run domain.Pipeline) error {
	switch {
	case run.ID == "":
		return missing("id")
	case run.CreatedAt == "":
		return missing("created_at")
	}
	return nil
}

func (e *Engine) processPipeline(run domain.Pipeline) error {
	if err := validatePipeline(run); err != nil {
		return err
	}

	kind := pipelineKind(run.Kind)
	stem := actionStem(kind)
	localCase := e.gen.Generate(firstNonEmpty(run.DefinitionID, run.ID), kind)
	res := e.FindCaseIDForPipeline(run.SHA, run.ID, kind)

	e.addEvent(eventlog.Event{
		ID:        run.ID,
		Action:    e.gen.Action(stem + "_created"),
		Time:      run.CreatedAt,
		Case:      res.CaseID,
		User:      run.Author.ID,
		UserRef:   run.Author.Name,
		LocalCase: localCase,
		Info1:     run.DefinitionName,
		Info2:     run.Name,
	})

	for _, stage := range run.Stages {
		if !stage.Status.IsStarted() || stage.StartedAt == "" {
			continue
		}
		actor := stage.Actor
		if actor.IsZero() {
			actor = run.Author
		}
		e.addEvent(eventlog.Event{
			ID:        stage.ID,
			Action:    e.gen.Action("job_started"),
			Time:      stage.StartedAt,
			Case:      res.CaseID,
			User:      actor.ID,
			UserRef:   actor.Name,
			LocalCase: localCase,
			Info1:     stage.Name,
			Info2:     string(stage.Status),
		})
	}

	duration := 0.0
	if completed := CompletionTime(run); completed != "" {
		duration = secondsBetween(run.CreatedAt, completed)
		e.addEvent(eventlog.Event{
			ID:        run.ID,
			Action:    e.gen.Action(stem + "_completed"),
			Time:      completed,
			Case:      res.CaseID,
			User:      run.Author.ID,
			UserRef:   run.Author.Name,
			LocalCase: localCase,
			Info1:     run.DefinitionName,
			Info2:     string(run.Status),
			Duration:  duration,
		})
	}

	e.pipelines = append(e.pipelines, PipelineRecord{
		ID:          run.ID,
		Kind:        string(kind),
		Definition:  run.DefinitionName,
		Source:      run.Branch,
		SHA:         run.SHA,
		Author:      run.Author.ID,
		CreatedTime: run.CreatedAt,
		Duration:    duration,
		Status:      string(run.Status),
		Trigger:     run.Trigger,
		ProjectID:   e.opts.ProjectID,
		CaseID:      res.CaseID,
		LinkType:    res.LinkType,
	})
	return nil
}

func secondsBetween(start, end string) float64 {
	s, err := domain.ParseTime(start)
	if err != nil {
		return 0
	}
	f, err := domain.ParseTime(end)
	if err != nil {
		return 0
	}
	return f.Sub(s).Seconds()
}
