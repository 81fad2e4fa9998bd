// Package pipeline runs one plansheet invocation end to end: search,
// selection, plan fetch, profile resolution and one document per profile.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"plansheet/internal/api"
	"plansheet/internal/capture"
	appLog "plansheet/internal/log"
	"plansheet/internal/model"
	"plansheet/internal/output"
	"plansheet/internal/plansheet"
	"plansheet/internal/profile"
	"plansheet/internal/schedule"
	"plansheet/internal/selector"
)

// ErrEmptyProfile marks a profile that was skipped for having no teams.
var ErrEmptyProfile = errors.New("profile has no teams")

// Source is the content API as seen by the runner.
type Source interface {
	selector.DetailFetcher
	SearchServices(ctx context.Context, q api.SearchQuery) ([]model.ServiceSummary, error)
	Plan(ctx context.Context, id string) (model.PlanDetail, error)
}

// Options is the immutable per-run configuration.
type Options struct {
	Weekday  time.Weekday
	Statuses []string

	ServiceID string
	PlanID    string

	// SearchZone defines the calendar day searched for services.
	SearchZone  *time.Location
	DisplayZone *time.Location
	LocalZone   *time.Location

	Profiles   profile.Source
	Stylesheet string

	OutputDir   string
	ResetOutput bool
	KeepHTML    bool
}

// Runner wires the collaborators of one run.
type Runner struct {
	Source    Source
	Selector  *selector.Selector
	Converter capture.Converter
	Options   Options
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// ProfileResult records the outcome for one profile.
type ProfileResult struct {
	Profile  string
	Artifact output.Artifact
	Err      error
}

// Summary is returned by Run when the run is not fatally aborted.
type Summary struct {
	RunID    string
	PlanID   string
	Results  []ProfileResult
	Rendered int
	Skipped  int
	Failed   int
}

// Err aggregates the profile-scoped failures, or nil.
func (s *Summary) Err() error {
	var errs *multierror.Error
	for _, r := range s.Results {
		if r.Err != nil && !errors.Is(r.Err, ErrEmptyProfile) {
			errs = multierror.Append(errs, fmt.Errorf("profile %q: %w", r.Profile, r.Err))
		}
	}
	return errs.ErrorOrNil()
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run executes the pipeline. A non-nil error is fatal to the run; failures
// scoped to a single profile are reported in the Summary instead.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	runAt := r.now()
	sum := &Summary{RunID: runID}
	appLog.Info("run started", "run_id", runID)

	plan, err := r.resolvePlan(ctx, runAt)
	if err != nil {
		return nil, err
	}
	sum.PlanID = plan.ID
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	appLog.Info("plan loaded", "plan_id", plan.ID, "title", plan.Title, "rows", len(plan.Rows), "teams", len(plan.Teams))

	profiles, _, err := profile.Resolve(r.Options.Profiles, plan.Teams)
	if err != nil {
		return nil, err
	}

	dir := output.Dir{Path: r.Options.OutputDir}
	if err := dir.Prepare(r.Options.ResetOutput); err != nil {
		return nil, err
	}

	css := plansheet.LoadStylesheet(r.Options.Stylesheet)
	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res := r.renderProfile(ctx, dir, plan, p, css, runAt)
		switch {
		case errors.Is(res.Err, ErrEmptyProfile):
			sum.Skipped++
			appLog.Warn("profile skipped: empty team list", "profile", p.Name)
		case res.Err != nil:
			sum.Failed++
			appLog.Error("profile failed", res.Err, "profile", p.Name)
		default:
			sum.Rendered++
			appLog.Info("profile rendered", "profile", p.Name, "pdf", res.Artifact.PDF)
		}
		sum.Results = append(sum.Results, res)
	}

	appLog.Info("run finished",
		"run_id", runID,
		"plan_id", plan.ID,
		"rendered", sum.Rendered,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
	)
	if err := sum.Err(); err != nil {
		appLog.Warn("some profiles failed", "summary", err.Error())
	}
	return sum, nil
}

func (r *Runner) resolvePlan(ctx context.Context, runAt time.Time) (model.PlanDetail, error) {
	if r.Options.PlanID != "" {
		appLog.Info("using explicit plan id", "plan_id", r.Options.PlanID)
		return r.fetchPlan(ctx, r.Options.PlanID)
	}

	var candidates []model.ServiceSummary
	if r.Options.ServiceID == "" {
		start, end := schedule.NextOccurrenceWindow(runAt, r.Options.Weekday, r.Options.SearchZone)
		appLog.Info("searching services", "start", start.Format(time.RFC3339), "end", end.Format(time.RFC3339))
		found, err := r.Source.SearchServices(ctx, api.SearchQuery{Start: start, End: end, Statuses: r.Options.Statuses})
		if err != nil {
			return model.PlanDetail{}, fmt.Errorf("search services: %w", err)
		}
		candidates = found
	}

	svc, err := r.Selector.SelectService(ctx, r.Options.ServiceID, candidates)
	if err != nil {
		return model.PlanDetail{}, err
	}
	detail := svc.Detail
	if detail == nil {
		d, err := r.Source.ServiceDetail(ctx, svc.ID)
		if err != nil {
			return model.PlanDetail{}, fmt.Errorf("fetch service %s: %w", svc.ID, err)
		}
		detail = &d
	}

	ps, err := r.Selector.SelectPlan(ctx, *detail)
	if err != nil {
		return model.PlanDetail{}, err
	}
	plan, err := r.fetchPlan(ctx, ps.ID)
	if err != nil {
		return model.PlanDetail{}, err
	}
	if plan.EventTitle == "" {
		plan.EventTitle = detail.Title
	}
	return plan, nil
}

func (r *Runner) fetchPlan(ctx context.Context, id string) (model.PlanDetail, error) {
	plan, err := r.Source.Plan(ctx, id)
	if err != nil {
		return model.PlanDetail{}, fmt.Errorf("fetch plan %s: %w", id, err)
	}
	return plan, nil
}

func (r *Runner) renderProfile(ctx context.Context, dir output.Dir, plan model.PlanDetail, p model.Profile, css string, runAt time.Time) ProfileResult {
	res := ProfileResult{Profile: p.Name}
	if len(p.Teams) == 0 {
		res.Err = ErrEmptyProfile
		return res
	}

	doc, err := plansheet.Build(plan, p.Teams, plansheet.Meta{
		ProfileName: p.Name,
		Orientation: p.Orientation,
		DisplayZone: r.Options.DisplayZone,
		LocalZone:   r.Options.LocalZone,
		PrintedAt:   runAt,
		Stylesheet:  css,
	})
	if err != nil {
		res.Err = fmt.Errorf("build: %w", err)
		return res
	}
	markup, err := plansheet.Render(doc)
	if err != nil {
		res.Err = fmt.Errorf("render: %w", err)
		return res
	}

	base, err := dir.BaseName(p.Name, plan.Title, runAt)
	if err != nil {
		res.Err = err
		return res
	}
	res.Artifact, res.Err = dir.Publish(ctx, r.Converter, markup, base, doc.Orientation, r.Options.KeepHTML)
	return res
}
