package selector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	appLog "plansheet/internal/log"
	"plansheet/internal/model"
	"plansheet/internal/schedule"
)

var (
	ErrNoEligibleService  = errors.New("no eligible service")
	ErrAmbiguousSelection = errors.New("ambiguous service selection")
	ErrNoPlanFound        = errors.New("no plan found")
	ErrAmbiguousPlan      = errors.New("ambiguous plan selection")
	ErrNoSelectionMade    = errors.New("no selection made")
)

// Option is one entry presented to a Chooser.
type Option struct {
	ID    string
	Label string
}

func (o Option) String() string {
	return fmt.Sprintf("%s (id %s)", o.Label, o.ID)
}

// Chooser presents options and returns the chosen index. ok is false when
// the user declined to choose.
type Chooser interface {
	Choose(ctx context.Context, title string, options []Option) (index int, ok bool, err error)
}

// Headless never chooses. It backs unattended runs.
type Headless struct{}

func (Headless) Choose(context.Context, string, []Option) (int, bool, error) {
	return -1, false, nil
}

// AmbiguousError carries the candidates of an unattended selection that
// could not be resolved, so the operator can re-run with an explicit id.
type AmbiguousError struct {
	Kind       error // ErrAmbiguousSelection or ErrAmbiguousPlan
	Candidates []Option
}

func (e *AmbiguousError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	fmt.Fprintf(&b, ": %d candidates, re-run with an explicit id:", len(e.Candidates))
	for _, c := range e.Candidates {
		b.WriteString("\n  - ")
		b.WriteString(c.String())
	}
	return b.String()
}

func (e *AmbiguousError) Unwrap() error { return e.Kind }

// DetailFetcher loads a service together with its plans.
type DetailFetcher interface {
	ServiceDetail(ctx context.Context, id string) (model.ServiceDetail, error)
}

// Selector reduces search results to exactly one service and one plan.
type Selector struct {
	Fetcher DetailFetcher
	// Chooser is consulted only when Interactive is set. Nil means Headless.
	Chooser     Chooser
	Interactive bool
	// Zone localizes the start times shown in labels. Nil means time.Local.
	Zone *time.Location
}

// Service is the outcome of SelectService. Detail is populated unless the
// id came from an explicit bypass.
type Service struct {
	ID     string
	Detail *model.ServiceDetail
}

// SelectService picks one service from candidates.
//
// An explicit id bypasses the search entirely. Otherwise only candidates
// with at least one plan are eligible; a single eligible candidate is
// selected automatically and several are resolved through the Chooser in
// interactive mode or refused in unattended mode.
func (s *Selector) SelectService(ctx context.Context, explicitID string, candidates []model.ServiceSummary) (Service, error) {
	if id := strings.TrimSpace(explicitID); id != "" {
		appLog.Info("using explicit service id", "service_id", id)
		return Service{ID: id}, nil
	}
	if s.Fetcher == nil {
		return Service{}, errors.New("selector: no detail fetcher configured")
	}

	eligible := make([]model.ServiceDetail, 0, len(candidates))
	for _, c := range candidates {
		appLog.Debug("fetching service detail", "service_id", c.ID)
		detail, err := s.Fetcher.ServiceDetail(ctx, c.ID)
		if err != nil {
			return Service{}, fmt.Errorf("fetch service %s detail: %w", c.ID, err)
		}
		if len(detail.Plans) == 0 {
			appLog.Debug("service has no plans; skipping", "service_id", c.ID, "title", c.Title)
			continue
		}
		eligible = append(eligible, detail)
	}

	appLog.Info("service candidates filtered", "candidates", len(candidates), "eligible", len(eligible))

	switch len(eligible) {
	case 0:
		return Service{}, fmt.Errorf("%w among %d candidates", ErrNoEligibleService, len(candidates))
	case 1:
		d := eligible[0]
		appLog.Info("service selected", "service_id", d.ID, "title", d.Title)
		return Service{ID: d.ID, Detail: &d}, nil
	}

	opts := make([]Option, len(eligible))
	for i, d := range eligible {
		opts[i] = Option{ID: d.ID, Label: serviceLabel(d.ServiceSummary, s.Zone)}
	}
	idx, err := s.choose(ctx, "Select a service", opts, ErrAmbiguousSelection)
	if err != nil {
		return Service{}, err
	}
	d := eligible[idx]
	appLog.Info("service chosen", "service_id", d.ID, "title", d.Title)
	return Service{ID: d.ID, Detail: &d}, nil
}

// SelectPlan picks exactly one plan of the given service.
func (s *Selector) SelectPlan(ctx context.Context, detail model.ServiceDetail) (model.PlanSummary, error) {
	switch len(detail.Plans) {
	case 0:
		return model.PlanSummary{}, fmt.Errorf("%w for service %s", ErrNoPlanFound, detail.ID)
	case 1:
		return detail.Plans[0], nil
	}

	opts := make([]Option, len(detail.Plans))
	for i, p := range detail.Plans {
		opts[i] = Option{ID: p.ID, Label: planLabel(i, p, s.Zone)}
	}
	idx, err := s.choose(ctx, "Select a plan for "+detail.Title, opts, ErrAmbiguousPlan)
	if err != nil {
		return model.PlanSummary{}, err
	}
	return detail.Plans[idx], nil
}

func (s *Selector) choose(ctx context.Context, title string, opts []Option, ambiguous error) (int, error) {
	if !s.Interactive {
		return -1, &AmbiguousError{Kind: ambiguous, Candidates: opts}
	}
	ch := s.Chooser
	if ch == nil {
		ch = Headless{}
	}
	idx, ok, err := ch.Choose(ctx, title, opts)
	if err != nil {
		return -1, fmt.Errorf("choose: %w", err)
	}
	if !ok {
		return -1, ErrNoSelectionMade
	}
	if idx < 0 || idx >= len(opts) {
		return -1, fmt.Errorf("%w: index %d out of range", ErrNoSelectionMade, idx)
	}
	return idx, nil
}

// labelFormat is the start time shown next to each candidate.
const labelFormat = "Mon Jan 2 15:04 MST"

func serviceLabel(s model.ServiceSummary, loc *time.Location) string {
	if s.Start.IsZero() {
		return s.Title
	}
	return fmt.Sprintf("%s · %s", s.Title, schedule.Localize(s.Start, loc, labelFormat))
}

func planLabel(i int, p model.PlanSummary, loc *time.Location) string {
	title := p.Title
	if title == "" {
		title = "Untitled plan"
	}
	if p.Start.IsZero() {
		return fmt.Sprintf("%d. %s", i+1, title)
	}
	return fmt.Sprintf("%d. %s · %s", i+1, title, schedule.Localize(p.Start, loc, labelFormat))
}
