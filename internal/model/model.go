package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedPlanData is returned when upstream service or plan data is
// missing a required field or carries an unusable timestamp.
var ErrMalformedPlanData = errors.New("malformed plan data")

// ServiceSummary is a single search hit from the service search endpoint.
type ServiceSummary struct {
	ID    string
	Title string
	Start time.Time
	End   time.Time
}

// PlanSummary is the short form of a plan nested in a service detail.
type PlanSummary struct {
	ID    string
	Title string
	Start time.Time
}

// ServiceDetail is a service together with the plans attached to it.
type ServiceDetail struct {
	ServiceSummary
	Plans []PlanSummary
}

// Row kinds recognised by the default stylesheet. Any other value is kept
// verbatim and simply becomes a row class without dedicated styling.
const (
	KindNormal  = "normal"
	KindSong    = "song"
	KindBreaker = "breaker"
	KindStart   = "start"
)

// ScheduleRow is one line item of a plan.
type ScheduleRow struct {
	// Kind is the row type tag; empty means KindNormal.
	Kind string
	// Duration in seconds. Always >= 0 after decoding.
	Duration int

	Title  string
	Detail string // may carry inline markup

	// Notes maps a team name to its free-text note for this row.
	Notes map[string]string
}

// EffectiveKind returns the row kind, defaulting to KindNormal.
func (r ScheduleRow) EffectiveKind() string {
	if strings.TrimSpace(r.Kind) == "" {
		return KindNormal
	}
	return r.Kind
}

// PlanDetail is the full run-of-show used for rendering. It is read-only
// once decoded.
type PlanDetail struct {
	ID         string
	Title      string
	EventTitle string // parent service title

	Start     time.Time
	UpdatedAt time.Time
	UpdatedBy string

	Rows  []ScheduleRow
	Teams []string
}

// Validate reports the first structural problem that would make the printed
// times wrong.
func (p PlanDetail) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: plan id is empty", ErrMalformedPlanData)
	}
	if p.Start.IsZero() {
		return fmt.Errorf("%w: plan %s has no start time", ErrMalformedPlanData, p.ID)
	}
	if p.UpdatedAt.IsZero() {
		return fmt.Errorf("%w: plan %s has no last-updated time", ErrMalformedPlanData, p.ID)
	}
	for i, row := range p.Rows {
		if row.Duration < 0 {
			return fmt.Errorf("%w: plan %s row %d has negative duration %d", ErrMalformedPlanData, p.ID, i, row.Duration)
		}
	}
	return nil
}

// Orientation is the page orientation of a rendered plansheet.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// ParseOrientation accepts "portrait" or "landscape" (case-insensitive).
// An empty string yields Landscape.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return Landscape, nil
	case string(Portrait):
		return Portrait, nil
	case string(Landscape):
		return Landscape, nil
	default:
		return "", fmt.Errorf("unknown orientation %q", s)
	}
}

// Profile is a named team-column selection rendered as one document.
type Profile struct {
	Name        string
	Teams       []string
	Orientation Orientation
}

// AllTeamsProfileName is the name of the profile synthesized when no profile
// configuration is supplied.
const AllTeamsProfileName = "All Teams"
