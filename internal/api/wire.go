package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"plansheet/internal/model"
)

// Wire shapes of the content API. Required fields are pointers so that a
// missing value is told apart from a zero value; conversion to the model
// fails with model.ErrMalformedPlanData instead of guessing.

// flexID accepts an id encoded either as a JSON string or a number.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type planSummaryWire struct {
	ID    flexID     `json:"id"`
	Title string     `json:"title"`
	Start *time.Time `json:"start"`
}

type serviceWire struct {
	ID    flexID            `json:"id"`
	Title string            `json:"title"`
	Start *time.Time        `json:"start"`
	End   *time.Time        `json:"end"`
	Plans []planSummaryWire `json:"plans"`
}

type rowWire struct {
	Type     string             `json:"type"`
	Duration *float64           `json:"duration"`
	Title    string             `json:"title"`
	Detail   string             `json:"detail"`
	Notes    map[string]*string `json:"notes"`
}

type planWire struct {
	ID         flexID     `json:"id"`
	Title      string     `json:"title"`
	EventTitle string     `json:"event_title"`
	Start      *time.Time `json:"start"`
	UpdatedAt  *time.Time `json:"updated_at"`
	UpdatedBy  string     `json:"updated_by"`
	Teams      []string   `json:"teams"`
	Rows       []rowWire  `json:"rows"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", model.ErrMalformedPlanData, fmt.Sprintf(format, args...))
}

func (w serviceWire) summary() (model.ServiceSummary, error) {
	if w.ID == "" {
		return model.ServiceSummary{}, malformed("service %q has no id", w.Title)
	}
	if w.Start == nil || w.Start.IsZero() {
		return model.ServiceSummary{}, malformed("service %s has no start", w.ID)
	}
	s := model.ServiceSummary{ID: string(w.ID), Title: w.Title, Start: *w.Start}
	if w.End != nil {
		s.End = *w.End
	}
	return s, nil
}

func (w serviceWire) detail() (model.ServiceDetail, error) {
	s, err := w.summary()
	if err != nil {
		return model.ServiceDetail{}, err
	}
	d := model.ServiceDetail{ServiceSummary: s, Plans: make([]model.PlanSummary, 0, len(w.Plans))}
	for i, p := range w.Plans {
		if p.ID == "" {
			return model.ServiceDetail{}, malformed("service %s plan %d has no id", w.ID, i)
		}
		ps := model.PlanSummary{ID: string(p.ID), Title: p.Title}
		if p.Start != nil {
			ps.Start = *p.Start
		}
		d.Plans = append(d.Plans, ps)
	}
	return d, nil
}

func (w planWire) plan() (model.PlanDetail, error) {
	if w.ID == "" {
		return model.PlanDetail{}, malformed("plan %q has no id", w.Title)
	}
	if w.Start == nil {
		return model.PlanDetail{}, malformed("plan %s has no start", w.ID)
	}
	if w.UpdatedAt == nil {
		return model.PlanDetail{}, malformed("plan %s has no updated_at", w.ID)
	}

	p := model.PlanDetail{
		ID:         string(w.ID),
		Title:      w.Title,
		EventTitle: w.EventTitle,
		Start:      *w.Start,
		UpdatedAt:  *w.UpdatedAt,
		UpdatedBy:  w.UpdatedBy,
		Rows:       make([]model.ScheduleRow, 0, len(w.Rows)),
	}

	for i, r := range w.Rows {
		row, err := r.row()
		if err != nil {
			return model.PlanDetail{}, fmt.Errorf("plan %s row %d: %w", w.ID, i, err)
		}
		p.Rows = append(p.Rows, row)
	}

	p.Teams = normalizeTeams(w.Teams, p.Rows)
	if err := p.Validate(); err != nil {
		return model.PlanDetail{}, err
	}
	return p, nil
}

func (r rowWire) row() (model.ScheduleRow, error) {
	row := model.ScheduleRow{
		Kind:   strings.TrimSpace(r.Type),
		Title:  r.Title,
		Detail: r.Detail,
	}
	if r.Duration != nil {
		d := *r.Duration
		if d < 0 {
			return row, malformed("negative duration %v", d)
		}
		row.Duration = int(d + 0.5)
	}
	if len(r.Notes) > 0 {
		row.Notes = make(map[string]string, len(r.Notes))
		for team, note := range r.Notes {
			if note != nil {
				row.Notes[team] = *note
			}
		}
	}
	return row, nil
}

// normalizeTeams de-duplicates the declared team list. When the plan does
// not declare one, teams are collected from row notes in order of first
// appearance, with keys of a single row taken alphabetically.
func normalizeTeams(declared []string, rows []model.ScheduleRow) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(declared))
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	}
	for _, t := range declared {
		add(t)
	}
	if len(declared) > 0 {
		return out
	}
	for _, r := range rows {
		keys := make([]string, 0, len(r.Notes))
		for k := range r.Notes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			add(k)
		}
	}
	return out
}
