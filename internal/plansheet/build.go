// Package plansheet turns a plan into a time-ordered, team-columnar
// document and renders it to HTML.
package plansheet

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"plansheet/internal/model"
	"plansheet/internal/schedule"
)

// Fixed leading columns.
const (
	ColumnTime   = "Time"
	ColumnDetail = "Detail"
)

// Column is one table column. Team columns carry a CSS-safe class token.
type Column struct {
	Name  string
	Class string
	Team  bool
}

// Cell is the note of one team for one row.
type Cell struct {
	Team  string
	Class string
	Text  string
}

// Row is one rendered schedule line.
type Row struct {
	Class   string // row kind token, "normal" when absent
	Clock   string // HH:mm in the local zone
	Minutes int    // rounded duration, caption shown when > 0
	Title   string
	Detail  string // raw upstream markup, sanitised at render time
	Cells   []Cell
}

// DurationCaption returns "N min" or "" when the row has no length.
func (r Row) DurationCaption() string {
	if r.Minutes <= 0 {
		return ""
	}
	return fmt.Sprintf("%d min", r.Minutes)
}

// Header holds the title and version block of a sheet.
type Header struct {
	ServiceTitle string
	PlanTitle    string
	StartLine    string
	ProfileName  string
	UpdatedAt    string
	UpdatedBy    string
	PrintedAt    string
}

// Document is the structured plansheet for one profile.
type Document struct {
	Header      Header
	Columns     []Column
	Rows        []Row
	Orientation model.Orientation
	// Stylesheet is the final CSS, print directives included.
	Stylesheet string
}

// Meta carries everything the builder needs besides the plan itself.
type Meta struct {
	ProfileName string
	Orientation model.Orientation

	// DisplayZone localizes the plan start in the header.
	DisplayZone *time.Location
	// LocalZone localizes row clocks and the version block.
	LocalZone *time.Location

	PrintedAt time.Time
	// Stylesheet is caller CSS; empty selects DefaultStylesheet.
	Stylesheet string
}

var nonToken = regexp.MustCompile(`[^A-Za-z0-9-]`)

// CSSToken maps a free-form name to a lowercase class token by replacing
// every character outside [A-Za-z0-9-] with '-'.
func CSSToken(name string) string {
	return strings.ToLower(nonToken.ReplaceAllString(name, "-"))
}

// Build shapes plan into a Document with columns Time, Detail and then one
// column per team in the given order.
//
// Row i is stamped at plan start plus the durations of rows 0..i-1, so a
// zero-length row shares its clock with the row after it.
func Build(plan model.PlanDetail, teams []string, meta Meta) (*Document, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if meta.DisplayZone == nil {
		meta.DisplayZone = time.Local
	}
	if meta.LocalZone == nil {
		meta.LocalZone = time.Local
	}
	orientation := meta.Orientation
	if orientation == "" {
		orientation = model.Landscape
	}

	doc := &Document{
		Header:      buildHeader(plan, meta),
		Columns:     buildColumns(teams),
		Rows:        make([]Row, 0, len(plan.Rows)),
		Orientation: orientation,
		Stylesheet:  WithPrintDirectives(meta.Stylesheet, orientation),
	}

	elapsed := 0
	for _, src := range plan.Rows {
		at := schedule.Offset(plan.Start, elapsed)
		row := Row{
			Class:   CSSToken(src.EffectiveKind()),
			Clock:   schedule.Localize(at, meta.LocalZone, schedule.ClockFormat),
			Minutes: schedule.RoundMinutes(src.Duration),
			Title:   strings.TrimSpace(src.Title),
			Detail:  strings.TrimSpace(src.Detail),
			Cells:   make([]Cell, len(teams)),
		}
		for i, team := range teams {
			row.Cells[i] = Cell{Team: team, Class: CSSToken(team), Text: src.Notes[team]}
		}
		doc.Rows = append(doc.Rows, row)
		elapsed += src.Duration
	}
	return doc, nil
}

func buildHeader(plan model.PlanDetail, meta Meta) Header {
	title := plan.EventTitle
	if title == "" {
		title = plan.Title
	}
	h := Header{
		ServiceTitle: title,
		PlanTitle:    plan.Title,
		StartLine:    schedule.Localize(plan.Start, meta.DisplayZone, schedule.LongFormat),
		ProfileName:  meta.ProfileName,
		UpdatedAt:    schedule.Localize(plan.UpdatedAt, meta.LocalZone, schedule.StampFormat),
		UpdatedBy:    plan.UpdatedBy,
	}
	if !meta.PrintedAt.IsZero() {
		h.PrintedAt = schedule.Localize(meta.PrintedAt, meta.LocalZone, schedule.StampFormat)
	}
	return h
}

func buildColumns(teams []string) []Column {
	cols := make([]Column, 0, len(teams)+2)
	cols = append(cols,
		Column{Name: ColumnTime, Class: "col-time"},
		Column{Name: ColumnDetail, Class: "col-detail"},
	)
	for _, t := range teams {
		cols = append(cols, Column{Name: t, Class: CSSToken(t), Team: true})
	}
	return cols
}
