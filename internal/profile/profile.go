// Package profile resolves the list of plansheet profiles for a run.
//
// Sources are tried in order: an inline YAML/JSON document from config,
// then a referenced file, then a single synthesized "All Teams" profile
// covering every team of the plan. The first source that is present wins
// even when another is also configured.
package profile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	appLog "plansheet/internal/log"
	"plansheet/internal/model"
)

var (
	ErrInvalidProfileConfig = errors.New("invalid profile config")
	ErrNoProfilesResolved   = errors.New("no profiles resolved")
)

// Source names where profiles come from.
type Source struct {
	// Inline is a YAML or JSON document, usually from an environment value.
	Inline string
	// File is a path to a YAML or JSON document.
	File string
}

// Origin reports which branch produced the profiles.
type Origin string

const (
	OriginInline   Origin = "inline"
	OriginFile     Origin = "file"
	OriginFallback Origin = "fallback"
)

// profileDoc is the on-disk shape of one profile.
type profileDoc struct {
	Name        string   `yaml:"name"`
	Teams       []string `yaml:"teams"`
	Orientation string   `yaml:"orientation"`
}

type wrappedDoc struct {
	Profiles []profileDoc `yaml:"profiles"`
}

// Resolve returns the profiles to render, in order.
func Resolve(src Source, planTeams []string) ([]model.Profile, Origin, error) {
	var (
		profiles []model.Profile
		origin   Origin
		err      error
	)
	switch {
	case strings.TrimSpace(src.Inline) != "":
		origin = OriginInline
		profiles, err = Parse([]byte(src.Inline))
		if err != nil {
			return nil, origin, fmt.Errorf("inline profiles: %w", err)
		}
	case strings.TrimSpace(src.File) != "":
		origin = OriginFile
		profiles, err = LoadFile(src.File)
		if err != nil {
			return nil, origin, err
		}
	default:
		origin = OriginFallback
		profiles = []model.Profile{AllTeams(planTeams)}
	}

	if len(profiles) == 0 {
		return nil, origin, fmt.Errorf("%w from %s source", ErrNoProfilesResolved, origin)
	}
	appLog.Info("profiles resolved", "origin", string(origin), "count", len(profiles))
	return profiles, origin, nil
}

// AllTeams synthesizes the fallback profile.
func AllTeams(planTeams []string) model.Profile {
	teams := make([]string, len(planTeams))
	copy(teams, planTeams)
	return model.Profile{
		Name:        model.AllTeamsProfileName,
		Teams:       teams,
		Orientation: model.Landscape,
	}
}

// LoadFile reads and parses a profile file. A missing file is an error.
func LoadFile(path string) ([]model.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidProfileConfig, path, err)
	}
	profiles, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile file %s: %w", path, err)
	}
	return profiles, nil
}

// Parse decodes a YAML or JSON profile document. Both a bare list and a
// mapping with a "profiles" key are accepted.
func Parse(data []byte) ([]model.Profile, error) {
	var docs []profileDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		var w wrappedDoc
		if werr := yaml.Unmarshal(data, &w); werr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProfileConfig, err)
		}
		docs = w.Profiles
	}

	out := make([]model.Profile, 0, len(docs))
	for i, d := range docs {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: profile %d has no name", ErrInvalidProfileConfig, i)
		}
		o, err := model.ParseOrientation(d.Orientation)
		if err != nil {
			return nil, fmt.Errorf("%w: profile %q: %v", ErrInvalidProfileConfig, name, err)
		}
		teams := make([]string, 0, len(d.Teams))
		for _, t := range d.Teams {
			if t = strings.TrimSpace(t); t != "" {
				teams = append(teams, t)
			}
		}
		out = append(out, model.Profile{Name: name, Teams: teams, Orientation: o})
	}
	return out, nil
}
