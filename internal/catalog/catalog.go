// Package catalog holds the read-only table of persona facts.
//
// A Catalog is built once at startup and then shared by pointer. It has no
// writers after construction, so concurrent lookups need no locking.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrNotFound is returned when no persona matches the requested title.
var ErrNotFound = errors.New("persona not found")

// Defaults for optional profile fields, resolved once at load time.
const (
	DefaultDating     = "an unknown date"
	DefaultMaker      = "an unknown master"
	DefaultAcquired   = "an unknown date"
	DefaultDimensions = "unknown dimensions"
	DefaultAccent     = "american"
)

// Profile is one museum object the user can talk to.
type Profile struct {
	Title       string `json:"title" yaml:"title"`
	Type        string `json:"type" yaml:"type"`
	Period      string `json:"period" yaml:"period"`
	Character   string `json:"character" yaml:"character"`
	Description string `json:"description" yaml:"description"`
	History     string `json:"history" yaml:"history"`

	Dating     string `json:"dating,omitempty" yaml:"dating,omitempty"`
	Maker      string `json:"maker,omitempty" yaml:"maker,omitempty"`
	Acquired   string `json:"acquired,omitempty" yaml:"acquired,omitempty"`
	Dimensions string `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Accent     string `json:"accent,omitempty" yaml:"accent,omitempty"`
}

// missingRequired lists the required fields that are empty.
func (p *Profile) missingRequired() []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("title", p.Title)
	check("type", p.Type)
	check("period", p.Period)
	check("character", p.Character)
	check("description", p.Description)
	check("history", p.History)
	return missing
}

func (p *Profile) applyDefaults() {
	p.Title = strings.TrimSpace(p.Title)
	if strings.TrimSpace(p.Dating) == "" {
		p.Dating = DefaultDating
	}
	if strings.TrimSpace(p.Maker) == "" {
		p.Maker = DefaultMaker
	}
	if strings.TrimSpace(p.Acquired) == "" {
		p.Acquired = DefaultAcquired
	}
	if strings.TrimSpace(p.Dimensions) == "" {
		p.Dimensions = DefaultDimensions
	}
	if strings.TrimSpace(p.Accent) == "" {
		p.Accent = DefaultAccent
	}
	p.Accent = strings.ToLower(strings.TrimSpace(p.Accent))
}

// Catalog is an immutable, case-insensitive index of profiles.
type Catalog struct {
	profiles []*Profile
	byKey    map[string]*Profile
}

func key(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// New builds a catalog from raw records. Records missing a required field
// are skipped; duplicate titles keep the first occurrence. Optional fields
// get their defaults here, so readers never need fallbacks.
func New(logger *slog.Logger, records []Profile) *Catalog {
	c := &Catalog{
		byKey: make(map[string]*Profile, len(records)),
	}
	for i := range records {
		p := records[i]
		if missing := p.missingRequired(); len(missing) > 0 {
			logger.Warn("skipping persona record with missing fields",
				"index", i,
				"title", p.Title,
				"missing", missing,
			)
			continue
		}
		p.applyDefaults()
		k := key(p.Title)
		if _, dup := c.byKey[k]; dup {
			logger.Warn("duplicate persona title, keeping first", "title", p.Title)
			continue
		}
		c.byKey[k] = &p
		c.profiles = append(c.profiles, &p)
	}
	return c
}

// FindByTitle returns the profile whose title matches, ignoring case and
// surrounding whitespace. Every variant of a title yields the same pointer.
func (c *Catalog) FindByTitle(title string) (*Profile, error) {
	if p, ok := c.byKey[key(title)]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, strings.TrimSpace(title))
}

// All returns the profiles in load order. The slice is a copy; the profiles
// are shared and must not be modified.
func (c *Catalog) All() []*Profile {
	out := make([]*Profile, len(c.profiles))
	copy(out, c.profiles)
	return out
}

// Len returns the number of loaded profiles.
func (c *Catalog) Len() int {
	return len(c.profiles)
}
