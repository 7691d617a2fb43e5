package catalog

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed standards/*.yaml
var embedded embed.FS

var (
	// ErrNotFound reports an unknown standard or parameter code.
	ErrNotFound = errors.New("catalog: not found")
	// ErrRejected reports a parameter that failed load-time validation.
	ErrRejected = errors.New("catalog: parameter rejected")
)

// #region catalog
// Catalog serves validated standards. It is read-only after construction and
// safe for concurrent use.
type Catalog struct {
	standards map[string]Standard
	issues    []Issue
}

// New validates the given standards and builds a catalog from the usable ones.
// Standards whose threshold table is invalid are dropped entirely; parameters
// with invalid rating rules stay listed but are marked rejected.
func New(standards ...Standard) *Catalog {
	c := &Catalog{standards: make(map[string]Standard, len(standards))}
	for _, std := range standards {
		std = clone(std)
		if std.CoatingLoss == (CoatingLoss{}) {
			std.CoatingLoss = DefaultCoatingLoss()
		}
		issues, ok := validate(&std)
		c.issues = append(c.issues, issues...)
		if !ok {
			continue
		}
		if _, dup := c.standards[std.ID]; dup {
			c.issues = append(c.issues, Issue{StandardID: std.ID, Reason: "duplicate standard id, later definition ignored"})
			continue
		}
		c.standards[std.ID] = std
	}
	return c
}

// Issues returns the validation findings collected while building the catalog.
func (c *Catalog) Issues() []Issue {
	return append([]Issue(nil), c.issues...)
}

// Lookup returns a parameter of a standard. Rejected parameters fail closed.
func (c *Catalog) Lookup(standardID, code string) (Parameter, error) {
	std, ok := c.standards[standardID]
	if !ok {
		return Parameter{}, fmt.Errorf("standard %q: %w", standardID, ErrNotFound)
	}
	p, ok := std.Parameter(code)
	if !ok {
		return Parameter{}, fmt.Errorf("parameter %s/%s: %w", standardID, code, ErrNotFound)
	}
	if p.Rejected != "" {
		return Parameter{}, fmt.Errorf("parameter %s/%s: %s: %w", standardID, code, p.Rejected, ErrRejected)
	}
	return p, nil
}

// Standard returns a copy of the standard with the given id.
func (c *Catalog) Standard(id string) (Standard, error) {
	std, ok := c.standards[id]
	if !ok {
		return Standard{}, fmt.Errorf("standard %q: %w", id, ErrNotFound)
	}
	return clone(std), nil
}

// Standards lists all loaded standards sorted by id.
func (c *Catalog) Standards() []Standard {
	out := make([]Standard, 0, len(c.standards))
	for _, std := range c.standards {
		out = append(out, clone(std))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
// #endregion catalog

// #region load
// Parse decodes a single standard from YAML.
func Parse(data []byte) (Standard, error) {
	var std Standard
	if err := yaml.Unmarshal(data, &std); err != nil {
		return Standard{}, fmt.Errorf("parse standard: %w", err)
	}
	return std, nil
}

// Load builds a catalog from the embedded standards plus every *.yaml or
// *.yml file in dir. An empty dir loads the embedded standards only.
// A file defining an id already present replaces the embedded definition.
func Load(dir string) (*Catalog, error) {
	byID := map[string]Standard{}
	var order []string
	add := func(std Standard) {
		if _, ok := byID[std.ID]; !ok {
			order = append(order, std.ID)
		}
		byID[std.ID] = std
	}

	builtin, err := embeddedStandards()
	if err != nil {
		return nil, err
	}
	for _, std := range builtin {
		add(std)
	}

	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read catalog dir: %w", err)
		}
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", e.Name(), err)
			}
			std, err := Parse(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", e.Name(), err)
			}
			add(std)
		}
	}

	standards := make([]Standard, 0, len(order))
	for _, id := range order {
		standards = append(standards, byID[id])
	}
	return New(standards...), nil
}

func embeddedStandards() ([]Standard, error) {
	names, err := embedded.ReadDir("standards")
	if err != nil {
		return nil, fmt.Errorf("read embedded standards: %w", err)
	}
	var out []Standard
	for _, n := range names {
		data, err := embedded.ReadFile("standards/" + n.Name())
		if err != nil {
			return nil, fmt.Errorf("read embedded %s: %w", n.Name(), err)
		}
		std, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("embedded %s: %w", n.Name(), err)
		}
		out = append(out, std)
	}
	return out, nil
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the process-wide catalog of embedded standards.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Load("")
	})
	return defaultCat, defaultErr
}
// #endregion load

// #region clone
func clone(std Standard) Standard {
	out := std
	out.Parameters = make([]Parameter, len(std.Parameters))
	for i, p := range std.Parameters {
		cp := p
		cp.Buckets = append([]Bucket(nil), p.Buckets...)
		if p.Categories != nil {
			cp.Categories = make(map[string]int, len(p.Categories))
			for k, v := range p.Categories {
				cp.Categories[k] = v
			}
		}
		out.Parameters[i] = cp
	}
	out.Thresholds = make(Thresholds, len(std.Thresholds))
	for i, t := range std.Thresholds {
		row := t
		if t.Min != nil {
			row.Min = floatPtr(*t.Min)
		}
		out.Thresholds[i] = row
	}
	return out
}
// #endregion clone
