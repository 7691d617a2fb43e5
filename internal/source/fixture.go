package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/survey"
)

// #region fixture-types
// Fixture is the JSON layout used to seed a field store.
type Fixture struct {
	Description string           `json:"description"`
	Projects    []FixtureProject `json:"projects"`
}

// FixtureProject is a project with its zones.
type FixtureProject struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Client string        `json:"client"`
	Place  string        `json:"place"`
	Zones  []FixtureZone `json:"zones"`
}

// FixtureZone is a zone with its datapoints.
type FixtureZone struct {
	ID         string             `json:"id"`
	Field      string             `json:"field"`
	Name       string             `json:"name"`
	Datapoints []FixtureDatapoint `json:"datapoints"`
}

// FixtureDatapoint holds raw readings as entered in the field. Numbers may be
// written as JSON numbers or strings.
type FixtureDatapoint struct {
	ID        string                     `json:"id"`
	Timestamp time.Time                  `json:"timestamp"`
	Values    map[string]json.RawMessage `json:"values"`
}

// SeedCounts reports what Seed wrote.
type SeedCounts struct {
	Projects   int
	Zones      int
	Datapoints int
}
// #endregion fixture-types

// #region fixture-loader
// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToDatapoint converts a fixture datapoint to a survey datapoint of zoneID.
func (fd *FixtureDatapoint) ToDatapoint(zoneID string) (survey.Datapoint, error) {
	dp := survey.Datapoint{ID: fd.ID, ZoneID: zoneID, Timestamp: fd.Timestamp, Values: make(map[string]string, len(fd.Values))}
	for code, raw := range fd.Values {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			dp.Values[code] = s
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return survey.Datapoint{}, fmt.Errorf("datapoint %s value %s: not a string or number", fd.ID, code)
		}
		dp.Values[code] = n.String()
	}
	return dp, nil
}

// Seed writes every project, zone and datapoint of f into s.
func Seed(ctx context.Context, s *FieldStore, f *Fixture) (SeedCounts, error) {
	var c SeedCounts
	for _, p := range f.Projects {
		if err := s.PutProject(ctx, survey.Project{ID: p.ID, Name: p.Name, Client: p.Client, Place: p.Place}); err != nil {
			return c, err
		}
		c.Projects++
		for _, z := range p.Zones {
			if err := s.PutZone(ctx, survey.Zone{ID: z.ID, ProjectID: p.ID, Field: z.Field, Name: z.Name}); err != nil {
				return c, err
			}
			c.Zones++
			for i := range z.Datapoints {
				dp, err := z.Datapoints[i].ToDatapoint(z.ID)
				if err != nil {
					return c, err
				}
				if err := s.PutDatapoint(ctx, dp); err != nil {
					return c, err
				}
				c.Datapoints++
			}
		}
	}
	return c, nil
}
// #endregion fixture-loader
