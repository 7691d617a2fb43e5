package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/catalog"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/evaluation"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/logging"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/metrics"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/report"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/survey"
)

// #region interfaces
// DatapointSource reads the raw datapoints of a zone.
type DatapointSource interface {
	FetchDatapoints(ctx context.Context, zoneID string) ([]survey.Datapoint, error)
}

// ZoneSource reads zone and project metadata.
type ZoneSource interface {
	FetchZone(ctx context.Context, zoneID string) (survey.Zone, error)
	FetchProject(ctx context.Context, projectID string) (survey.Project, error)
}

// IdentityProvider names the analyst acting in ctx.
type IdentityProvider interface {
	CurrentUser(ctx context.Context) (survey.User, error)
}
// #endregion interfaces

// #region engine
// Deps bundles what the engine reads from and writes to.
type Deps struct {
	Versions   *evaluation.VersionStore
	Datapoints DatapointSource
	Zones      ZoneSource
	Standards  evaluation.StandardSource
	Identity   IdentityProvider
	Logger     *slog.Logger
}

// Engine is the entry point of the evaluation service.
type Engine struct {
	versions   *evaluation.VersionStore
	datapoints DatapointSource
	zones      ZoneSource
	standards  evaluation.StandardSource
	identity   IdentityProvider
	log        *slog.Logger
	now        func() time.Time
}

// New builds an Engine from d.
func New(d Deps) *Engine {
	log := d.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Engine{
		versions:   d.Versions,
		datapoints: d.Datapoints,
		zones:      d.Zones,
		standards:  d.Standards,
		identity:   d.Identity,
		log:        log.With(slog.String("component", "engine")),
		now:        func() time.Time { return time.Now().UTC() },
	}
}
// #endregion engine

// #region evaluate
// Evaluate scores the selected datapoints of a zone and stores the result as
// the next version of the zone's output for standardID. An empty selection
// means every datapoint of the zone.
func (e *Engine) Evaluate(ctx context.Context, zoneID, standardID string, datapointIDs []string, recommendations string) (v evaluation.Version, err error) {
	const op = "evaluate"
	start := e.now()
	label := metrics.UnknownStandard
	defer func() {
		outcome := metrics.OutcomeSuccess
		switch {
		case errors.Is(err, evaluation.ErrValidation):
			outcome = metrics.OutcomeRejected
		case err != nil:
			outcome = metrics.OutcomeError
		}
		metrics.ObserveEvaluation(label, e.now().Sub(start), outcome)
	}()

	if strings.TrimSpace(zoneID) == "" || strings.TrimSpace(standardID) == "" {
		return evaluation.Version{}, evaluation.NewError(op, evaluation.ErrValidation, "zone and standard are required", nil)
	}
	std, err := e.standards.FetchStandard(ctx, standardID)
	if errors.Is(err, catalog.ErrNotFound) {
		return evaluation.Version{}, evaluation.NewError(op, evaluation.ErrValidation, fmt.Sprintf("unknown standard %s", standardID), err)
	}
	if err != nil {
		return evaluation.Version{}, evaluation.NewError(op, evaluation.ErrTransient, "could not load the standard", err)
	}
	label = std.ID
	zone, err := e.zones.FetchZone(ctx, zoneID)
	if err != nil {
		return evaluation.Version{}, e.sourceErr(op, fmt.Sprintf("unknown zone %s", zoneID), err)
	}
	author, err := e.identity.CurrentUser(ctx)
	if err != nil {
		return evaluation.Version{}, evaluation.NewError(op, evaluation.ErrValidation, "no analyst is signed in", err)
	}
	dps, err := e.selectDatapoints(ctx, op, zoneID, datapointIDs)
	if err != nil {
		return evaluation.Version{}, err
	}

	out, err := e.versions.FindOutput(ctx, zone.ProjectID, zone.ID, standardID)
	switch {
	case errors.Is(err, evaluation.ErrNotFound):
		v, err = e.versions.CreateFirstVersion(ctx, evaluation.OutputRef{ProjectID: zone.ProjectID, ZoneID: zone.ID},
			dps, standardID, author, recommendations)
		if !errors.Is(err, evaluation.ErrAlreadyExists) {
			return v, err
		}
		// Another caller created version 1 first; continue the lineage.
		out, err = e.versions.FindOutput(ctx, zone.ProjectID, zone.ID, standardID)
		if err != nil {
			return evaluation.Version{}, err
		}
	case err != nil:
		return evaluation.Version{}, err
	}
	return e.versions.CreateNextVersion(ctx, out.ID, dps, standardID, author, recommendations)
}
// #endregion evaluate

// #region read
// GetLatestEvaluation returns the highest-numbered version of outputID.
func (e *Engine) GetLatestEvaluation(ctx context.Context, outputID string) (evaluation.Version, error) {
	return e.versions.GetVersion(ctx, outputID, 0)
}

// GetVersion returns a specific version; number 0 means the latest.
func (e *Engine) GetVersion(ctx context.Context, outputID string, number int) (evaluation.Version, error) {
	return e.versions.GetVersion(ctx, outputID, number)
}

// ListVersions returns every version of outputID, oldest first.
func (e *Engine) ListVersions(ctx context.Context, outputID string) ([]evaluation.Version, error) {
	return e.versions.ListVersions(ctx, outputID)
}

// FindOutput returns the output of a zone under a standard.
func (e *Engine) FindOutput(ctx context.Context, zoneID, standardID string) (evaluation.Output, error) {
	zone, err := e.zones.FetchZone(ctx, zoneID)
	if err != nil {
		return evaluation.Output{}, e.sourceErr("find output", fmt.Sprintf("unknown zone %s", zoneID), err)
	}
	return e.versions.FindOutput(ctx, zone.ProjectID, zone.ID, standardID)
}
// #endregion read

// #region report
// RenderReport assembles the report of a stored version. Numbers come from
// the version's snapshot; the live catalog and field data only supply names.
// Missing metadata degrades to ids rather than failing.
func (e *Engine) RenderReport(ctx context.Context, v evaluation.Version) (report.Document, error) {
	const op = "render report"

	out, err := e.versions.GetOutput(ctx, v.OutputID)
	if err != nil {
		return report.Document{}, err
	}
	rc, err := e.reportContext(ctx, op, out.ProjectID, out.ZoneID, v.Content.StandardID)
	if err != nil {
		return report.Document{}, err
	}
	metrics.IncReport(false)
	return report.Assemble(v, rc), nil
}

// Preview scores the selected datapoints without storing anything and
// returns a report marked as a preview.
func (e *Engine) Preview(ctx context.Context, zoneID, standardID string, datapointIDs []string) (report.Document, error) {
	const op = "preview"

	if strings.TrimSpace(zoneID) == "" || strings.TrimSpace(standardID) == "" {
		return report.Document{}, evaluation.NewError(op, evaluation.ErrValidation, "zone and standard are required", nil)
	}
	zone, err := e.zones.FetchZone(ctx, zoneID)
	if err != nil {
		return report.Document{}, e.sourceErr(op, fmt.Sprintf("unknown zone %s", zoneID), err)
	}
	std, err := e.standards.FetchStandard(ctx, standardID)
	if errors.Is(err, catalog.ErrNotFound) {
		return report.Document{}, evaluation.NewError(op, evaluation.ErrValidation, fmt.Sprintf("unknown standard %s", standardID), err)
	}
	if err != nil {
		return report.Document{}, evaluation.NewError(op, evaluation.ErrTransient, "could not load the standard", err)
	}
	dps, err := e.selectDatapoints(ctx, op, zoneID, datapointIDs)
	if err != nil {
		return report.Document{}, err
	}
	author, _ := e.identity.CurrentUser(ctx)

	rc, err := e.reportContext(ctx, op, zone.ProjectID, zone.ID, std.ID)
	if err != nil {
		return report.Document{}, err
	}
	metrics.IncReport(true)
	return report.AssemblePreview(evaluation.Compute(dps, std, author, ""), rc), nil
}

func (e *Engine) reportContext(ctx context.Context, op, projectID, zoneID, standardID string) (report.Context, error) {
	rc := report.Context{
		Project:     survey.Project{ID: projectID, Name: projectID},
		Zone:        survey.Zone{ID: zoneID, ProjectID: projectID, Name: zoneID},
		GeneratedAt: e.now(),
	}

	project, err := e.zones.FetchProject(ctx, projectID)
	switch {
	case err == nil:
		rc.Project = project
	case errors.Is(err, survey.ErrNotFound):
		e.log.Warn("report without project metadata", slog.String("project", projectID))
	default:
		return report.Context{}, evaluation.NewError(op, evaluation.ErrTransient, "could not read the project", err)
	}

	zone, err := e.zones.FetchZone(ctx, zoneID)
	switch {
	case err == nil:
		rc.Zone = zone
	case errors.Is(err, survey.ErrNotFound):
		e.log.Warn("report without zone metadata", slog.String("zone", zoneID))
	default:
		return report.Context{}, evaluation.NewError(op, evaluation.ErrTransient, "could not read the zone", err)
	}

	std, err := e.standards.FetchStandard(ctx, standardID)
	switch {
	case err == nil:
		rc.Standard = std
	case errors.Is(err, catalog.ErrNotFound):
		e.log.Warn("report for retired standard", slog.String("standard", standardID))
	default:
		return report.Context{}, evaluation.NewError(op, evaluation.ErrTransient, "could not load the standard", err)
	}

	if u, err := e.identity.CurrentUser(ctx); err == nil {
		rc.Analyst = u
	}
	return rc, nil
}
// #endregion report

// #region helpers
func (e *Engine) selectDatapoints(ctx context.Context, op, zoneID string, ids []string) ([]survey.Datapoint, error) {
	all, err := e.datapoints.FetchDatapoints(ctx, zoneID)
	if err != nil {
		return nil, evaluation.NewError(op, evaluation.ErrTransient, "could not read the datapoints", err)
	}
	if len(ids) == 0 {
		if len(all) == 0 {
			return nil, evaluation.NewError(op, evaluation.ErrValidation, fmt.Sprintf("zone %s has no datapoints", zoneID), nil)
		}
		return all, nil
	}

	byID := make(map[string]survey.Datapoint, len(all))
	for _, dp := range all {
		byID[dp.ID] = dp
	}
	selected := make([]survey.Datapoint, 0, len(ids))
	for _, id := range ids {
		dp, ok := byID[id]
		if !ok {
			return nil, evaluation.NewError(op, evaluation.ErrValidation,
				fmt.Sprintf("datapoint %s is not part of zone %s", id, zoneID), nil)
		}
		selected = append(selected, dp)
	}
	return selected, nil
}

func (e *Engine) sourceErr(op, msg string, err error) error {
	if errors.Is(err, survey.ErrNotFound) {
		return evaluation.NewError(op, evaluation.ErrValidation, msg, err)
	}
	return evaluation.NewError(op, evaluation.ErrTransient, "could not read survey data", err)
}
// #endregion helpers
