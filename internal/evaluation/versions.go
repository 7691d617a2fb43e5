package evaluation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/catalog"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/events"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/logging"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/metrics"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/store"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/survey"
)

// #region interfaces
// Repository is the persistence the version store writes through.
// *store.Store satisfies it.
type Repository interface {
	EnsureOutput(ctx context.Context, o store.Output) (store.Output, bool, error)
	GetOutput(ctx context.Context, id string) (store.Output, error)
	FindOutput(ctx context.Context, projectID, zoneID, standardID string) (store.Output, error)
	AppendVersion(ctx context.Context, rec store.VersionRecord) (store.VersionRecord, error)
	GetVersion(ctx context.Context, outputID string, number int) (store.VersionRecord, error)
	ListVersions(ctx context.Context, outputID string) ([]store.VersionRecord, error)
}

// StandardSource resolves a standard id to its current rule set.
type StandardSource interface {
	FetchStandard(ctx context.Context, standardID string) (catalog.Standard, error)
}

// AuditFunc records one audit entry.
type AuditFunc func(ctx context.Context, e logging.AuditEntry) error

// AuditTo writes audit entries to the evaluation_log table of db.
func AuditTo(db *sql.DB) AuditFunc {
	return func(ctx context.Context, e logging.AuditEntry) error {
		return logging.LogEvent(ctx, db, e)
	}
}
// #endregion interfaces

// #region version-store
// VersionStore creates and reads immutable evaluation versions.
type VersionStore struct {
	repo      Repository
	standards StandardSource
	retry     RetryPolicy
	log       *slog.Logger
	audit     AuditFunc
	publisher events.Publisher
	publishTO time.Duration
	now       func() time.Time
}

// DefaultPublishTimeout is how long a committed version waits for its event.
const DefaultPublishTimeout = 2 * time.Second

// Option configures a VersionStore.
type Option func(*VersionStore)

// WithRetry overrides the allocation retry budget.
func WithRetry(p RetryPolicy) Option { return func(s *VersionStore) { s.retry = p } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(s *VersionStore) { s.log = l } }

// WithAudit sets where audit entries go.
func WithAudit(fn AuditFunc) Option { return func(s *VersionStore) { s.audit = fn } }

// WithPublisher sets the domain event publisher.
func WithPublisher(p events.Publisher) Option { return func(s *VersionStore) { s.publisher = p } }

// WithPublishTimeout bounds how long a committed evaluation waits for its
// event to be published.
func WithPublishTimeout(d time.Duration) Option { return func(s *VersionStore) { s.publishTO = d } }

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *VersionStore) { s.now = now } }

// NewVersionStore builds a version store over repo.
func NewVersionStore(repo Repository, standards StandardSource, opts ...Option) *VersionStore {
	s := &VersionStore{
		repo:      repo,
		standards: standards,
		retry:     DefaultRetryPolicy(),
		log:       logging.Discard(),
		audit:     func(context.Context, logging.AuditEntry) error { return nil },
		publisher: events.Noop{},
		publishTO: DefaultPublishTimeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("component", "versions"))
	return s
}
// #endregion version-store

// #region create-first
// CreateFirstVersion evaluates dps under standardID and stores the result as
// version 1 of the (project, zone, standard) output, creating the output if
// needed. An output that already has versions yields ErrAlreadyExists.
func (s *VersionStore) CreateFirstVersion(ctx context.Context, ref OutputRef, dps []survey.Datapoint, standardID string, author survey.User, recommendations string) (Version, error) {
	const op = "create first version"

	if strings.TrimSpace(ref.ProjectID) == "" || strings.TrimSpace(ref.ZoneID) == "" {
		return Version{}, s.reject(ctx, op, "", "project and zone are required")
	}
	if err := s.validateInput(dps, ref.ZoneID, standardID, author); err != nil {
		return Version{}, s.reject(ctx, op, "", err.Error())
	}
	std, err := s.fetchStandard(ctx, op, standardID)
	if err != nil {
		return Version{}, err
	}

	out, created, err := s.repo.EnsureOutput(ctx, store.Output{
		ID:         uuid.New().String(),
		ProjectID:  ref.ProjectID,
		ZoneID:     ref.ZoneID,
		StandardID: std.ID,
		AnalystID:  author.ID,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return Version{}, NewError(op, ErrTransient, "could not register the evaluation output", err)
	}
	if created {
		s.record(ctx, logging.AuditEntry{OutputID: out.ID, Event: logging.EventOutputCreated, Actor: author.ID,
			Detail: fmt.Sprintf("%s/%s/%s", out.ProjectID, out.ZoneID, out.StandardID)})
	}

	content := Compute(dps, std, author, recommendations)
	v, err := s.commit(ctx, out, content, 1)
	switch {
	case errors.Is(err, store.ErrConflict):
		// Number 1 is taken unless the write lost the database lock.
		if _, getErr := s.repo.GetVersion(ctx, out.ID, 1); getErr == nil {
			return Version{}, NewError(op, ErrAlreadyExists,
				fmt.Sprintf("output %s already has versions, create the next version instead", out.ID), err)
		}
		return Version{}, NewError(op, ErrTransient, "the evaluation could not be saved, try again", err)
	case err != nil:
		return Version{}, NewError(op, ErrTransient, "the evaluation could not be saved", err)
	}
	s.committed(ctx, out, v, content)
	return v, nil
}
// #endregion create-first

// #region create-next
// CreateNextVersion evaluates dps and stores the result as max+1 for
// outputID. Allocation races are retried within the retry budget; when the
// budget runs out the error wraps both ErrTransient and ErrVersionConflict.
// An empty standardID means the output's own standard.
func (s *VersionStore) CreateNextVersion(ctx context.Context, outputID string, dps []survey.Datapoint, standardID string, author survey.User, recommendations string) (Version, error) {
	const op = "create next version"

	if strings.TrimSpace(outputID) == "" {
		return Version{}, s.reject(ctx, op, "", "output id is required")
	}
	out, err := s.repo.GetOutput(ctx, outputID)
	if errors.Is(err, store.ErrNotFound) {
		return Version{}, NewError(op, ErrNotFound, fmt.Sprintf("output %s does not exist", outputID), err)
	}
	if err != nil {
		return Version{}, NewError(op, ErrTransient, "could not read the evaluation output", err)
	}
	if standardID == "" {
		standardID = out.StandardID
	}
	if standardID != out.StandardID {
		return Version{}, s.reject(ctx, op, out.ID,
			fmt.Sprintf("output %s is evaluated under %s, not %s", out.ID, out.StandardID, standardID))
	}
	if err := s.validateInput(dps, out.ZoneID, standardID, author); err != nil {
		return Version{}, s.reject(ctx, op, out.ID, err.Error())
	}
	std, err := s.fetchStandard(ctx, op, standardID)
	if err != nil {
		return Version{}, err
	}

	content := Compute(dps, std, author, recommendations)

	var v Version
	attempts := 0
	err = s.retry.Do(ctx, isConflict, func(attempt int) error {
		attempts = attempt
		var cerr error
		v, cerr = s.commit(ctx, out, content, 0)
		if isConflict(cerr) {
			metrics.IncVersionConflict()
			s.log.Warn("version allocation conflict",
				slog.String("output", out.ID),
				slog.Int("attempt", attempt),
				slog.Any("error", cerr))
			s.record(ctx, logging.AuditEntry{OutputID: out.ID, Event: logging.EventConflict, Actor: author.ID,
				Detail: fmt.Sprintf("attempt %d", attempt)})
		}
		return cerr
	})
	switch {
	case isConflict(err):
		return Version{}, NewError(op, ErrTransient,
			"another evaluation of this output was saved at the same time, try again",
			fmt.Errorf("%w after %d attempts: %w", ErrVersionConflict, attempts, err))
	case errors.Is(err, store.ErrNotFound):
		return Version{}, NewError(op, ErrNotFound, fmt.Sprintf("output %s does not exist", outputID), err)
	case err != nil:
		return Version{}, NewError(op, ErrTransient, "the evaluation could not be saved", err)
	}
	s.committed(ctx, out, v, content)
	return v, nil
}

func isConflict(err error) bool {
	return errors.Is(err, store.ErrConflict)
}
// #endregion create-next

// #region read
// GetVersion returns version number of outputID; number 0 means the latest.
// The stored bytes are checked against their digest before decoding.
func (s *VersionStore) GetVersion(ctx context.Context, outputID string, number int) (Version, error) {
	const op = "get version"

	if number < 0 {
		return Version{}, NewError(op, ErrValidation, "version number must be positive", nil)
	}
	if _, err := s.GetOutput(ctx, outputID); err != nil {
		return Version{}, err
	}
	rec, err := s.repo.GetVersion(ctx, outputID, number)
	if errors.Is(err, store.ErrNotFound) {
		msg := fmt.Sprintf("output %s has no version %d", outputID, number)
		if number == 0 {
			msg = fmt.Sprintf("output %s has no versions yet", outputID)
		}
		return Version{}, NewError(op, ErrNotFound, msg, err)
	}
	if err != nil {
		return Version{}, NewError(op, ErrTransient, "could not read the version", err)
	}
	return decodeVersion(op, rec)
}

// ListVersions returns every version of outputID, oldest first.
func (s *VersionStore) ListVersions(ctx context.Context, outputID string) ([]Version, error) {
	const op = "list versions"

	if _, err := s.GetOutput(ctx, outputID); err != nil {
		return nil, err
	}
	recs, err := s.repo.ListVersions(ctx, outputID)
	if err != nil {
		return nil, NewError(op, ErrTransient, "could not list versions", err)
	}
	out := make([]Version, 0, len(recs))
	for _, rec := range recs {
		v, err := decodeVersion(op, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// GetOutput returns the output with the given id.
func (s *VersionStore) GetOutput(ctx context.Context, outputID string) (Output, error) {
	const op = "get output"

	if strings.TrimSpace(outputID) == "" {
		return Output{}, NewError(op, ErrValidation, "output id is required", nil)
	}
	o, err := s.repo.GetOutput(ctx, outputID)
	if errors.Is(err, store.ErrNotFound) {
		return Output{}, NewError(op, ErrNotFound, fmt.Sprintf("output %s does not exist", outputID), err)
	}
	if err != nil {
		return Output{}, NewError(op, ErrTransient, "could not read the evaluation output", err)
	}
	return fromStoreOutput(o), nil
}

// FindOutput returns the output of a (project, zone, standard) tuple.
func (s *VersionStore) FindOutput(ctx context.Context, projectID, zoneID, standardID string) (Output, error) {
	const op = "find output"

	o, err := s.repo.FindOutput(ctx, projectID, zoneID, standardID)
	if errors.Is(err, store.ErrNotFound) {
		return Output{}, NewError(op, ErrNotFound,
			fmt.Sprintf("zone %s of project %s has no %s evaluation", zoneID, projectID, standardID), err)
	}
	if err != nil {
		return Output{}, NewError(op, ErrTransient, "could not read the evaluation output", err)
	}
	return fromStoreOutput(o), nil
}
// #endregion read

// #region helpers
func (s *VersionStore) validateInput(dps []survey.Datapoint, zoneID, standardID string, author survey.User) error {
	if strings.TrimSpace(standardID) == "" {
		return errors.New("standard is required")
	}
	if strings.TrimSpace(author.ID) == "" {
		return errors.New("analyst identity is required")
	}
	if len(dps) == 0 {
		return errors.New("at least one datapoint is required")
	}
	seen := make(map[string]struct{}, len(dps))
	for _, dp := range dps {
		if strings.TrimSpace(dp.ID) == "" {
			return errors.New("datapoint without id")
		}
		if _, dup := seen[dp.ID]; dup {
			return fmt.Errorf("datapoint %s selected twice", dp.ID)
		}
		seen[dp.ID] = struct{}{}
		if dp.ZoneID != "" && dp.ZoneID != zoneID {
			return fmt.Errorf("datapoint %s belongs to zone %s, not %s", dp.ID, dp.ZoneID, zoneID)
		}
	}
	return nil
}

func (s *VersionStore) fetchStandard(ctx context.Context, op, standardID string) (catalog.Standard, error) {
	std, err := s.standards.FetchStandard(ctx, standardID)
	if errors.Is(err, catalog.ErrNotFound) {
		return catalog.Standard{}, s.reject(ctx, op, "", fmt.Sprintf("unknown standard %s", standardID))
	}
	if err != nil {
		return catalog.Standard{}, NewError(op, ErrTransient, "could not load the standard", err)
	}
	return std, nil
}

func (s *VersionStore) reject(ctx context.Context, op, outputID, msg string) error {
	s.log.Info("evaluation rejected", slog.String("op", op), slog.String("reason", msg))
	s.record(ctx, logging.AuditEntry{OutputID: outputID, Event: logging.EventRejected, Detail: msg})
	return NewError(op, ErrValidation, msg, nil)
}

// commit encodes content and appends it. number 0 allocates the next number.
func (s *VersionStore) commit(ctx context.Context, out store.Output, content Content, number int) (Version, error) {
	raw, sum, err := encodeContent(content)
	if err != nil {
		return Version{}, err
	}
	rec, err := s.repo.AppendVersion(ctx, store.VersionRecord{
		ID:              uuid.New().String(),
		OutputID:        out.ID,
		Number:          number,
		Content:         raw,
		Digest:          sum,
		Total:           content.Total,
		Class:           content.Classification.Class,
		Stress:          content.Classification.Stress,
		Recommendations: content.Recommendations,
		CreatedBy:       content.Author.ID,
		CreatedAt:       s.now(),
	})
	if err != nil {
		return Version{}, err
	}
	return Version{
		ID:             rec.ID,
		OutputID:       rec.OutputID,
		Number:         rec.Number,
		Content:        content,
		Total:          content.Total,
		Classification: content.Classification,
		CreatedBy:      rec.CreatedBy,
		CreatedAt:      rec.CreatedAt,
		Digest:         rec.Digest,
		Raw:            raw,
	}, nil
}

// committed runs the after-commit side effects. None of them can fail the
// call: the version is already durable.
func (s *VersionStore) committed(ctx context.Context, out store.Output, v Version, content Content) {
	s.log.Info("version created",
		slog.String("output", out.ID),
		slog.Int("version", v.Number),
		slog.Int("total", v.Total),
		slog.String("class", v.Classification.Class))

	s.record(ctx, logging.AuditEntry{OutputID: out.ID, VersionNumber: v.Number, Event: logging.EventVersionCreated,
		Actor: v.CreatedBy, Detail: fmt.Sprintf(`{"total":%d,"class":%q,"digest":%q}`, v.Total, v.Classification.Class, v.Digest)})

	if len(content.Unrated) > 0 {
		reasons := map[string]int{}
		codes := make([]string, 0, len(content.Unrated))
		for _, u := range content.Unrated {
			reasons[u.Reason]++
			codes = append(codes, u.DatapointID+":"+u.Code)
		}
		for reason, n := range reasons {
			metrics.AddUnrated(reason, n)
		}
		s.record(ctx, logging.AuditEntry{OutputID: out.ID, VersionNumber: v.Number, Event: logging.EventUnrated,
			Actor: v.CreatedBy, Detail: strings.Join(codes, ",")})
	}

	pubCtx, cancel := context.WithTimeout(ctx, s.publishTO)
	defer cancel()
	err := s.publisher.PublishVersionCreated(pubCtx, events.VersionCreated{
		Type:          events.TypeVersionCreated,
		OutputID:      out.ID,
		ProjectID:     out.ProjectID,
		ZoneID:        out.ZoneID,
		StandardID:    out.StandardID,
		VersionNumber: v.Number,
		Total:         v.Total,
		Class:         v.Classification.Class,
		Stress:        v.Classification.Stress,
		Digest:        v.Digest,
		CreatedBy:     v.CreatedBy,
		CreatedAt:     v.CreatedAt,
	})
	if err != nil {
		s.log.Warn("publish version event failed", slog.String("output", out.ID), slog.Any("error", err))
	}
}

func (s *VersionStore) record(ctx context.Context, e logging.AuditEntry) {
	if err := s.audit(ctx, e); err != nil {
		s.log.Warn("audit write failed", slog.String("event", e.Event), slog.Any("error", err))
	}
}

func decodeVersion(op string, rec store.VersionRecord) (Version, error) {
	if digest(rec.Content) != rec.Digest {
		return Version{}, NewError(op, ErrCorrupt,
			fmt.Sprintf("version %d of output %s failed its integrity check", rec.Number, rec.OutputID), nil)
	}
	var content Content
	if err := json.Unmarshal(rec.Content, &content); err != nil {
		return Version{}, NewError(op, ErrCorrupt,
			fmt.Sprintf("version %d of output %s cannot be decoded", rec.Number, rec.OutputID), err)
	}
	return Version{
		ID:             rec.ID,
		OutputID:       rec.OutputID,
		Number:         rec.Number,
		Content:        content,
		Total:          content.Total,
		Classification: content.Classification,
		CreatedBy:      rec.CreatedBy,
		CreatedAt:      rec.CreatedAt,
		Digest:         rec.Digest,
		Raw:            rec.Content,
	}, nil
}

func fromStoreOutput(o store.Output) Output {
	return Output{
		ID:         o.ID,
		ProjectID:  o.ProjectID,
		ZoneID:     o.ZoneID,
		StandardID: o.StandardID,
		AnalystID:  o.AnalystID,
		CreatedAt:  o.CreatedAt,
	}
}
// #endregion helpers
