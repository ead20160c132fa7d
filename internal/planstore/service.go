// File path: internal/planstore/service.go
package planstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nicodishanthj/planbuilder/internal/common"
	"github.com/nicodishanthj/planbuilder/internal/common/telemetry"
	"github.com/nicodishanthj/planbuilder/internal/docstore"
	"github.com/nicodishanthj/planbuilder/internal/plan"
)

// ErrNotFound is returned when no plan carries the requested plan_id.
var ErrNotFound = errors.New("plan not found")

// MaxListSize bounds the number of plans returned by List.
const MaxListSize = 1000

const maxCreateAttempts = 5

// Service implements plan CRUD over a document collection.
type Service struct {
	collection docstore.Collection
	now        func() time.Time
	logger     *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a Service over collection.
func New(collection docstore.Collection, opts ...Option) *Service {
	s := &Service{
		collection: collection,
		now:        time.Now,
		logger:     common.Logger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create persists a new plan with every section empty.
func (s *Service) Create(ctx context.Context, title string) (*plan.Plan, error) {
	return s.CreateFromSections(ctx, title, nil)
}

// CreateFromSections persists a new plan using the supplied section payloads.
// Sections not supplied default to empty mappings.
func (s *Service) CreateFromSections(ctx context.Context, title string, sections map[string]plan.Section) (*plan.Plan, error) {
	p := plan.New(title, s.now())
	for name, section := range sections {
		if err := p.SetSection(name, section); err != nil {
			return nil, err
		}
	}
	for attempt := 1; ; attempt++ {
		err := s.insert(ctx, p)
		if err == nil {
			break
		}
		if !errors.Is(err, docstore.ErrDuplicateKey) || attempt >= maxCreateAttempts {
			return nil, err
		}
		s.logger.Warn("planstore: plan_id collision", "plan_id", p.PlanID, "attempt", attempt)
		p.ID = plan.NewID()
		p.PlanID = plan.NewPlanID()
	}
	telemetry.RecordPlanOperation("create")
	s.logger.Info("planstore: plan created", "plan_id", p.PlanID, "title", p.Title)
	return p, nil
}

func (s *Service) insert(ctx context.Context, p *plan.Plan) error {
	start := time.Now()
	_, err := s.collection.FindOne(ctx, docstore.Eq("plan_id", p.PlanID))
	switch {
	case err == nil:
		telemetry.RecordStoreOperation("find_one", time.Since(start), nil)
		return fmt.Errorf("%w: plan_id %s", docstore.ErrDuplicateKey, p.PlanID)
	case !errors.Is(err, docstore.ErrNoDocuments):
		telemetry.RecordStoreOperation("find_one", time.Since(start), err)
		return fmt.Errorf("check plan_id: %w", err)
	}
	telemetry.RecordStoreOperation("find_one", time.Since(start), nil)

	start = time.Now()
	err = s.collection.InsertOne(ctx, docstore.Document(plan.EncodeDocument(p)))
	telemetry.RecordStoreOperation("insert_one", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

// Get returns the plan with the given public identifier.
func (s *Service) Get(ctx context.Context, planID string) (*plan.Plan, error) {
	start := time.Now()
	doc, err := s.collection.FindOne(ctx, docstore.Eq("plan_id", planID))
	if errors.Is(err, docstore.ErrNoDocuments) {
		telemetry.RecordStoreOperation("find_one", time.Since(start), nil)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, planID)
	}
	telemetry.RecordStoreOperation("find_one", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("find plan: %w", err)
	}
	p, err := plan.DecodeDocument(doc)
	if err != nil {
		return nil, err
	}
	telemetry.RecordPlanOperation("get")
	return p, nil
}

// List returns up to MaxListSize plans in store order. Documents that cannot
// be decoded are skipped and logged.
func (s *Service) List(ctx context.Context) ([]*plan.Plan, error) {
	start := time.Now()
	docs, err := s.collection.Find(ctx, MaxListSize)
	telemetry.RecordStoreOperation("find", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	plans := make([]*plan.Plan, 0, len(docs))
	for _, doc := range docs {
		p, err := plan.DecodeDocument(doc)
		if err != nil {
			s.logger.Warn("planstore: skipping undecodable plan", "id", doc["id"], "error", err)
			continue
		}
		plans = append(plans, p)
	}
	telemetry.RecordPlanOperation("list")
	return plans, nil
}

// Update applies the present fields of u and refreshes updated_at. An update
// that leaves the stored document unchanged still succeeds.
func (s *Service) Update(ctx context.Context, planID string, u plan.Update) (*plan.Plan, error) {
	existing, err := s.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	updatedAt := s.now().UTC()
	if !updatedAt.After(existing.UpdatedAt) {
		updatedAt = existing.UpdatedAt.Add(time.Microsecond)
	}
	fields := u.Fields()
	fields["updated_at"] = updatedAt
	set, _ := plan.EncodeValue(fields).(map[string]any)

	start := time.Now()
	res, err := s.collection.UpdateOne(ctx, docstore.Eq("plan_id", planID), docstore.Document(set))
	telemetry.RecordStoreOperation("update_one", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("update plan: %w", err)
	}
	if res.Matched == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, planID)
	}
	if res.Modified == 0 {
		s.logger.Debug("planstore: no-op update", "plan_id", planID, "fields", u.Keys())
	}
	updated, err := s.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	telemetry.RecordPlanOperation("update")
	s.logger.Info("planstore: plan updated", "plan_id", planID, "fields", u.Keys())
	return updated, nil
}

// Delete removes the plan with the given public identifier.
func (s *Service) Delete(ctx context.Context, planID string) error {
	start := time.Now()
	deleted, err := s.collection.DeleteOne(ctx, docstore.Eq("plan_id", planID))
	telemetry.RecordStoreOperation("delete_one", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, planID)
	}
	telemetry.RecordPlanOperation("delete")
	s.logger.Info("planstore: plan deleted", "plan_id", planID)
	return nil
}

// Ping checks the backing collection.
func (s *Service) Ping(ctx context.Context) error {
	return s.collection.Ping(ctx)
}
