// README: Pricing service: quotes and charges against the current snapshot.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"velo/internal/logger"
	"velo/internal/metrics"
	"velo/internal/modules/audit"
	"velo/internal/modules/plan"
	"velo/internal/modules/promotion"
	"velo/internal/modules/snapshot"
	"velo/internal/types"
)

// Snapshots hands out the pricing snapshot to use for one calculation.
type Snapshots interface {
	Current(ctx context.Context) (*snapshot.Snapshot, error)
}

type Deps struct {
	Snapshots Snapshots
	Counter   promotion.Counter
	Audit     audit.Publisher
	Metrics   *metrics.Metrics
	Log       logger.ILogger

	Calculator Calculator
	// Development turns ErrInvalidConfiguration into a panic.
	Development bool
}

type Service struct {
	snapshots   Snapshots
	counter     promotion.Counter
	audit       audit.Publisher
	metrics     *metrics.Metrics
	log         logger.ILogger
	calc        Calculator
	development bool
	tracer      trace.Tracer
	now         func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		snapshots:   d.Snapshots,
		counter:     d.Counter,
		audit:       d.Audit,
		metrics:     d.Metrics,
		log:         d.Log,
		calc:        d.Calculator,
		development: d.Development,
		tracer:      otel.Tracer("velo/pricing"),
		now:         time.Now,
	}
}

// Quote prices an interval without consuming any promotion usage.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (res Result, err error) {
	ctx, span := s.tracer.Start(ctx, "pricing.Quote", trace.WithAttributes(
		attribute.String("plan_id", string(req.PlanID)),
	))
	defer func() { s.finish(span, "quote", res, err) }()
	defer s.observe("quote", s.now())

	snap, p, err := s.loadPlan(ctx, req.PlanID)
	if err != nil {
		return Result{}, err
	}
	res, err = s.calc.Calculate(p, snap.Rules, req.Start, req.End, snap.Promotions)
	if err != nil {
		return Result{}, s.fail(err)
	}
	res.SnapshotVersion = snap.Version
	return res, nil
}

// Charge prices a ride and consumes one use of the promotion it selects. When
// the promotion runs out between selection and consumption, selection is
// repeated without it until a promotion is consumed or none is left.
func (s *Service) Charge(ctx context.Context, req ChargeRequest) (res Result, err error) {
	ctx, span := s.tracer.Start(ctx, "pricing.Charge", trace.WithAttributes(
		attribute.String("plan_id", string(req.PlanID)),
		attribute.String("ride_id", req.RideID),
	))
	defer func() { s.finish(span, "charge", res, err) }()
	defer s.observe("charge", s.now())

	snap, p, err := s.loadPlan(ctx, req.PlanID)
	if err != nil {
		return Result{}, err
	}

	skip := make(map[types.ID]struct{})
	for {
		res, err = s.calc.Calculate(p, snap.Rules, req.Start, req.End, promotion.Without(snap.Promotions, skip))
		if err != nil {
			return Result{}, s.fail(err)
		}
		res.SnapshotVersion = snap.Version
		if res.promotion == nil {
			return res, nil
		}

		ok, err := s.counter.TryConsume(ctx, *res.promotion)
		if err != nil {
			return Result{}, fmt.Errorf("consume promotion: %w", err)
		}
		if ok {
			s.consumed(ctx, res.promotion.ID, req.RideID)
			return res, nil
		}

		s.metrics.ConsumptionRetries.Inc()
		s.log.Debug("promotion exhausted during charge, reselecting",
			logger.String("promotion_id", string(res.promotion.ID)),
			logger.String("ride_id", req.RideID),
			logger.Error(promotion.ErrConsumptionConflict),
		)
		skip[res.promotion.ID] = struct{}{}
	}
}

func (s *Service) loadPlan(ctx context.Context, id types.ID) (*snapshot.Snapshot, plan.Plan, error) {
	snap, err := s.snapshots.Current(ctx)
	if err != nil {
		return nil, plan.Plan{}, fmt.Errorf("pricing snapshot: %w", err)
	}
	p, ok := snap.Plans.Get(id)
	if !ok {
		return nil, plan.Plan{}, ErrPlanNotFound
	}
	if err := snap.PlanProblem(id); err != nil {
		return nil, plan.Plan{}, s.fail(err)
	}
	if err := snap.Problem(); err != nil {
		return nil, plan.Plan{}, s.fail(err)
	}
	if !p.IsActive {
		return nil, plan.Plan{}, ErrPlanInactive
	}
	return snap, p, nil
}

func (s *Service) consumed(ctx context.Context, promoID types.ID, rideID string) {
	s.metrics.PromotionsConsumed.WithLabelValues(string(promoID)).Inc()
	e := audit.Event{PromotionID: promoID, RideID: rideID, Timestamp: s.now().UTC()}
	if err := s.audit.Publish(ctx, e); err != nil {
		s.log.Error("audit publish failed",
			logger.String("promotion_id", string(promoID)),
			logger.String("ride_id", rideID),
			logger.Error(err),
		)
	}
}

func (s *Service) fail(err error) error {
	if errors.Is(err, ErrInvalidConfiguration) {
		s.log.Error("invalid pricing configuration", logger.Error(err))
		if s.development {
			panic(err)
		}
	}
	return err
}

func (s *Service) observe(op string, start time.Time) {
	s.metrics.CalculationDuration.WithLabelValues(op).Observe(s.now().Sub(start).Seconds())
}

func (s *Service) finish(span trace.Span, op string, res Result, err error) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.Calculations.WithLabelValues(op, outcome(err)).Inc()
		return
	}
	span.SetAttributes(
		attribute.Int64("total", res.Total.Amount),
		attribute.String("tier", res.Tier.String()),
		attribute.Int64("snapshot_version", int64(res.SnapshotVersion)),
	)
	if res.PromotionID != nil {
		span.SetAttributes(attribute.String("promotion_id", string(*res.PromotionID)))
	}
	s.metrics.Calculations.WithLabelValues(op, "ok").Inc()
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrPlanNotFound):
		return "plan_not_found"
	case errors.Is(err, ErrPlanInactive):
		return "plan_inactive"
	case errors.Is(err, ErrInvalidDuration):
		return "invalid_duration"
	case errors.Is(err, ErrInvalidConfiguration):
		return "invalid_configuration"
	default:
		return "error"
	}
}
