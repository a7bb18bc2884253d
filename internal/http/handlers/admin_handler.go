// README: Admin handlers for plans, rules and promotions; every write invalidates the pricing snapshot.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"velo/internal/modules/plan"
	"velo/internal/modules/promotion"
	"velo/internal/modules/rule"
	"velo/internal/types"
)

type PlanStore interface {
	ListAll(ctx context.Context) ([]plan.Plan, error)
	Get(ctx context.Context, id types.ID) (*plan.Plan, error)
	Create(ctx context.Context, p *plan.Plan) error
	Update(ctx context.Context, p *plan.Plan) error
	SetActive(ctx context.Context, id types.ID, active bool) error
}

type RuleStore interface {
	ListAll(ctx context.Context) ([]rule.Rule, error)
	Get(ctx context.Context, id types.ID) (*rule.Rule, error)
	Create(ctx context.Context, r *rule.Rule) error
	Update(ctx context.Context, r *rule.Rule) error
}

type PromotionStore interface {
	ListAll(ctx context.Context) ([]promotion.Promotion, error)
	Get(ctx context.Context, id types.ID) (*promotion.Promotion, error)
	Create(ctx context.Context, p *promotion.Promotion) error
	Update(ctx context.Context, p *promotion.Promotion) error
}

// Invalidator drops the pricing snapshot on every engine instance.
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}

type AdminHandler struct {
	plans       PlanStore
	rules       RuleStore
	promotions  PromotionStore
	invalidator Invalidator
}

func NewAdminHandler(plans PlanStore, rules RuleStore, promotions PromotionStore, inv Invalidator) *AdminHandler {
	return &AdminHandler{plans: plans, rules: rules, promotions: promotions, invalidator: inv}
}

// plans

type overrideBody struct {
	Type    string                 `json:"type"`
	Value   decimal.Decimal        `json:"value"`
	Windows map[string]*windowBody `json:"windows"`
}

type planBody struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Version      int             `json:"version"`
	HourlyRate   decimal.Decimal `json:"hourly_rate"`
	DailyRate    decimal.Decimal `json:"daily_rate"`
	WeeklyRate   decimal.Decimal `json:"weekly_rate"`
	MonthlyRate  decimal.Decimal `json:"monthly_rate"`
	MinimumHours int             `json:"minimum_hours"`
	Discount     decimal.Decimal `json:"discount"`
	IsActive     *bool           `json:"is_active"`
	Conditions   []string        `json:"conditions"`
	Override     *overrideBody   `json:"override"`
	CreatedAt    *time.Time      `json:"created_at,omitempty"`
	UpdatedAt    *time.Time      `json:"updated_at,omitempty"`
}

func (b planBody) toPlan() (plan.Plan, error) {
	p := plan.Plan{
		ID:   types.ID(b.ID),
		Name: b.Name,
		Rates: plan.Rates{
			Hourly:  b.HourlyRate,
			Daily:   b.DailyRate,
			Weekly:  b.WeeklyRate,
			Monthly: b.MonthlyRate,
		},
		Version:      b.Version,
		MinimumHours: b.MinimumHours,
		Discount:     b.Discount,
		IsActive:     b.IsActive == nil || *b.IsActive,
		Conditions:   b.Conditions,
	}
	if b.Override == nil {
		return p, nil
	}
	verr := &types.ValidationError{Entity: fmt.Sprintf("plan %q", b.ID)}
	ot, err := plan.NewOvertimeRule(b.Override.Type, b.Override.Value)
	if err != nil {
		verr.Add(err.Error())
		return p, verr
	}
	o := &plan.Override{Rule: ot}
	for name, w := range b.Override.Windows {
		tier, err := plan.ParseTier(name)
		if err != nil {
			verr.Add(err.Error())
			continue
		}
		o.Windows[tier] = w.optional()
	}
	p.Override = o
	return p, verr.Err()
}

func newPlanBody(p plan.Plan) planBody {
	active := p.IsActive
	b := planBody{
		ID:           string(p.ID),
		Name:         p.Name,
		Version:      p.Version,
		HourlyRate:   p.Rates.Hourly,
		DailyRate:    p.Rates.Daily,
		WeeklyRate:   p.Rates.Weekly,
		MonthlyRate:  p.Rates.Monthly,
		MinimumHours: p.MinimumHours,
		Discount:     p.Discount,
		IsActive:     &active,
		Conditions:   p.Conditions,
		CreatedAt:    &p.CreatedAt,
		UpdatedAt:    &p.UpdatedAt,
	}
	if p.Override != nil {
		b.Override = &overrideBody{
			Type:    p.Override.Rule.Kind(),
			Value:   p.Override.Rule.Value(),
			Windows: make(map[string]*windowBody),
		}
		for _, t := range plan.Tiers {
			if w := windowOf(p.Override.Window(t)); w != nil {
				b.Override.Windows[t.String()] = w
			}
		}
	}
	return b
}

func (h *AdminHandler) ListPlans(c *gin.Context) {
	plans, err := h.plans.ListAll(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]planBody, 0, len(plans))
	for _, p := range plans {
		out = append(out, newPlanBody(p))
	}
	writeJSON(c, http.StatusOK, map[string]any{"plans": out})
}

func (h *AdminHandler) GetPlan(c *gin.Context) {
	p, err := h.plans.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newPlanBody(*p))
}

func (h *AdminHandler) CreatePlan(c *gin.Context) {
	var body planBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := body.toPlan()
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if err := h.plans.Create(c.Request.Context(), &p); err != nil {
		writeDomainError(c, err)
		return
	}
	h.invalidate(c)
	writeJSON(c, http.StatusCreated, newPlanBody(p))
}

// UpdatePlan requires the version the caller last read; a stale version is
// answered with 409.
func (h *AdminHandler) UpdatePlan(c *gin.Context) {
	var body planBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	body.ID = c.Param("id")
	p, err := body.toPlan()
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if err := h.plans.Update(c.Request.Context(), &p); err != nil {
		writeDomainError(c, err)
		return
	}
	h.invalidate(c)
	writeJSON(c, http.StatusOK, newPlanBody(p))
}

func (h *AdminHandler) DeactivatePlan(c *gin.Context) {
	h.setPlanActive(c, false)
}

func (h *AdminHandler) ActivatePlan(c *gin.Context) {
	h.setPlanActive(c, true)
}

func (h *AdminHandler) setPlanActive(c *gin.Context, active bool) {
	id := types.ID(c.Param("id"))
	if err := h.plans.SetActive(c.Request.Context(), id, active); err != nil {
		writeDomainError(c, err)
		return
	}
	h.invalidate(c)
	writeJSON(c, http.StatusOK, map[string]any{"id": id, "is_active": active})
}

// rules

type ruleBody struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	DayOfWeek  *int            `json:"day_of_week"`
	Window     *windowBody     `json:"window"`
	Multiplier decimal.Decimal `json:"multiplier"`
	IsActive   *bool           `json:"is_active"`
	Priority   int             `json:"priority"`
}

func (b ruleBody) toRule() rule.Rule {
	r := rule.Rule{
		ID:         types.ID(b.ID),
		Name:       b.Name,
		Window:     b.Window.optional(),
		Multiplier: b.Multiplier,
		IsActive:   b.IsActive == nil || *b.IsActive,
		Priority:   b.Priority,
	}
	if b.DayOfWeek != nil {
		wd := time.Weekday(*b.DayOfWeek)
		r.DayOfWeek = &wd
	}
	return r
}

func newRuleBody(r rule.Rule) ruleBody {
	active := r.IsActive
	b := ruleBody{
		ID:         string(r.ID),
		Name:       r.Name,
		Window:     windowOf(r.Window),
		Multiplier: r.Multiplier,
		IsActive:   &active,
		Priority:   r.Priority,
	}
	if r.DayOfWeek != nil {
		d := int(*r.DayOfWeek)
		b.DayOfWeek = &d
	}
	return b
}

func (h *AdminHandler) ListRules(c *gin.Context) {
	rules, err := h.rules.ListAll(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]ruleBody, 0, len(rules))
	for _, r := range rules {
		out = append(out, newRuleBody(r))
	}
	writeJSON(c, http.StatusOK, map[string]any{"rules": out})
}

func (h *AdminHandler) GetRule(c *gin.Context) {
	r, err := h.rules.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newRuleBody(*r))
}

func (h *AdminHandler) CreateRule(c *gin.Context) {
	var body ruleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r := body.toRule()
	if err := h.rules.Create(c.Request.Context(), &r); err != nil {
		writeDomainError(c, err)
		return
	}
	h.invalidate(c)
	writeJSON(c, http.StatusCreated, newRuleBody(r))
}

func (h *AdminHandler) UpdateRule(c *gin.Context) {
	var body ruleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	body.ID = c.Param("id")
	r := body.toRule()
	if err := h.rules.Update(c.Request.Context(), &r); err != nil {
		writeDomainError(c, err)
		return
	}
	h.invalidate(c)
	writeJSON(c, http.StatusOK, newRuleBody(r))
}

// promotions

type promotionBody struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	DiscountType  string          `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	UsageLimit    *int64          `json:"usage_limit"`
	UsageCount    int64           `json:"usage_count"`
	IsActive      *bool           `json:"is_active"`
	PlanIDs       []string        `json:"plan_ids"`
}

func (b promotionBody) toPromotion() (promotion.Promotion, error) {
	p := promotion.Promotion{
		ID:         types.ID(b.ID),
		Name:       b.Name,
		StartDate:  b.StartDate,
		EndDate:    b.EndDate,
		UsageLimit: b.UsageLimit,
		IsActive:   b.IsActive == nil || *b.IsActive,
		PlanIDs:    make(map[types.ID]struct{}, len(b.PlanIDs)),
	}
	for _, id := range b.PlanIDs {
		p.PlanIDs[types.ID(id)] = struct{}{}
	}
	d, err := promotion.NewDiscount(b.DiscountType, b.DiscountValue)
	if err != nil {
		return p, &types.ValidationError{Entity: fmt.Sprintf("promotion %q", b.ID), Problems: []string{err.Error()}}
	}
	p.Discount = d
	return p, nil
}

func newPromotionBody(p promotion.Promotion) promotionBody {
	active := p.IsActive
	b := promotionBody{
		ID:            string(p.ID),
		Name:          p.Name,
		DiscountType:  p.Discount.Kind(),
		DiscountValue: p.Discount.Value(),
		StartDate:     p.StartDate,
		EndDate:       p.EndDate,
		UsageLimit:    p.UsageLimit,
		UsageCount:    p.UsageCount,
		IsActive:      &active,
	}
	for _, id := range p.PlanIDList() {
		b.PlanIDs = append(b.PlanIDs, string(id))
	}
	return b
}

func (h *AdminHandler) ListPromotions(c *gin.Context) {
	promos, err := h.promotions.ListAll(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]promotionBody, 0, len(promos))
	for _, p := range promos {
		out = append(out, newPromotionBody(p))
	}
	writeJSON(c, http.StatusOK, map[string]any{"promotions": out})
}

func (h *AdminHandler) GetPromotion(c *gin.Context) {
	p, err := h.promotions.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newPromotionBody(*p))
}

func (h *AdminHandler) CreatePromotion(c *gin.Context) {
	var body promotionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := body.toPromotion()
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if err := h.promotions.Create(c.Request.Context(), &p); err != nil {
		writeDomainError(c, err)
		return
	}
	h.invalidate(c)
	writeJSON(c, http.StatusCreated, newPromotionBody(p))
}

// UpdatePromotion never changes usage_count; only charges move it.
func (h *AdminHandler) UpdatePromotion(c *gin.Context) {
	var body promotionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	body.ID = c.Param("id")
	p, err := body.toPromotion()
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if err := h.promotions.Update(c.Request.Context(), &p); err != nil {
		writeDomainError(c, err)
		return
	}
	h.invalidate(c)
	writeJSON(c, http.StatusOK, newPromotionBody(p))
}

func (h *AdminHandler) InvalidateSnapshot(c *gin.Context) {
	if err := h.invalidator.InvalidateAll(c.Request.Context()); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, map[string]any{"status": "invalidated"})
}

// invalidate is best effort: the write already succeeded and the refresher
// will pick it up on its next tick.
func (h *AdminHandler) invalidate(c *gin.Context) {
	if err := h.invalidator.InvalidateAll(c.Request.Context()); err != nil {
		_ = c.Error(err)
	}
}
