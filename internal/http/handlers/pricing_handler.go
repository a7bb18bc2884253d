// README: Quote and charge handlers used by the ride service.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"velo/internal/modules/pricing"
	"velo/internal/types"
)

type PricingService interface {
	Quote(ctx context.Context, req pricing.QuoteRequest) (pricing.Result, error)
	Charge(ctx context.Context, req pricing.ChargeRequest) (pricing.Result, error)
}

type PricingHandler struct {
	pricing PricingService
}

func NewPricingHandler(svc PricingService) *PricingHandler {
	return &PricingHandler{pricing: svc}
}

type quoteReq struct {
	PlanID    string    `json:"plan_id" binding:"required"`
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
}

type chargeReq struct {
	quoteReq
	// RideID keys promotion consumption and the audit trail; a retried
	// charge must send the same id.
	RideID string `json:"ride_id" binding:"required"`
}

type priceResp struct {
	PlanID            types.ID         `json:"plan_id"`
	PlanVersion       int              `json:"plan_version"`
	Tier              string           `json:"tier"`
	Units             int64            `json:"units"`
	BilledMinutes     int64            `json:"billed_minutes"`
	Rate              string           `json:"rate"`
	OverrideApplied   bool             `json:"override_applied"`
	Base              string           `json:"base"`
	RuleID            *types.ID        `json:"rule_id"`
	RuleMultiplier    string           `json:"rule_multiplier"`
	Subtotal          string           `json:"subtotal"`
	PlanDiscount      string           `json:"plan_discount"`
	PromotionID       *types.ID        `json:"promotion_id"`
	PromotionDiscount string           `json:"promotion_discount"`
	Discount          string           `json:"discount"`
	Total             int64            `json:"total"`
	Currency          string           `json:"currency"`
	SnapshotVersion   uint64           `json:"snapshot_version"`
	Breakdown         map[string]int64 `json:"breakdown"`
	RideID            string           `json:"ride_id,omitempty"`
}

func newPriceResp(r pricing.Result) priceResp {
	return priceResp{
		PlanID:            r.PlanID,
		PlanVersion:       r.PlanVersion,
		Tier:              r.Tier.String(),
		Units:             r.Units,
		BilledMinutes:     int64(r.BilledDuration / time.Minute),
		Rate:              money(r.Rate),
		OverrideApplied:   r.OverrideApplied,
		Base:              money(r.Base),
		RuleID:            r.RuleID,
		RuleMultiplier:    r.RuleMultiplier.String(),
		Subtotal:          money(r.Subtotal),
		PlanDiscount:      money(r.PlanDiscount),
		PromotionID:       r.PromotionID,
		PromotionDiscount: money(r.PromotionDiscount),
		Discount:          money(r.Discount),
		Total:             r.Total.Amount,
		Currency:          r.Total.Currency,
		SnapshotVersion:   r.SnapshotVersion,
		Breakdown:         r.Breakdown(),
	}
}

func (h *PricingHandler) Quote(c *gin.Context) {
	var req quoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request: plan_id, start_time and end_time are required")
		return
	}
	res, err := h.pricing.Quote(c.Request.Context(), pricing.QuoteRequest{
		PlanID: types.ID(req.PlanID),
		Start:  req.StartTime,
		End:    req.EndTime,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newPriceResp(res))
}

func (h *PricingHandler) Charge(c *gin.Context) {
	var req chargeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request: plan_id, ride_id, start_time and end_time are required")
		return
	}
	res, err := h.pricing.Charge(c.Request.Context(), pricing.ChargeRequest{
		PlanID: types.ID(req.PlanID),
		RideID: req.RideID,
		Start:  req.StartTime,
		End:    req.EndTime,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	resp := newPriceResp(res)
	resp.RideID = req.RideID
	writeJSON(c, http.StatusOK, resp)
}
