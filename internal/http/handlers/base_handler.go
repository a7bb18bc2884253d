// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"velo/internal/modules/plan"
	"velo/internal/modules/pricing"
	"velo/internal/modules/promotion"
	"velo/internal/modules/rule"
	"velo/internal/types"
)

type errorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

type windowBody struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func windowOf(w types.OptionalWindow) *windowBody {
	hw, ok := w.Get()
	if !ok {
		return nil
	}
	return &windowBody{Start: hw.Start, End: hw.End}
}

func (w *windowBody) optional() types.OptionalWindow {
	if w == nil {
		return types.NoWindow()
	}
	return types.SomeWindow(w.Start, w.End)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps engine and store errors onto HTTP statuses. No
// partial price is ever written alongside an error.
func writeDomainError(c *gin.Context, err error) {
	var verr *types.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: "validation failed", Problems: verr.Problems})
	case errors.Is(err, pricing.ErrInvalidDuration):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, pricing.ErrPlanNotFound),
		errors.Is(err, plan.ErrNotFound),
		errors.Is(err, rule.ErrNotFound),
		errors.Is(err, promotion.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, pricing.ErrPlanInactive),
		errors.Is(err, plan.ErrVersionConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, pricing.ErrInvalidConfiguration):
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "invalid pricing configuration")
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
