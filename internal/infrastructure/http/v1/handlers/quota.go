package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"easyentrepreneur/internal/domain/quota"
	"easyentrepreneur/internal/infrastructure/http/v1/dto"
)

// UsageReporter reports monthly consumption.
type UsageReporter interface {
	Usage(ctx context.Context, tenantID string) (quota.Usage, error)
}

// QuotaHandler exposes the monthly document allowance.
type QuotaHandler struct {
	*BaseHandler
	usage UsageReporter
}

func NewQuotaHandler(base *BaseHandler, usage UsageReporter) *QuotaHandler {
	return &QuotaHandler{BaseHandler: base, usage: usage}
}

// Get handles GET /quota.
// max is always numeric; uncapped tiers report 99999 with unlimited=true.
func (h *QuotaHandler) Get(c *gin.Context) {
	tenantID, ok := h.TenantID(c)
	if !ok {
		return
	}

	u, err := h.usage.Usage(c.Request.Context(), tenantID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromUsage(u))
}
