package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"polyresearch/internal/catalog"
	"polyresearch/internal/repository"
)

type MarketHandler struct {
	Repo repository.Repository
	Sync *catalog.SyncService
}

func (h *MarketHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/markets")
	group.GET("", h.listMarkets)
	group.GET("/:id", h.getMarket)
	group.POST("/sync", h.syncMarkets)
}

func (h *MarketHandler) listMarkets(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListMarketsParams{
		Limit:    limit,
		Offset:   offset,
		Status:   strQueryPtr(c, "status"),
		Question: strQueryPtr(c, "q"),
		OrderBy:  "updated_at",
		Asc:      boolPtr(false),
	}
	items, err := h.Repo.ListMarkets(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountMarkets(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *MarketHandler) getMarket(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	market, err := h.Repo.GetMarketByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if market == nil {
		Error(c, http.StatusNotFound, "market not found", nil)
		return
	}
	Ok(c, market, nil)
}

func (h *MarketHandler) syncMarkets(c *gin.Context) {
	if h.Sync == nil {
		Error(c, http.StatusServiceUnavailable, "market sync disabled", nil)
		return
	}
	result, err := h.Sync.Sync(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}
