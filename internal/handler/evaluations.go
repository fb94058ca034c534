package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"polyresearch/internal/evaluation"
	"polyresearch/internal/repository"
)

type EvaluationHandler struct {
	Repo   repository.Repository
	Engine *evaluation.Engine
}

func (h *EvaluationHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/evaluations")
	group.POST("", h.evaluate)
	group.GET("", h.listEvaluations)
	group.GET("/:id", h.getEvaluation)
}

type evaluateRequest struct {
	MarketID string `json:"market_id" binding:"required"`
}

func (h *EvaluationHandler) evaluate(c *gin.Context) {
	if h.Engine == nil {
		Error(c, http.StatusInternalServerError, "evaluation engine unavailable", nil)
		return
	}
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	eval, err := h.Engine.EvaluateMarket(c.Request.Context(), strings.TrimSpace(req.MarketID))
	if err != nil {
		FailFromError(c, err)
		return
	}
	Ok(c, eval, nil)
}

func (h *EvaluationHandler) listEvaluations(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListEvaluationsParams{
		Limit:     limit,
		Offset:    offset,
		MarketID:  strQueryPtr(c, "market_id"),
		Recommend: boolQueryPtr(c, "recommend"),
		OrderBy:   "created_at",
		Asc:       boolPtr(false),
	}
	items, err := h.Repo.ListEvaluations(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountEvaluations(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *EvaluationHandler) getEvaluation(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid evaluation id", nil)
		return
	}
	eval, err := h.Repo.GetEvaluationByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if eval == nil {
		Error(c, http.StatusNotFound, "evaluation not found", nil)
		return
	}
	Ok(c, eval, nil)
}
