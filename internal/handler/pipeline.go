package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"polyresearch/internal/repository"
)

type PipelineHandler struct {
	Repo repository.Repository
}

func (h *PipelineHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/pipeline/overview", h.overview)
}

func (h *PipelineHandler) overview(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	ctx := c.Request.Context()
	marketCounts, err := h.Repo.CountMarketsByStatus(ctx)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	taskCounts, err := h.Repo.CountResearchTasksByStatus(ctx)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	evaluations, err := h.Repo.CountEvaluations(ctx, repository.ListEvaluationsParams{})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{
		"markets":     marketCounts,
		"tasks":       taskCounts,
		"evaluations": evaluations,
	}, nil)
}
