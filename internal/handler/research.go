package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"polyresearch/internal/repository"
	"polyresearch/internal/research"
)

type ResearchHandler struct {
	Repo         repository.Repository
	Orchestrator *research.Orchestrator
}

func (h *ResearchHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/research")
	group.POST("", h.dispatch)
	group.GET("", h.listTasks)
	group.GET("/:id", h.getTask)
	group.POST("/cleanup", h.cleanup)
}

type dispatchRequest struct {
	MarketID     string `json:"market_id" binding:"required"`
	Technique    string `json:"technique" binding:"required"`
	Query        string `json:"query"`
	Model        string `json:"model"`
	AutoEvaluate bool   `json:"auto_evaluate"`
}

func (h *ResearchHandler) dispatch(c *gin.Context) {
	if h.Orchestrator == nil {
		Error(c, http.StatusInternalServerError, "orchestrator unavailable", nil)
		return
	}
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	task, err := h.Orchestrator.Dispatch(c.Request.Context(), research.DispatchRequest{
		MarketID:     strings.TrimSpace(req.MarketID),
		Technique:    strings.TrimSpace(req.Technique),
		Query:        req.Query,
		Model:        req.Model,
		AutoEvaluate: req.AutoEvaluate,
	})
	if err != nil {
		FailFromError(c, err)
		return
	}
	Ok(c, task, nil)
}

func (h *ResearchHandler) listTasks(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListResearchTasksParams{
		Limit:     limit,
		Offset:    offset,
		MarketID:  strQueryPtr(c, "market_id"),
		Status:    strQueryPtr(c, "status"),
		Technique: strQueryPtr(c, "technique"),
		Since:     timeQueryPtr(c, "since"),
		OrderBy:   "created_at",
		Asc:       boolPtr(false),
	}
	items, err := h.Repo.ListResearchTasks(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountResearchTasks(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *ResearchHandler) getTask(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	ctx := c.Request.Context()
	task, err := h.Repo.GetResearchTaskByID(ctx, c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if task == nil {
		Error(c, http.StatusNotFound, "task not found", nil)
		return
	}
	sources, err := h.Repo.ListResearchSourcesByTaskIDs(ctx, []string{task.ID})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	events, err := h.Repo.ListTaskEventsByTaskID(ctx, task.ID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{
		"task":    task,
		"sources": sources,
		"events":  events,
	}, nil)
}

func (h *ResearchHandler) cleanup(c *gin.Context) {
	if h.Orchestrator == nil {
		Error(c, http.StatusInternalServerError, "orchestrator unavailable", nil)
		return
	}
	threshold := durationQuery(c, "threshold")
	swept, err := h.Orchestrator.Cleanup(c.Request.Context(), threshold)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"swept": swept}, nil)
}
