package controllers

import (
	"net/http"
	"strings"

	"github.com/osvaldoandrade/flowdb/internal/services"
	"github.com/osvaldoandrade/flowdb/pkg/domain"

	"github.com/gin-gonic/gin"
)

type listFlowsController struct{ svc services.FlowService }

func NewListFlowsController(svc services.FlowService) *listFlowsController {
	return &listFlowsController{svc: svc}
}

// Handle lists every flow, or only those with ?status= when given.
func (h *listFlowsController) Handle(c *gin.Context) {
	var (
		out []*domain.FlowRecord
		err error
	)
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		out, err = h.svc.ByStatus(c.Request.Context(), status)
	} else {
		out, err = h.svc.List(c.Request.Context())
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if out == nil {
		out = []*domain.FlowRecord{}
	}
	c.JSON(http.StatusOK, out)
}

type completedFlowsController struct{ svc services.FlowService }

func NewCompletedFlowsController(svc services.FlowService) *completedFlowsController {
	return &completedFlowsController{svc: svc}
}

func (h *completedFlowsController) Handle(c *gin.Context) {
	out, err := h.svc.Completed(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if out == nil {
		out = []*domain.FlowRecord{}
	}
	c.JSON(http.StatusOK, out)
}
