package controllers

import (
	"net/http"
	"strconv"

	"github.com/osvaldoandrade/flowdb/internal/services"

	"github.com/gin-gonic/gin"
)

type getFlowController struct{ svc services.FlowService }

func NewGetFlowController(svc services.FlowService) *getFlowController {
	return &getFlowController{svc}
}

func (h *getFlowController) Handle(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type getWorkController struct{ svc services.FlowService }

func NewGetWorkController(svc services.FlowService) *getWorkController {
	return &getWorkController{svc}
}

// Handle accepts negative indexes, counted from the last work.
func (h *getWorkController) Handle(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return
	}
	work, err := h.svc.Work(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, work)
}
