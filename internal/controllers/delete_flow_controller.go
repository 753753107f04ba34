package controllers

import (
	"errors"
	"net/http"

	"github.com/osvaldoandrade/flowdb/internal/services"
	"github.com/osvaldoandrade/flowdb/pkg/persistence"

	"github.com/gin-gonic/gin"
)

type deleteFlowController struct{ svc services.FlowService }

func NewDeleteFlowController(svc services.FlowService) *deleteFlowController {
	return &deleteFlowController{svc}
}

// Handle removes the flow. When only some artifacts failed to go the
// document is already deleted, so the reply is 200 with the failures listed.
func (h *deleteFlowController) Handle(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	if _, err := h.svc.Get(ctx, id); err != nil {
		writeError(c, err)
		return
	}
	err := h.svc.Delete(ctx, id)
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}
	if _, getErr := h.svc.Get(ctx, id); errors.Is(getErr, persistence.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"deleted": id, "artifactErrors": unwrapAll(err)})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func unwrapAll(err error) []string {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range j.Unwrap() {
			out = append(out, unwrapAll(e)...)
		}
		return out
	}
	return []string{err.Error()}
}
