package controllers

import (
	"fmt"
	"net/http"

	"github.com/osvaldoandrade/flowdb/internal/services"

	"github.com/gin-gonic/gin"
)

type getFileController struct{ svc services.FlowService }

func NewGetFileController(svc services.FlowService) *getFileController {
	return &getFileController{svc}
}

// Handle streams the artifact stored in :slot of the node addressed by
// ?path= ("" for the flow, "w0" for a work, "w0/t1" for a task).
func (h *getFileController) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	fh, err := h.svc.OpenFile(ctx, c.Param("id"), c.Query("path"), c.Param("slot"))
	if err != nil {
		writeError(c, err)
		return
	}
	data, err := fh.Read(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	contentType := "application/octet-stream"
	if fh.IsText() {
		contentType = "text/plain; charset=utf-8"
	}
	if name := fh.Filename(); name != "" {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	c.Header("X-Flowdb-Ext", fh.Ext())
	c.Data(http.StatusOK, contentType, data)
}
