package controllers

import (
	"net/http"
	"strconv"

	"github.com/osvaldoandrade/flowdb/internal/services"

	"github.com/gin-gonic/gin"
)

type getStructureController struct{ svc services.FlowService }

func NewGetStructureController(svc services.FlowService) *getStructureController {
	return &getStructureController{svc}
}

// Handle summarizes the structure of the task at ?path=w<i>/t<j>. With
// ?final=true the relaxed structure is used.
func (h *getStructureController) Handle(c *gin.Context) {
	final := false
	if v := c.Query("final"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "final must be a boolean"})
			return
		}
		final = b
	}
	st, err := h.svc.Structure(c.Request.Context(), c.Param("id"), c.Query("path"), final)
	if err != nil {
		writeError(c, err)
		return
	}
	sites := make([]gin.H, 0, st.NumSites())
	for _, site := range st.Sites {
		sites = append(sites, gin.H{"label": site.Label, "abc": site.Frac})
	}
	c.JSON(http.StatusOK, gin.H{
		"formula":  st.Formula(),
		"numSites": st.NumSites(),
		"volume":   st.Volume(),
		"charge":   st.Charge,
		"lattice":  st.Lattice.Matrix,
		"sites":    sites,
	})
}
