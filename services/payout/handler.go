package payout

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Trigger runs the batch synchronously and returns the summary. It sits
// behind the operational credential; it is not a user-facing endpoint.
func (h *Handler) Trigger(c *gin.Context) {
	summary, err := h.svc.Run(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
