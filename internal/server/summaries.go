package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/policylens/internal/summary"
)

type SummaryService interface {
	CreateSummary(ctx context.Context, req summary.Request) (summary.Result, error)
	GetSummaryByPolicyID(ctx context.Context, req summary.PolicyRequest) (summary.Result, error)
}

type SummaryHandler struct {
	Summaries SummaryService
}

func (h *SummaryHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.POST("/policies/:id", h.byPolicy)
}

func (h *SummaryHandler) create(c echo.Context) error {
	var req summary.Request
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	res, err := h.Summaries.CreateSummary(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// byPolicy summarises a stored policy in a fresh chat.
func (h *SummaryHandler) byPolicy(c echo.Context) error {
	var req struct {
		UserID  string `json:"userId"`
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	res, err := h.Summaries.GetSummaryByPolicyID(c.Request().Context(), summary.PolicyRequest{
		PolicyID: c.Param("id"),
		UserID:   req.UserID,
		Message:  req.Message,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}
