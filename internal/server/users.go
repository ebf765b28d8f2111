package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/policylens/internal/users"
	"github.com/mohammad-safakhou/policylens/models"
)

type UserService interface {
	Ensure(ctx context.Context, browserID string) (models.User, error)
	Get(ctx context.Context, id string) (models.User, error)
	SetProfile(ctx context.Context, id string, in users.ProfileInput) (models.User, error)
}

type UserHandler struct {
	Users UserService
}

func (h *UserHandler) Register(g *echo.Group) {
	g.POST("", h.ensure)
	g.GET("/:id", h.get)
	g.PUT("/:id/profile", h.profile)
}

// ensure returns the user for a browser installation, creating it on first contact.
func (h *UserHandler) ensure(c echo.Context) error {
	var req struct {
		BrowserID string `json:"browserId"`
	}
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	u, err := h.Users.Ensure(c.Request().Context(), req.BrowserID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) get(c echo.Context) error {
	u, err := h.Users.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) profile(c echo.Context) error {
	var req users.ProfileInput
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	u, err := h.Users.SetProfile(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}
