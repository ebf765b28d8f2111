package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/policylens/models"
)

type TagService interface {
	CreateOrGet(ctx context.Context, name string) (models.Tag, error)
	CreateOrGetIDs(ctx context.Context, names []string) ([]string, error)
	List(ctx context.Context) ([]models.Tag, error)
}

type TagHandler struct {
	Tags TagService
}

func (h *TagHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.POST("", h.create)
}

func (h *TagHandler) list(c echo.Context) error {
	items, err := h.Tags.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []models.Tag{}
	}
	return c.JSON(http.StatusOK, items)
}

// create accepts either {"name": ...} or {"names": [...]}.
func (h *TagHandler) create(c echo.Context) error {
	var req struct {
		Name  string   `json:"name"`
		Names []string `json:"names"`
	}
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	ctx := c.Request().Context()
	if len(req.Names) > 0 {
		ids, err := h.Tags.CreateOrGetIDs(ctx, req.Names)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, map[string][]string{"ids": ids})
	}
	t, err := h.Tags.CreateOrGet(ctx, req.Name)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}
