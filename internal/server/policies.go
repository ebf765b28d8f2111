package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/policylens/internal/policies"
	"github.com/mohammad-safakhou/policylens/models"
)

type PolicyService interface {
	CreateFromLink(ctx context.Context, p policies.CreateParams) (models.Policy, error)
	FindByID(ctx context.Context, k policies.Key) (models.Policy, error)
	Get(ctx context.Context, id string) (models.Policy, error)
	FindByAny(ctx context.Context, f policies.Filter, proj policies.Projection) ([]models.Policy, error)
	Update(ctx context.Context, id string, u policies.PolicyUpdate) (models.Policy, error)
	Delete(ctx context.Context, id string) error
}

type PolicyHandler struct {
	Policies PolicyService
}

func (h *PolicyHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/key/:hostname/:type/:version", h.byKey)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

// create acquires a document and stores it as a new policy version.
func (h *PolicyHandler) create(c echo.Context) error {
	var req policies.CreateParams
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	p, err := h.Policies.CreateFromLink(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

// list filters policies by query parameters. Bodies are omitted unless content=true.
func (h *PolicyHandler) list(c echo.Context) error {
	var f policies.Filter
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &f); err != nil {
		return bindError(err)
	}
	var proj policies.Projection
	if v := c.QueryParam("content"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "content must be a boolean")
		}
		proj.Content = include
	}
	items, err := h.Policies.FindByAny(c.Request().Context(), f, proj)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *PolicyHandler) byKey(c echo.Context) error {
	p, err := h.Policies.FindByID(c.Request().Context(), policies.Key{
		Hostname: c.Param("hostname"),
		Type:     models.PolicyType(c.Param("type")),
		Version:  c.Param("version"),
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PolicyHandler) get(c echo.Context) error {
	p, err := h.Policies.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PolicyHandler) update(c echo.Context) error {
	var req policies.PolicyUpdate
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	p, err := h.Policies.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PolicyHandler) delete(c echo.Context) error {
	if err := h.Policies.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
