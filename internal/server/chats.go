package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/policylens/internal/chats"
	"github.com/mohammad-safakhou/policylens/models"
)

const defaultChatPageLimit = 20

type ChatService interface {
	Create(ctx context.Context, in chats.CreateInput) (models.Chat, error)
	FindByID(ctx context.Context, id string) (models.Chat, error)
	Update(ctx context.Context, id string, in chats.UpdateInput) (models.Chat, error)
	Delete(ctx context.Context, id, userID string) error
	Thread(ctx context.Context, chatID string) ([]models.Message, error)
	Continue(ctx context.Context, chatID, userText string) (models.Message, error)
	GetUserChatsPaginated(ctx context.Context, userID string, page, limit int) (models.ChatPage, error)
}

type ChatHandler struct {
	Chats ChatService
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/messages", h.thread)
	g.POST("/:id/messages", h.continueChat)
}

func intQuery(c echo.Context, name string, def int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be an integer")
	}
	return n, nil
}

// list pages through a user's chats: ?userId=&page=&limit=
func (h *ChatHandler) list(c echo.Context) error {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		return err
	}
	limit, err := intQuery(c, "limit", defaultChatPageLimit)
	if err != nil {
		return err
	}
	res, err := h.Chats.GetUserChatsPaginated(c.Request().Context(), c.QueryParam("userId"), page, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *ChatHandler) create(c echo.Context) error {
	var req chats.CreateInput
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	chat, err := h.Chats.Create(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, chat)
}

func (h *ChatHandler) get(c echo.Context) error {
	chat, err := h.Chats.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) update(c echo.Context) error {
	var req chats.UpdateInput
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	chat, err := h.Chats.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) delete(c echo.Context) error {
	if err := h.Chats.Delete(c.Request().Context(), c.Param("id"), c.QueryParam("userId")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// thread returns the user-visible messages of a chat.
func (h *ChatHandler) thread(c echo.Context) error {
	msgs, err := h.Chats.Thread(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *ChatHandler) continueChat(c echo.Context) error {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	msg, err := h.Chats.Continue(c.Request().Context(), c.Param("id"), req.Message)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, msg)
}
