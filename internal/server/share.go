package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/techbrief/session"
	"github.com/mohammad-safakhou/techbrief/session/session_models"
)

// ShareHandler publishes finished comparisons under short ids.
type ShareHandler struct {
	Store       session.Store
	RecentLimit int
}

func (h *ShareHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("/recent", h.recent)
	g.GET("/stats", h.stats)
	g.GET("/:id", h.get)
}

func (h *ShareHandler) create(c echo.Context) error {
	var req session_models.SharedComparison
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" || strings.TrimSpace(req.Brief) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query and brief required")
	}
	saved, err := h.Store.Save(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id":    saved.ID,
		"url":   "/share/" + saved.ID,
		"share": saved,
	})
}

func (h *ShareHandler) get(c echo.Context) error {
	s, ok := h.Store.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "shared comparison not found")
	}
	return c.JSON(http.StatusOK, s)
}

func (h *ShareHandler) recent(c echo.Context) error {
	limit := h.RecentLimit
	if limit <= 0 {
		limit = 10
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": h.Store.Recent(limit)})
}

func (h *ShareHandler) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Store.Stats())
}
