package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/techbrief/internal/store"
)

const defaultSearchLimit = 20

// HistoryHandler serves saved decisions.
type HistoryHandler struct {
	Store HistoryStore
}

func (h *HistoryHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/search", h.search)
	g.GET("/:id", h.get)
	g.POST("", h.create)
	g.DELETE("/:id", h.remove)
}

func (h *HistoryHandler) list(c echo.Context) error {
	items, err := h.Store.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

func (h *HistoryHandler) search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	limit := defaultSearchLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	items, err := h.Store.Search(c.Request().Context(), q, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

func (h *HistoryHandler) get(c echo.Context) error {
	d, err := h.Store.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "decision not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

type decisionRequest struct {
	Query      string                 `json:"query"`
	Left       string                 `json:"left"`
	Right      string                 `json:"right"`
	Winner     string                 `json:"winner"`
	Rule       string                 `json:"rule"`
	Category   string                 `json:"category"`
	Brief      string                 `json:"brief"`
	Confidence string                 `json:"confidence"`
	Metrics    map[string]interface{} `json:"metrics"`
	Evidence   []string               `json:"evidence"`
	Timestamp  int64                  `json:"timestamp"`
}

// create saves a client-supplied decision. Ids are always server assigned.
func (h *HistoryHandler) create(c echo.Context) error {
	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d := store.Decision{
		Query:      req.Query,
		Left:       req.Left,
		Right:      req.Right,
		Winner:     req.Winner,
		Rule:       req.Rule,
		Category:   req.Category,
		Brief:      req.Brief,
		Confidence: req.Confidence,
		Evidence:   req.Evidence,
		Timestamp:  req.Timestamp,
	}
	if req.Metrics != nil {
		raw, err := json.Marshal(req.Metrics)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		d.Metrics = raw
	}
	saved, err := h.Store.Save(c.Request().Context(), d)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, saved)
}

func (h *HistoryHandler) remove(c echo.Context) error {
	id := c.Param("id")
	err := h.Store.Delete(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "decision not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted", "id": id})
}
