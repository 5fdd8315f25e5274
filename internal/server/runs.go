package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	core "github.com/mohammad-safakhou/techbrief/internal/agent/core"
	"github.com/mohammad-safakhou/techbrief/internal/budget"
)

// RunsHandler serves comparisons and their live status.
type RunsHandler struct {
	Comparer Comparer
}

func (h *RunsHandler) Register(g *echo.Group) {
	g.POST("/compare", h.compare)
	g.GET("/runs", h.inFlight)
	g.GET("/runs/:id/status", h.status)
}

type compareRequest struct {
	Query string `json:"query"`
	// RunID lets a client poll /runs/:id/status while the request is open.
	RunID string `json:"run_id"`
}

type compareResponse struct {
	ID           string            `json:"id"`
	Query        string            `json:"query"`
	Brief        string            `json:"brief"`
	SliderData   core.SliderData   `json:"slider_data"`
	ValueMetrics core.ValueMetrics `json:"value_metrics"`
	Winner       string            `json:"winner"`
	Rule         string            `json:"rule"`
	OptionA      string            `json:"option_a"`
	OptionB      string            `json:"option_b"`
	Category     core.Category     `json:"category"`
	Degraded     []string          `json:"degraded"`
	Usage        budget.Usage      `json:"usage"`
}

func newCompareResponse(r core.ComparisonResult) compareResponse {
	resp := compareResponse{
		ID:           r.ID,
		Query:        r.Query,
		Brief:        r.Brief,
		SliderData:   r.SliderData,
		ValueMetrics: r.ValueMetrics,
		Winner:       r.Verdict.Winner,
		Rule:         r.Verdict.Rule,
		Degraded:     r.Degraded,
		Usage:        r.Usage,
	}
	if resp.Degraded == nil {
		resp.Degraded = []string{}
	}
	if r.Context != nil {
		resp.OptionA = r.Context.OptionA
		resp.OptionB = r.Context.OptionB
		resp.Category = r.Context.TechCategory
	}
	return resp
}

func (h *RunsHandler) compare(c echo.Context) error {
	var req compareRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	res, err := h.Comparer.RunComparisonWithID(c.Request().Context(), req.RunID, req.Query)
	if err != nil {
		return compareError(err)
	}
	return c.JSON(http.StatusOK, newCompareResponse(res))
}

// compareError maps pipeline failures onto HTTP status codes.
func compareError(err error) error {
	switch {
	case errors.Is(err, core.ErrEmptyQuery):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	case errors.Is(err, core.ErrRunInFlight):
		return echo.NewHTTPError(http.StatusConflict, "run id already in flight").SetInternal(err)
	case errors.Is(err, core.ErrSynthesisFailed):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error()).SetInternal(err)
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "comparison timed out").SetInternal(err)
	case errors.Is(err, context.Canceled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "comparison cancelled").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
}

func (h *RunsHandler) status(c echo.Context) error {
	st, ok := h.Comparer.Status(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "run not in flight")
	}
	return c.JSON(http.StatusOK, st)
}

func (h *RunsHandler) inFlight(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"items": h.Comparer.InFlight()})
}

func catalog(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"categories": core.Categories()})
}
