package server

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/techbrief/config"
	core "github.com/mohammad-safakhou/techbrief/internal/agent/core"
	"github.com/mohammad-safakhou/techbrief/internal/agent/telemetry"
	"github.com/mohammad-safakhou/techbrief/internal/budget"
)

// OpsHandler exposes operational endpoints (spend summary, budget limits, in-flight runs).
type OpsHandler struct {
	runs   Comparer
	tele   *telemetry.Telemetry
	limits budget.Config
}

func NewOpsHandler(runs Comparer, tele *telemetry.Telemetry, b config.BudgetConfig) *OpsHandler {
	return &OpsHandler{runs: runs, tele: tele, limits: budget.FromLimits(b.MaxCost, b.MaxTokens, b.MaxTimeSeconds)}
}

func (h *OpsHandler) Register(g *echo.Group) {
	g.GET("/usage", h.usage)
	g.GET("/dashboard", h.dashboard)
}

type budgetPayload struct {
	MaxCost        *float64 `json:"max_cost,omitempty"`
	MaxTokens      *int64   `json:"max_tokens,omitempty"`
	MaxTimeSeconds *int64   `json:"max_time_seconds,omitempty"`
}

type usagePayload struct {
	Summary  telemetry.CostSummary   `json:"summary"`
	Budget   budgetPayload           `json:"budget"`
	InFlight []core.ProcessingStatus `json:"in_flight"`
}

func (h *OpsHandler) snapshot() usagePayload {
	p := usagePayload{
		Summary:  h.tele.Summary(),
		Budget:   budgetPayload{MaxCost: h.limits.MaxCost, MaxTokens: h.limits.MaxTokens, MaxTimeSeconds: h.limits.MaxTimeSeconds},
		InFlight: []core.ProcessingStatus{},
	}
	if h.runs != nil {
		p.InFlight = h.runs.InFlight()
	}
	return p
}

func (h *OpsHandler) usage(c echo.Context) error {
	return c.JSON(http.StatusOK, h.snapshot())
}

// dashboard renders the usage payload as a minimal HTML page without JS.
func (h *OpsHandler) dashboard(c echo.Context) error {
	p := h.snapshot()
	var b strings.Builder
	b.WriteString("<!doctype html><html><head><meta charset=\"utf-8\"><meta name=\"viewport\" content=\"width=device-width, initial-scale=1\"><title>Ops Dashboard</title></head><body style=\"font-family:system-ui,-apple-system,Segoe UI,Roboto,Helvetica,Arial,sans-serif; color:#e5e7eb; background:#0f172a;\">")
	b.WriteString("<div style=\"max-width:960px;margin:24px auto;padding:0 16px\">")
	b.WriteString("<h1 style=\"font-size:18px;font-weight:600;margin-bottom:8px\">Operations Dashboard</h1>")
	section := func(title string, v interface{}) {
		b.WriteString("<h2 style=\"font-size:14px;font-weight:600;margin:16px 0 8px\">")
		b.WriteString(template.HTMLEscapeString(title))
		b.WriteString("</h2><pre style=\"background:#0b1220;border:1px solid #1f2937;border-radius:8px;padding:12px;overflow:auto\"><code>")
		if raw, err := json.MarshalIndent(v, "", "  "); err == nil {
			b.WriteString(template.HTMLEscapeString(string(raw)))
		}
		b.WriteString("</code></pre>")
	}
	section("Spend", p.Summary)
	section("Budget", p.Budget)
	section("In flight", p.InFlight)
	b.WriteString("</div></body></html>")
	return c.HTML(http.StatusOK, b.String())
}
