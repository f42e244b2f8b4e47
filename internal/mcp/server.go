// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the captured IOS Scale sessions as read-only MCP tools.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/ios-scale/internal/core"
	"github.com/valter-silva-au/ios-scale/internal/export"
	"github.com/valter-silva-au/ios-scale/internal/observability"
	"github.com/valter-silva-au/ios-scale/pkg/models"
)

// SessionSource is the read side of the session library.
type SessionSource interface {
	List(q models.SessionQuery) []models.Session
	Get(sessionID string) (models.Session, error)
	Resolve(ids []string) ([]models.Session, error)
	Stats(q models.SessionQuery) models.SessionSummary
}

// Server exposes sessions, exports, metrics and alerts as MCP tools.
type Server struct {
	server      *gomcp.Server
	sessions    SessionSource
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
	version     string
}

// NewServer creates a new MCP server. metricsCalc and alertEngine may be nil
// if the event log is unavailable.
func NewServer(sessions SessionSource, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		sessions:    sessions,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
		version:     version,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "iosscale", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client
// disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type listSessionsInput struct {
	Modality string `json:"modality,omitempty" jsonschema:"only sessions of this modality (e.g. basicIOS, setMembership)"`
	Trashed  bool   `json:"trashed,omitempty" jsonschema:"list trashed sessions instead of active ones"`
	Filter   string `json:"filter,omitempty" jsonschema:"case-insensitive text matched against modality name and notes"`
	Sort     string `json:"sort,omitempty" jsonschema:"newest (default), oldest, most-measurements or modality"`
}

type sessionOutput struct {
	ID               string              `json:"id"`
	Modality         string              `json:"modality"`
	DisplayName      string              `json:"display_name"`
	CreatedAt        string              `json:"created_at"`
	Notes            string              `json:"notes,omitempty"`
	Status           string              `json:"status"`
	TrashedAt        string              `json:"trashed_at,omitempty"`
	MeasurementCount int                 `json:"measurement_count"`
	Measurements     []measurementOutput `json:"measurements,omitempty"`
}

type measurementOutput struct {
	ID              string             `json:"id"`
	Timestamp       string             `json:"timestamp"`
	PrimaryValue    float64            `json:"primary_value"`
	SecondaryValues map[string]float64 `json:"secondary_values,omitempty"`
}

type listSessionsOutput struct {
	Sessions []sessionOutput `json:"sessions"`
	Count    int             `json:"count"`
}

type getSessionInput struct {
	SessionID string `json:"session_id" jsonschema:"required,the session identifier"`
}

type sessionStatsInput struct {
	Modality string `json:"modality,omitempty" jsonschema:"only sessions of this modality"`
	Trashed  bool   `json:"trashed,omitempty" jsonschema:"summarize trashed sessions instead of active ones"`
}

type sessionStatsOutput struct {
	Sessions int     `json:"sessions"`
	Count    int     `json:"count"`
	Average  float64 `json:"average"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

type exportSessionsInput struct {
	SessionIDs      []string `json:"session_ids" jsonschema:"required,ids of the sessions to export, in output order"`
	Format          string   `json:"format,omitempty" jsonschema:"csv, tsv or json. Defaults to csv."`
	IncludeMetadata bool     `json:"include_metadata,omitempty" jsonschema:"add scales, creation time and notes to the output"`
}

type exportSessionsOutput struct {
	Filename    string `json:"filename"`
	Format      string `json:"format"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	SessionsCreated        int            `json:"sessions_created"`
	SessionsDiscarded      int            `json:"sessions_discarded"`
	SessionsTrashed        int            `json:"sessions_trashed"`
	SessionsRestored       int            `json:"sessions_restored"`
	SessionsPurged         int            `json:"sessions_purged"`
	MeasurementsSaved      int            `json:"measurements_saved"`
	SaveFailures           int            `json:"save_failures"`
	MeasurementsByModality map[string]int `json:"measurements_by_modality"`
	Exports                int            `json:"exports"`
	ExportFailures         int            `json:"export_failures"`
	ConfigFallbacks        int            `json:"config_fallbacks"`
	EventCount             int            `json:"event_count"`
	OldestEvent            string         `json:"oldest_event,omitempty"`
	NewestEvent            string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_sessions",
		Description: "List capture sessions with optional modality, text and trash filters. Measurements are not included.",
	}, s.handleListSessions)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_session",
		Description: "Get one session by ID including every measurement in capture order.",
	}, s.handleGetSession)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "session_stats",
		Description: "Summarize primary values (count, average, min, max) across the matching sessions.",
	}, s.handleSessionStats)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "export_sessions",
		Description: "Serialize the given sessions as CSV, TSV or JSON and return the file content.",
	}, s.handleExportSessions)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated capture metrics from the event log: sessions, saved measurements, failures and exports.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (repeated save failures, failed exports, config fallbacks, stale trash).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleListSessions(_ context.Context, _ *gomcp.CallToolRequest, input listSessionsInput) (*gomcp.CallToolResult, listSessionsOutput, error) {
	q, err := buildQuery(input.Modality, input.Trashed)
	if err != nil {
		return errorResult(err.Error()), listSessionsOutput{}, nil
	}
	q.TextFilter = input.Filter
	if input.Sort != "" {
		order, ok := parseSort(input.Sort)
		if !ok {
			return errorResult(fmt.Sprintf("invalid sort %q: must be one of newest, oldest, most-measurements, modality", input.Sort)), listSessionsOutput{}, nil
		}
		q.Sort = order
	}

	sessions := s.sessions.List(q)
	out := listSessionsOutput{
		Sessions: make([]sessionOutput, len(sessions)),
		Count:    len(sessions),
	}
	for i, sess := range sessions {
		out.Sessions[i] = sessionToOutput(sess, false)
	}
	return nil, out, nil
}

func (s *Server) handleGetSession(_ context.Context, _ *gomcp.CallToolRequest, input getSessionInput) (*gomcp.CallToolResult, sessionOutput, error) {
	if input.SessionID == "" {
		return errorResult("session_id is required"), sessionOutput{}, nil
	}

	sess, err := s.sessions.Get(input.SessionID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting session %s: %s", input.SessionID, err)), sessionOutput{}, nil
	}
	return nil, sessionToOutput(sess, true), nil
}

func (s *Server) handleSessionStats(_ context.Context, _ *gomcp.CallToolRequest, input sessionStatsInput) (*gomcp.CallToolResult, sessionStatsOutput, error) {
	q, err := buildQuery(input.Modality, input.Trashed)
	if err != nil {
		return errorResult(err.Error()), sessionStatsOutput{}, nil
	}

	sum := s.sessions.Stats(q)
	return nil, sessionStatsOutput{
		Sessions: len(s.sessions.List(q)),
		Count:    sum.Count,
		Average:  sum.Average,
		Min:      sum.Min,
		Max:      sum.Max,
	}, nil
}

func (s *Server) handleExportSessions(_ context.Context, _ *gomcp.CallToolRequest, input exportSessionsInput) (*gomcp.CallToolResult, exportSessionsOutput, error) {
	if len(input.SessionIDs) == 0 {
		return errorResult("session_ids is required"), exportSessionsOutput{}, nil
	}
	format := models.FormatCSV
	if input.Format != "" {
		f, ok := core.ParseExportFormat(input.Format)
		if !ok {
			return errorResult(fmt.Sprintf("invalid format %q: must be one of csv, tsv, json", input.Format)), exportSessionsOutput{}, nil
		}
		format = f
	}

	sessions, err := s.sessions.Resolve(input.SessionIDs)
	if err != nil {
		return errorResult(fmt.Sprintf("resolving sessions: %s", err)), exportSessionsOutput{}, nil
	}

	art, err := export.Export(sessions, export.Options{
		Format:          format,
		IncludeMetadata: input.IncludeMetadata,
		AppVersion:      s.version,
		ExportedAt:      time.Now(),
	})
	if err != nil {
		return errorResult(fmt.Sprintf("exporting sessions: %s", err)), exportSessionsOutput{}, nil
	}

	return nil, exportSessionsOutput{
		Filename:    art.Filename,
		Format:      string(art.Format),
		ContentType: art.ContentType,
		Content:     string(art.Data),
	}, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (event log may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := ParseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		SessionsCreated:        metrics.SessionsCreated,
		SessionsDiscarded:      metrics.SessionsDiscarded,
		SessionsTrashed:        metrics.SessionsTrashed,
		SessionsRestored:       metrics.SessionsRestored,
		SessionsPurged:         metrics.SessionsPurged,
		MeasurementsSaved:      metrics.MeasurementsSaved,
		SaveFailures:           metrics.SaveFailures,
		MeasurementsByModality: metrics.MeasurementsByModality,
		Exports:                metrics.Exports,
		ExportFailures:         metrics.ExportFailures,
		ConfigFallbacks:        metrics.ConfigFallbacks,
		EventCount:             metrics.EventCount,
	}
	if out.MeasurementsByModality == nil {
		out.MeasurementsByModality = make(map[string]int)
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (event log may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func buildQuery(modality string, trashed bool) (models.SessionQuery, error) {
	q := models.SessionQuery{ActiveOnly: !trashed, TrashedOnly: trashed}
	if modality != "" {
		m := models.Modality(modality)
		if !m.Valid() {
			return q, fmt.Errorf("unknown modality %q", modality)
		}
		q.Modality = m
	}
	return q, nil
}

func parseSort(s string) (models.SortOrder, bool) {
	switch order := models.SortOrder(s); order {
	case models.SortNewestFirst, models.SortOldestFirst, models.SortMostMeasurementsFirst, models.SortModalityName:
		return order, true
	}
	return "", false
}

func sessionToOutput(s models.Session, withMeasurements bool) sessionOutput {
	out := sessionOutput{
		ID:               s.ID,
		Modality:         string(s.Modality),
		DisplayName:      core.DisplayName(s.Modality),
		CreatedAt:        s.CreatedAt.UTC().Format(export.TimestampLayout),
		Notes:            s.Notes,
		Status:           string(s.State.Status()),
		MeasurementCount: len(s.Measurements),
	}
	if at, ok := s.State.TrashedAt(); ok {
		out.TrashedAt = at.UTC().Format(export.TimestampLayout)
	}
	if withMeasurements {
		out.Measurements = make([]measurementOutput, len(s.Measurements))
		for i, m := range s.Measurements {
			out.Measurements[i] = measurementOutput{
				ID:              m.ID,
				Timestamp:       m.Timestamp.UTC().Format(export.TimestampLayout),
				PrimaryValue:    m.PrimaryValue,
				SecondaryValues: m.SecondaryValues,
			}
		}
	}
	return out
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{MeasurementsByModality: make(map[string]int)}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// ParseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time in the past.
func ParseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
