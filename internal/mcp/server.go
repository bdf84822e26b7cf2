// Package mcp exposes the Insights client as Model Context Protocol tools
// so an agent can inspect reports and mappings, provision a plan, and launch
// and follow extractions.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/iTwin/insights-api-sample-console-app/internal/insights"
	"github.com/iTwin/insights-api-sample-console-app/internal/plan"
	"github.com/iTwin/insights-api-sample-console-app/internal/provision"
	"github.com/iTwin/insights-api-sample-console-app/internal/runlog"
)

// defaultWaitTimeout bounds wait_for_extraction and background watches
// when neither the caller nor WithWaitTimeout gives one.
const defaultWaitTimeout = 10 * time.Minute

// Server wraps the MCP SDK server and the extraction watches it started.
type Server struct {
	MCPServer *sdkmcp.Server

	client       *insights.Client
	runs         runlog.Store
	logger       *zap.Logger
	pollInterval time.Duration
	waitTimeout  time.Duration

	mu      sync.Mutex
	watches map[string]*Watch
}

// Option configures a Server.
type Option func(*Server)

// WithLogger configures structured logging.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPollInterval overrides the extraction poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) { s.pollInterval = d }
}

// WithWaitTimeout sets the wait used when a tool call gives no timeout_ms.
// Zero waits until the job is terminal.
func WithWaitTimeout(d time.Duration) Option {
	return func(s *Server) { s.waitTimeout = d }
}

// NewServer creates an MCP server whose tools call client and record
// extraction runs in runs.
func NewServer(client *insights.Client, runs runlog.Store, opts ...Option) *Server {
	s := &Server{
		client:       client,
		runs:         runs,
		logger:       zap.NewNop(),
		pollInterval: insights.DefaultPollInterval,
		waitTimeout:  defaultWaitTimeout,
		watches:      make(map[string]*Watch),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "insights", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_reports",
		Description: "List the Insights reports of a project.",
	}, s.handleListReports)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_mappings",
		Description: "List the mappings of an iModel.",
	}, s.handleListMappings)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_groups",
		Description: "List the groups of a mapping.",
	}, s.handleListGroups)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "provision",
		Description: "Get or create the report, mapping, groups and properties described by a plan file.",
	}, s.handleProvision)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "run_extraction",
		Description: "Launch an extraction for an iModel and record it. With watch=true the server follows the job in the background.",
	}, s.handleRunExtraction)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_extraction_status",
		Description: "Get the current status of an extraction job. Defaults to the latest recorded run of the iModel.",
	}, s.handleGetExtractionStatus)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "wait_for_extraction",
		Description: "Poll an extraction job until it succeeds, fails or the timeout passes.",
	}, s.handleWaitForExtraction)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_runs",
		Description: "List the recorded extraction runs of an iModel, newest first.",
	}, s.handleListRuns)
}

// --- Tool input/output types ---

type listReportsInput struct {
	ProjectID string `json:"project_id" jsonschema:"iTwin project id"`
}

type reportSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
}

type listReportsOutput struct {
	Reports []reportSummary `json:"reports"`
	Count   int             `json:"count"`
}

type listMappingsInput struct {
	IModelID string `json:"imodel_id" jsonschema:"iModel id"`
}

type mappingSummary struct {
	ID                string `json:"id"`
	MappingName       string `json:"mapping_name"`
	ExtractionEnabled bool   `json:"extraction_enabled"`
}

type listMappingsOutput struct {
	Mappings []mappingSummary `json:"mappings"`
	Count    int              `json:"count"`
}

type listGroupsInput struct {
	IModelID  string `json:"imodel_id" jsonschema:"iModel id"`
	MappingID string `json:"mapping_id" jsonschema:"mapping id"`
}

type groupSummary struct {
	ID        string `json:"id"`
	GroupName string `json:"group_name"`
	Query     string `json:"query"`
}

type listGroupsOutput struct {
	Groups []groupSummary `json:"groups"`
	Count  int            `json:"count"`
}

type provisionInput struct {
	ProjectID string `json:"project_id" jsonschema:"iTwin project id"`
	IModelID  string `json:"imodel_id" jsonschema:"iModel id"`
	PlanPath  string `json:"plan_path" jsonschema:"path to a YAML or JSON provisioning plan"`
}

type entitySummary struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

type provisionOutput struct {
	ReportID  string          `json:"report_id"`
	MappingID string          `json:"mapping_id"`
	Entities  []entitySummary `json:"entities"`
	Created   int             `json:"created"`
}

type runExtractionInput struct {
	IModelID  string `json:"imodel_id" jsonschema:"iModel id"`
	Watch     bool   `json:"watch,omitempty" jsonschema:"follow the job in the background and record its outcome"`
	TimeoutMS int    `json:"timeout_ms,omitempty" jsonschema:"watch timeout in milliseconds (default: the server poll timeout)"`
}

type runExtractionOutput struct {
	JobID    string `json:"job_id"`
	Watching bool   `json:"watching"`
}

type extractionStatusInput struct {
	IModelID string `json:"imodel_id" jsonschema:"iModel id"`
	JobID    string `json:"job_id,omitempty" jsonschema:"job id; defaults to the latest recorded run"`
}

type extractionStatusOutput struct {
	JobID    string `json:"job_id"`
	State    string `json:"state"`
	Reason   string `json:"reason,omitempty"`
	Terminal bool   `json:"terminal"`
	Watch    string `json:"watch,omitempty"`
}

type waitInput struct {
	IModelID  string `json:"imodel_id" jsonschema:"iModel id"`
	JobID     string `json:"job_id,omitempty" jsonschema:"job id; defaults to the latest recorded run"`
	TimeoutMS int    `json:"timeout_ms,omitempty" jsonschema:"max wait in milliseconds (default: the server poll timeout)"`
}

type waitOutput struct {
	JobID    string `json:"job_id"`
	State    string `json:"state"`
	Reason   string `json:"reason,omitempty"`
	TimedOut bool   `json:"timed_out"`
}

type listRunsInput struct {
	IModelID string `json:"imodel_id" jsonschema:"iModel id"`
	Limit    int    `json:"limit,omitempty" jsonschema:"max runs to return (0 = all)"`
}

type runSummary struct {
	JobID      string `json:"job_id"`
	State      string `json:"state"`
	Reason     string `json:"reason,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

type listRunsOutput struct {
	Runs []runSummary `json:"runs"`
}

// --- Tool handlers ---

func (s *Server) handleListReports(ctx context.Context, _ *sdkmcp.CallToolRequest, input listReportsInput) (*sdkmcp.CallToolResult, listReportsOutput, error) {
	if input.ProjectID == "" {
		return nil, listReportsOutput{}, fmt.Errorf("project_id is required")
	}
	reports, err := s.client.Reports().List(ctx, input.ProjectID)
	if err != nil {
		return nil, listReportsOutput{}, err
	}
	out := listReportsOutput{Reports: make([]reportSummary, 0, len(reports))}
	for _, r := range reports {
		if r.Deleted {
			continue
		}
		out.Reports = append(out.Reports, reportSummary{ID: r.ID, DisplayName: r.DisplayName, Description: r.Description})
	}
	out.Count = len(out.Reports)
	return nil, out, nil
}

func (s *Server) handleListMappings(ctx context.Context, _ *sdkmcp.CallToolRequest, input listMappingsInput) (*sdkmcp.CallToolResult, listMappingsOutput, error) {
	if input.IModelID == "" {
		return nil, listMappingsOutput{}, fmt.Errorf("imodel_id is required")
	}
	mappings, err := s.client.Mappings(input.IModelID).List(ctx)
	if err != nil {
		return nil, listMappingsOutput{}, err
	}
	out := listMappingsOutput{Mappings: make([]mappingSummary, len(mappings)), Count: len(mappings)}
	for i, m := range mappings {
		out.Mappings[i] = mappingSummary{ID: m.ID, MappingName: m.MappingName, ExtractionEnabled: m.ExtractionEnabled}
	}
	return nil, out, nil
}

func (s *Server) handleListGroups(ctx context.Context, _ *sdkmcp.CallToolRequest, input listGroupsInput) (*sdkmcp.CallToolResult, listGroupsOutput, error) {
	if input.IModelID == "" || input.MappingID == "" {
		return nil, listGroupsOutput{}, fmt.Errorf("imodel_id and mapping_id are required")
	}
	groups, err := s.client.Groups(input.IModelID, input.MappingID).List(ctx)
	if err != nil {
		return nil, listGroupsOutput{}, err
	}
	out := listGroupsOutput{Groups: make([]groupSummary, len(groups)), Count: len(groups)}
	for i, g := range groups {
		out.Groups[i] = groupSummary{ID: g.ID, GroupName: g.GroupName, Query: g.Query}
	}
	return nil, out, nil
}

func (s *Server) handleProvision(ctx context.Context, _ *sdkmcp.CallToolRequest, input provisionInput) (*sdkmcp.CallToolResult, provisionOutput, error) {
	if input.ProjectID == "" || input.IModelID == "" || input.PlanPath == "" {
		return nil, provisionOutput{}, fmt.Errorf("project_id, imodel_id and plan_path are required")
	}
	pl, err := plan.LoadFromPath(input.PlanPath)
	if err != nil {
		return nil, provisionOutput{}, err
	}
	res, err := provision.New(s.client, provision.WithLogger(s.logger)).Run(ctx, input.ProjectID, input.IModelID, pl)
	if err != nil {
		return nil, provisionOutput{}, fmt.Errorf("provision: %w", err)
	}
	out := provisionOutput{
		ReportID:  res.Report.ID,
		MappingID: res.Mapping.ID,
		Entities:  make([]entitySummary, len(res.Entities)),
		Created:   res.Created(),
	}
	for i, e := range res.Entities {
		out.Entities[i] = entitySummary{Kind: e.Kind, Name: e.Name, ID: e.ID, Created: e.Created}
	}
	return nil, out, nil
}

func (s *Server) handleRunExtraction(ctx context.Context, _ *sdkmcp.CallToolRequest, input runExtractionInput) (*sdkmcp.CallToolResult, runExtractionOutput, error) {
	if input.IModelID == "" {
		return nil, runExtractionOutput{}, fmt.Errorf("imodel_id is required")
	}
	extraction := s.client.Extraction(input.IModelID)
	run, err := extraction.Run(ctx)
	if err != nil {
		return nil, runExtractionOutput{}, err
	}
	if _, err := s.runs.Record(ctx, input.IModelID, run.ID, string(insights.StateQueued)); err != nil {
		s.logger.Warn("record extraction run", zap.String("job_id", run.ID), zap.Error(err))
	}
	s.logger.Info("extraction launched", zap.String("imodel_id", input.IModelID), zap.String("job_id", run.ID))

	if input.Watch {
		w := startWatch(extraction, s.runs, s.logger, input.IModelID, run.ID,
			s.timeout(input.TimeoutMS), s.pollerOptions()...)
		s.mu.Lock()
		s.pruneLocked()
		s.watches[run.ID] = w
		s.mu.Unlock()
	}
	return nil, runExtractionOutput{JobID: run.ID, Watching: input.Watch}, nil
}

func (s *Server) handleGetExtractionStatus(ctx context.Context, _ *sdkmcp.CallToolRequest, input extractionStatusInput) (*sdkmcp.CallToolResult, extractionStatusOutput, error) {
	jobID, err := s.resolveJob(ctx, input.IModelID, input.JobID)
	if err != nil {
		return nil, extractionStatusOutput{}, err
	}
	status, err := s.client.Extraction(input.IModelID).Status(ctx, jobID)
	if err != nil {
		return nil, extractionStatusOutput{}, err
	}
	out := extractionStatusOutput{
		JobID:    jobID,
		State:    string(status.State),
		Reason:   status.Reason,
		Terminal: status.State.Terminal(),
	}
	if w := s.Watch(jobID); w != nil {
		state, _, _ := w.Snapshot()
		out.Watch = string(state)
		if state != WatchRunning {
			s.forget(jobID, w)
		}
	}
	return nil, out, nil
}

func (s *Server) handleWaitForExtraction(ctx context.Context, _ *sdkmcp.CallToolRequest, input waitInput) (*sdkmcp.CallToolResult, waitOutput, error) {
	jobID, err := s.resolveJob(ctx, input.IModelID, input.JobID)
	if err != nil {
		return nil, waitOutput{}, err
	}
	status, err := s.client.Extraction(input.IModelID).Wait(ctx, jobID, s.timeout(input.TimeoutMS), s.pollerOptions()...)
	out := waitOutput{JobID: jobID, State: string(status.State), Reason: status.Reason}
	switch {
	case insights.IsTimeout(err):
		out.TimedOut = true
	case err != nil:
		return nil, waitOutput{}, err
	}
	if status.State.Terminal() {
		if ferr := s.runs.Finish(ctx, jobID, out.State, out.Reason); ferr != nil && !errors.Is(ferr, runlog.ErrNotFound) {
			s.logger.Warn("record extraction outcome", zap.String("job_id", jobID), zap.Error(ferr))
		}
	}
	return nil, out, nil
}

func (s *Server) handleListRuns(ctx context.Context, _ *sdkmcp.CallToolRequest, input listRunsInput) (*sdkmcp.CallToolResult, listRunsOutput, error) {
	if input.IModelID == "" {
		return nil, listRunsOutput{}, fmt.Errorf("imodel_id is required")
	}
	runs, err := s.runs.List(ctx, input.IModelID, input.Limit)
	if err != nil {
		return nil, listRunsOutput{}, err
	}
	out := listRunsOutput{Runs: make([]runSummary, len(runs))}
	for i, r := range runs {
		out.Runs[i] = runSummary{
			JobID:     r.JobID,
			State:     r.State,
			Reason:    r.Reason,
			StartedAt: r.StartedAt.Format(time.RFC3339),
		}
		if r.Finished() {
			out.Runs[i].FinishedAt = r.FinishedAt.Format(time.RFC3339)
		}
	}
	return nil, out, nil
}

// resolveJob returns jobID, or the latest recorded run of iModelID when empty.
func (s *Server) resolveJob(ctx context.Context, iModelID, jobID string) (string, error) {
	if iModelID == "" {
		return "", fmt.Errorf("imodel_id is required")
	}
	if jobID != "" {
		return jobID, nil
	}
	run, err := s.runs.Latest(ctx, iModelID)
	if err != nil {
		return "", fmt.Errorf("no job_id given and no recorded run: %w", err)
	}
	return run.JobID, nil
}

func (s *Server) pollerOptions() []insights.PollerOption {
	return []insights.PollerOption{insights.WithPollInterval(s.pollInterval)}
}

// Watch returns the background watch of jobID, or nil.
func (s *Server) Watch(jobID string) *Watch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watches[jobID]
}

// forget drops the watch of jobID if it is still w.
func (s *Server) forget(jobID string, w *Watch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watches[jobID] == w {
		delete(s.watches, jobID)
	}
}

// pruneLocked drops every finished watch. s.mu must be held.
func (s *Server) pruneLocked() {
	for jobID, w := range s.watches {
		select {
		case <-w.Done():
			delete(s.watches, jobID)
		default:
		}
	}
}

// Shutdown cancels every background watch and waits for them to stop.
func (s *Server) Shutdown() {
	s.mu.Lock()
	watches := make([]*Watch, 0, len(s.watches))
	for _, w := range s.watches {
		watches = append(watches, w)
	}
	s.watches = make(map[string]*Watch)
	s.mu.Unlock()

	for _, w := range watches {
		w.Cancel()
		<-w.Done()
	}
}

// Run serves over stdio until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	defer s.Shutdown()
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) timeout(ms int) time.Duration {
	if ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return s.waitTimeout
}
