package api

import (
	"net/http"

	"github.com/p-arndt/installbench/internal/bench"
	"github.com/p-arndt/installbench/internal/session"
)

type startRunRequest struct {
	Package   string   `json:"package"`
	Tools     []string `json:"tools,omitempty"`
	Scenarios []string `json:"scenarios,omitempty"`
}

type startRunResponse struct {
	RunID string           `json:"run_id"`
	Run   *session.RunInfo `json:"run"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeValidationError(w, "invalid json: "+err.Error(), nil)
		return
	}
	if err := validateStartRunRequest(req); err != nil {
		writeValidationError(w, err.Error(), map[string]interface{}{"field": "package"})
		return
	}

	info, err := s.bench.Start(session.StartOpts{
		Package:   req.Package,
		Tools:     req.Tools,
		Scenarios: req.Scenarios,
	})
	if err != nil {
		s.logger.Warn("start run", "package", req.Package, "error", err)
		writeAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, startRunResponse{RunID: info.ID, Run: info})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeValidationError(w, err.Error(), map[string]interface{}{"field": "limit"})
		return
	}
	runs, err := s.bench.History(limit)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleCurrentRun(w http.ResponseWriter, r *http.Request) {
	cur := s.bench.Current()
	if cur == nil {
		writeAPIError(w, session.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	detail, err := s.bench.Get(r.PathValue("id"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bench.Progress())
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	results := s.bench.Results()
	if results == nil {
		results = []bench.TestResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

type logsResponse struct {
	Entries []bench.LogEntry `json:"entries"`
	// Next is the since value for the following poll.
	Next int `json:"next"`
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	since, err := parseNonNegative(r.URL.Query().Get("since"), "since", 0)
	if err != nil {
		writeValidationError(w, err.Error(), map[string]interface{}{"field": "since"})
		return
	}
	entries := s.bench.Logs(since)
	if entries == nil {
		entries = []bench.LogEntry{}
	}
	writeJSON(w, http.StatusOK, logsResponse{Entries: entries, Next: since + len(entries)})
}

type aggregateResponse struct {
	Tools    []bench.AggregatedResult `json:"tools"`
	Excluded []bench.ToolFailures     `json:"excluded"`
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	resp := aggregateResponse{Tools: s.bench.Aggregate(), Excluded: s.bench.FailureSummary()}
	if resp.Tools == nil {
		resp.Tools = []bench.AggregatedResult{}
	}
	if resp.Excluded == nil {
		resp.Excluded = []bench.ToolFailures{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	points, err := s.bench.Chart(q.Get("scenario"), bench.Metric(q.Get("metric")))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if points == nil {
		points = []bench.ChartPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}
