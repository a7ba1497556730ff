package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/quantarax/cclsim/daemon/manager"
	"github.com/quantarax/cclsim/daemon/service"
	"github.com/quantarax/cclsim/internal/scenario"
)

// HTTP contract types

type (
	SubmitScenarioResponse struct {
		RunID string `json:"run_id"`
		State string `json:"state"`
	}

	GetRunStatusResponse struct {
		RunID        string `json:"run_id"`
		State        string `json:"state"`
		ErrorMessage string `json:"error_message,omitempty"`
		StartTime    int64  `json:"start_time"`
		UpdateTime   int64  `json:"update_time"`
	}

	GetRunResultsResponse struct {
		RunID           string                        `json:"run_id"`
		State           string                        `json:"state"`
		CompletionTimes map[string]map[string]float64 `json:"completion_times,omitempty"`
		PortSummary     []manager.PortUtilization     `json:"port_summary,omitempty"`
		TraceLen        int                           `json:"trace_len"`
	}

	RunSummary struct {
		RunID      string `json:"run_id"`
		State      string `json:"state"`
		StartTime  int64  `json:"start_time"`
		UpdateTime int64  `json:"update_time"`
	}
	ListRunsResponse struct {
		Runs       []*RunSummary `json:"runs"`
		TotalCount int           `json:"total_count"`
		HasMore    bool          `json:"has_more"`
	}
)

// DaemonAPIServer wires the simulation runner and run registry to HTTP handlers.
type DaemonAPIServer struct {
	runner *service.SimRunner
	runs   *manager.RunStore
	events *service.EventPublisher
}

func NewDaemonAPIServer(runner *service.SimRunner, runs *manager.RunStore, events *service.EventPublisher) *DaemonAPIServer {
	return &DaemonAPIServer{runner: runner, runs: runs, events: events}
}

// RegisterHTTP registers REST routes on mux.
func (s *DaemonAPIServer) RegisterHTTP(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/simulations", s.handleSimulations)
	mux.HandleFunc("/api/v1/simulations/", s.handleSimulationPrefix)
}

func (s *DaemonAPIServer) handleSimulations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmit(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (s *DaemonAPIServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "failed to read body")
		return
	}
	sc, err := scenario.Parse(body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}
	run, err := s.runner.Submit(r.Context(), sc)
	if err != nil {
		if err == service.ErrAdmissionRejected {
			writeJSONError(w, http.StatusTooManyRequests, "RESOURCE_EXHAUSTED", err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, &SubmitScenarioResponse{RunID: run.ID, State: run.GetState().String()})
}

func (s *DaemonAPIServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter *manager.RunState
	if v := q.Get("state"); v != "" {
		st := fromHTTPState(v)
		filter = &st
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	runs, total := s.runs.List(filter, limit, offset)

	resp := &ListRunsResponse{Runs: make([]*RunSummary, 0, len(runs)), TotalCount: total}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, &RunSummary{
			RunID:      run.ID,
			State:      run.GetState().String(),
			StartTime:  run.StartTime.UnixMilli(),
			UpdateTime: run.UpdateTime.UnixMilli(),
		})
	}
	resp.HasMore = offset+len(resp.Runs) < total
	writeJSON(w, http.StatusOK, resp)
}

// handleSimulationPrefix serves /api/v1/simulations/{run_id}/{status,results}
func (s *DaemonAPIServer) handleSimulationPrefix(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/simulations/"), "/")
	runID := parts[0]
	if runID == "" {
		http.NotFound(w, r)
		return
	}
	if len(parts) < 2 {
		http.NotFound(w, r)
		return
	}

	run, err := s.runs.Get(runID)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}

	switch parts[1] {
	case "status":
		writeJSON(w, http.StatusOK, &GetRunStatusResponse{
			RunID:        run.ID,
			State:        run.GetState().String(),
			ErrorMessage: run.ErrorMessage,
			StartTime:    run.StartTime.UnixMilli(),
			UpdateTime:   run.UpdateTime.UnixMilli(),
		})
	case "results":
		writeJSON(w, http.StatusOK, &GetRunResultsResponse{
			RunID:           run.ID,
			State:           run.GetState().String(),
			CompletionTimes: run.CompletionTimes,
			PortSummary:     run.PortSummary,
			TraceLen:        run.TraceLen,
		})
	default:
		http.NotFound(w, r)
	}
}

// SSEHandler streams SimEvents for one run (or all runs if no filter is given).
func SSEHandler(events *service.EventPublisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}
		filter := r.URL.Query().Get("run_id")
		sub := events.Subscribe(filter)
		defer events.Unsubscribe(sub.ID)
		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.Channel:
				if !ok {
					return
				}
				line, err := json.Marshal(toEventJSON(ev))
				if err != nil {
					continue
				}
				_, _ = w.Write([]byte("data: "))
				_, _ = w.Write(line)
				_, _ = w.Write([]byte("\n\n"))
				flusher.Flush()
			}
		}
	}
}

type simEventJSON struct {
	RunID           string            `json:"run_id"`
	EventType       string            `json:"event_type"`
	Timestamp       int64             `json:"timestamp"`
	ProgressPercent float64           `json:"progress_percent"`
	Message         string            `json:"message,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

func toEventJSON(ev *service.SimEvent) simEventJSON {
	return simEventJSON{
		RunID:           ev.RunID,
		EventType:       ev.EventType.String(),
		Timestamp:       ev.Timestamp.UnixMilli(),
		ProgressPercent: ev.ProgressPercent,
		Message:         ev.Message,
		Metadata:        ev.Metadata,
	}
}

func fromHTTPState(s string) manager.RunState {
	switch strings.ToUpper(s) {
	case "PENDING":
		return manager.RunPending
	case "RUNNING":
		return manager.RunRunning
	case "COMPLETED":
		return manager.RunCompleted
	case "FAILED":
		return manager.RunFailed
	default:
		return manager.RunPending
	}
}

// JSON helpers

type JSONError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, JSONError{Code: code, Message: msg})
}

