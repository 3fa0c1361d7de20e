package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/canopyviz/canopy/pkg/buildinfo"
	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/httputil"
	"github.com/canopyviz/canopy/pkg/pipeline"
	"github.com/canopyviz/canopy/pkg/search"
)

// keepAlive is the SSE comment interval on an idle job.
var keepAlive = 15 * time.Second

// StartRequest is the optional JSON body of a start request. At most one
// of URL, Newick and File names the input.
type StartRequest struct {
	URL    string `json:"url,omitempty"`
	Newick string `json:"newick,omitempty"`
	// File is relative to the server's data directory.
	File string `json:"file,omitempty"`

	Polar    *bool    `json:"polar,omitempty"`
	Strict   *bool    `json:"strict,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	LeafStep *float64 `json:"leaf_step,omitempty"`
}

// StartResponse answers a start request.
type StartResponse struct {
	JobID string `json:"job_id"`
}

// StatusResponse describes a job.
type StatusResponse struct {
	JobID     string    `json:"job_id"`
	CreatedAt time.Time `json:"created_at"`
	Stage     string    `json:"stage"`
	Progress  float64   `json:"progress"`
	Done      bool      `json:"done"`
	Error     string    `json:"error,omitempty"`
}

// SearchResponse carries label search results.
type SearchResponse struct {
	Count   int             `json:"count"`
	Results []search.Result `json:"results"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"build":  buildinfo.Get(),
		"jobs":   s.jobs.Len(),
	})
}

// handleStart starts a job. ?use_cache=false forces a rebuild.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	body := http.MaxBytesReader(w, r.Body, MaxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode start request"))
		return
	}

	opts, err := s.jobOptions(req)
	if err != nil {
		writeError(w, err)
		return
	}
	if v := r.URL.Query().Get("use_cache"); v != "" {
		useCache, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, errors.New(errors.ErrCodeInvalidInput, "use_cache must be a boolean, got %q", v))
			return
		}
		opts.Refresh = !useCache
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		writeError(w, err)
		return
	}

	j := s.jobs.Start(s.base, opts)
	s.logger.Info("job accepted", "job", j.ID, "refresh", opts.Refresh)
	writeJSON(w, http.StatusOK, StartResponse{JobID: j.ID})
}

func (s *Server) jobOptions(req StartRequest) (pipeline.Options, error) {
	opts := s.opts.Template
	opts.Logger = s.logger

	given := 0
	for _, v := range []string{req.URL, req.Newick, req.File} {
		if v != "" {
			given++
		}
	}
	if given > 1 {
		return opts, errors.New(errors.ErrCodeInvalidInput, "give at most one of url, newick and file")
	}

	switch {
	case req.URL != "":
		if !httputil.IsURL(req.URL) {
			return opts, errors.New(errors.ErrCodeInvalidInput, "url must be http or https")
		}
		opts.Input = req.URL
	case req.Newick != "":
		opts.Input, opts.Literal = req.Newick, true
	case req.File != "":
		path, err := s.resolveFile(req.File)
		if err != nil {
			return opts, err
		}
		opts.Input = path
	default:
		if s.opts.DefaultInput == "" {
			return opts, errors.New(errors.ErrCodeInvalidInput, "no input given and no default tree configured")
		}
		opts.Input = s.opts.DefaultInput
	}

	if req.Polar != nil {
		opts.Polar = *req.Polar
	}
	if req.Strict != nil {
		opts.Strict = *req.Strict
	}
	if req.Limit != 0 {
		opts.Limit = req.Limit
	}
	if req.LeafStep != nil {
		opts.LeafStep = *req.LeafStep
	}
	return opts, nil
}

func (s *Server) resolveFile(name string) (string, error) {
	if s.opts.DataDir == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "file inputs are disabled")
	}
	if err := errors.ValidatePath(name); err != nil {
		return "", err
	}
	if filepath.IsAbs(name) {
		return "", errors.New(errors.ErrCodeInvalidPath, "file must be relative to the data directory")
	}
	path := filepath.Join(s.opts.DataDir, filepath.Clean(name))
	if !strings.HasPrefix(path, s.opts.DataDir+string(filepath.Separator)) {
		return "", errors.New(errors.ErrCodeInvalidPath, "file escapes the data directory")
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", errors.New(errors.ErrCodeNotFound, "file %s not found", name)
	}
	return path, nil
}

func (s *Server) job(w http.ResponseWriter, r *http.Request) (*pipeline.Job, bool) {
	id := chi.URLParam(r, "id")
	j, ok := s.jobs.Get(id)
	if !ok {
		writeError(w, errors.New(errors.ErrCodeNotFound, "job %s not found", id))
	}
	return j, ok
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	j, ok := s.job(w, r)
	if !ok {
		return
	}
	m := j.Status()
	resp := StatusResponse{
		JobID:     j.ID,
		CreatedAt: j.CreatedAt,
		Stage:     m.Stage,
		Progress:  m.Progress,
		Error:     m.Error,
	}
	select {
	case <-j.Done():
		resp.Done = true
	default:
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	j, ok := s.job(w, r)
	if !ok {
		return
	}
	j.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

// handleProgress streams job messages as server-sent events until the
// terminal message. A stream opened after the job finished gets the
// terminal event at once.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	j, ok := s.job(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, errors.New(errors.ErrCodeUnsupported, "streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case m, open := <-j.Messages():
			if !open {
				// Another reader took the terminal message.
				writeEvent(w, j.Status())
				flusher.Flush()
				return
			}
			writeEvent(w, m)
			flusher.Flush()
			if m.Kind != pipeline.KindProgress {
				return
			}
		}
	}
}

func writeEvent(w io.Writer, m pipeline.Message) {
	data, _ := json.Marshal(m)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// finished returns the job result, writing 404, 400 or 500 for a missing,
// unfinished or failed job.
func (s *Server) finished(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	j, ok := s.job(w, r)
	if !ok {
		return nil, false
	}
	res, err := j.Result()
	if err != nil {
		if errors.Is(err, errors.ErrCodeNotReady) {
			writeError(w, err)
		} else {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: errors.UserMessage(err), Code: errors.GetCode(err)})
		}
		return nil, false
	}
	return res, true
}

// handleResult sends the gzip JSON document as an opaque download. It is
// deliberately not marked Content-Encoding: gzip, so clients receive the
// compressed bytes and inflate them while parsing.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	res, ok := s.finished(w, r)
	if !ok {
		return
	}
	writeAttachment(w, res.JSON, "graph.json.gz")
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	res, ok := s.finished(w, r)
	if !ok {
		return
	}
	writeAttachment(w, res.Snapshot, "graph.gtol")
}

// handleSearch runs ?q= (with optional regex=true and limit=n) against the
// job's labels.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	res, ok := s.finished(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	query := search.Query{Text: q.Get("q")}
	if v := q.Get("regex"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, errors.New(errors.ErrCodeInvalidQuery, "regex must be a boolean, got %q", v))
			return
		}
		query.Regex = b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, errors.New(errors.ErrCodeInvalidQuery, "limit must be a non-negative integer, got %q", v))
			return
		}
		query.Limit = n
	}

	results, err := search.NewIndex(res.Buffers.Labels).Search(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Count: len(results), Results: results})
}

type errorBody struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Error: errors.UserMessage(err), Code: errors.GetCode(err)})
}

func writeAttachment(w http.ResponseWriter, data []byte, name string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidPath, errors.ErrCodeInvalidQuery,
		errors.ErrCodeNewickSyntax, errors.ErrCodeNotReady:
		return http.StatusBadRequest
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	case errors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
