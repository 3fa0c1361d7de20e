package search

import (
	"context"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/snapshot"
	"github.com/canopyviz/canopy/pkg/soa"
)

// MessageType names a worker message.
type MessageType string

// Request types.
const (
	// TypeInit loads Labels, or Blob+Offsets when Labels is nil.
	TypeInit MessageType = "INIT"
	// TypeInitFile loads the label section of the snapshot at Path.
	TypeInitFile MessageType = "INIT_FILE"
	// TypeSearch runs a query against the loaded labels.
	TypeSearch MessageType = "SEARCH"
)

// Response types.
const (
	TypeReady   MessageType = "READY"
	TypeResults MessageType = "RESULTS"
	TypeError   MessageType = "ERROR"
)

// Request is a message to the worker. ID is echoed in the response.
type Request struct {
	Type MessageType `json:"type"`
	ID   uint64      `json:"id,omitempty"`

	Labels  []string `json:"labels,omitempty"`
	Blob    []byte   `json:"-"`
	Offsets []uint32 `json:"-"`
	Path    string   `json:"path,omitempty"`

	Query string `json:"query,omitempty"`
	Regex bool   `json:"regex,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Response is a message from the worker.
type Response struct {
	Type    MessageType `json:"type"`
	ID      uint64      `json:"id,omitempty"`
	Count   int         `json:"count,omitempty"`
	Results []Result    `json:"results,omitempty"`
	Error   string      `json:"error,omitempty"`
	// Code is the errors.Code of an ERROR response.
	Code errors.Code `json:"code,omitempty"`
}

// Worker owns an Index on its own goroutine. Requests are handled one at a
// time in arrival order. Label buffers passed in INIT are owned by the
// worker afterwards and must not be modified by the sender.
type Worker struct {
	requests  chan Request
	responses chan Response
	logger    *log.Logger

	doMu sync.Mutex
	// index is only touched by the Run goroutine.
	index *Index
}

// NewWorker returns an idle worker. Call Run to start it.
func NewWorker(logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{
		requests:  make(chan Request),
		responses: make(chan Response, 1),
		logger:    logger,
	}
}

// Requests is the inbound message channel.
func (w *Worker) Requests() chan<- Request { return w.requests }

// Responses is the outbound message channel. Every request produces exactly
// one response.
func (w *Worker) Responses() <-chan Response { return w.responses }

// Run serves requests until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.requests:
			resp := w.handle(ctx, req)
			select {
			case w.responses <- resp:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Do sends req and waits for its response. Concurrent Do calls are
// serialised; do not mix Do with direct channel use.
func (w *Worker) Do(ctx context.Context, req Request) (Response, error) {
	w.doMu.Lock()
	defer w.doMu.Unlock()
	select {
	case w.requests <- req:
	case <-ctx.Done():
		return Response{}, errors.Wrap(errors.ErrCodeTimeout, ctx.Err(), "send %s", req.Type)
	}
	select {
	case resp := <-w.responses:
		return resp, nil
	case <-ctx.Done():
		return Response{}, errors.Wrap(errors.ErrCodeTimeout, ctx.Err(), "await %s", req.Type)
	}
}

func (w *Worker) handle(ctx context.Context, req Request) Response {
	switch req.Type {
	case TypeInit:
		var labels soa.Labels
		if req.Labels != nil {
			labels = soa.StringLabels(req.Labels)
		} else {
			bl, err := soa.NewBlobLabels(req.Blob, req.Offsets)
			if err != nil {
				return errorResponse(req, errors.Wrap(errors.ErrCodeInvalidInput, err, "label blob"))
			}
			labels = bl
		}
		w.index = NewIndex(labels)
		w.logger.Debug("search index loaded", "labels", w.index.Len())
		return Response{Type: TypeReady, ID: req.ID, Count: w.index.Len()}

	case TypeInitFile:
		labels, err := readLabelFile(req.Path)
		if err != nil {
			return errorResponse(req, err)
		}
		w.index = NewIndex(labels)
		w.logger.Debug("search index loaded", "path", req.Path, "labels", w.index.Len())
		return Response{Type: TypeReady, ID: req.ID, Count: w.index.Len()}

	case TypeSearch:
		if w.index == nil {
			return errorResponse(req, errors.New(errors.ErrCodeNotReady, "search index not initialised"))
		}
		results, err := w.index.Search(ctx, Query{Text: req.Query, Regex: req.Regex, Limit: req.Limit})
		if err != nil {
			return errorResponse(req, err)
		}
		return Response{Type: TypeResults, ID: req.ID, Count: len(results), Results: results}

	default:
		return errorResponse(req, errors.New(errors.ErrCodeInvalidInput, "unknown message type %q", req.Type))
	}
}

func readLabelFile(path string) (soa.Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "snapshot %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "open snapshot %s", path)
	}
	defer f.Close()
	return snapshot.ReadLabels(f)
}

func errorResponse(req Request, err error) Response {
	return Response{Type: TypeError, ID: req.ID, Error: err.Error(), Code: errors.GetCode(err)}
}
