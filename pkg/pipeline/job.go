package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/canopyviz/canopy/pkg/errors"
)

// MessageKind distinguishes job messages.
type MessageKind int

const (
	KindProgress MessageKind = iota
	KindDone
	KindError
)

// Terminal stage names.
const (
	StageComplete = "complete"
	StageError    = "error"
)

// messageBuffer is the number of progress messages a job holds for a slow
// reader before dropping new ones.
const messageBuffer = 64

// Message is one job event. Progress is 0..100 within Stage.
type Message struct {
	Kind     MessageKind `json:"-"`
	Stage    string      `json:"stage"`
	Progress float64     `json:"progress"`
	Error    string      `json:"error,omitempty"`
}

// Job is a pipeline run on its own goroutine. The goroutine owns the
// buffers it builds until it finishes; from then on they belong to the job
// and are read-only.
//
// Progress messages are advisory: when nobody drains Messages they are
// dropped. The terminal message (KindDone or KindError) is always delivered,
// after which the channel is closed.
type Job struct {
	ID        string
	CreatedAt time.Time

	messages chan Message
	done     chan struct{}
	cancel   context.CancelFunc

	mu     sync.Mutex
	last   Message
	result *Result
	err    error
}

func newJob(id string, cancel context.CancelFunc) *Job {
	return &Job{
		ID:        id,
		CreatedAt: time.Now(),
		messages:  make(chan Message, messageBuffer),
		done:      make(chan struct{}),
		cancel:    cancel,
		last:      Message{Kind: KindProgress, Stage: "queued"},
	}
}

// Start runs opts through the runner as a job. The job stops early if ctx
// is cancelled or Cancel is called.
func (r *Runner) Start(ctx context.Context, id string, opts Options) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := newJob(id, cancel)
	go j.run(ctx, r, opts)
	return j
}

func (j *Job) run(ctx context.Context, r *Runner, opts Options) {
	defer j.cancel()
	var (
		res *Result
		err error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = errors.New(errors.ErrCodeInternal, "job panicked: %v", p)
			}
		}()
		opts.JSON = true
		opts.Progress = j.post
		res, err = r.Execute(ctx, opts)
	}()
	if err != nil {
		r.logger(opts).Error("job failed", "job", j.ID, "error", err)
	} else {
		r.logger(opts).Info("job complete", "job", j.ID,
			"points", res.Stats.PointCount,
			"cached", res.CacheInfo.SnapshotHit && res.CacheInfo.JSONHit)
	}
	j.finish(res, err)
}

func (j *Job) post(stage string, progress float64) {
	j.send(Message{Kind: KindProgress, Stage: stage, Progress: progress}, false)
}

// send records m as the latest status and queues it. A terminal message
// makes room by dropping the oldest queued message.
func (j *Job) send(m Message, terminal bool) {
	j.mu.Lock()
	j.last = m
	j.mu.Unlock()
	for {
		select {
		case j.messages <- m:
			return
		default:
		}
		if !terminal {
			return
		}
		select {
		case <-j.messages:
		default:
		}
	}
}

func (j *Job) finish(res *Result, err error) {
	j.mu.Lock()
	j.result, j.err = res, err
	j.mu.Unlock()

	m := Message{Kind: KindDone, Stage: StageComplete, Progress: 100}
	if err != nil {
		m = Message{Kind: KindError, Stage: StageError, Error: errors.UserMessage(err)}
	}
	j.send(m, true)
	close(j.messages)
	close(j.done)
}

// Messages streams progress and the terminal message. It is closed after
// the terminal message. Each message is received by one reader only.
func (j *Job) Messages() <-chan Message { return j.messages }

// Done is closed when the job has finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// Status returns the most recent message.
func (j *Job) Status() Message {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}

// Result returns the finished result. Before the job finishes it fails with
// ErrCodeNotReady; a failed job returns its error.
func (j *Job) Result() (*Result, error) {
	select {
	case <-j.done:
	default:
		return nil, errors.New(errors.ErrCodeNotReady, "job %s is still running", j.ID)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.err
}

// Wait blocks until the job finishes or ctx is done.
func (j *Job) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-j.done:
		return j.Result()
	case <-ctx.Done():
		return nil, errors.Wrap(errors.ErrCodeTimeout, ctx.Err(), "wait for job %s", j.ID)
	}
}

// Cancel stops a running job. It has no effect on a finished one.
func (j *Job) Cancel() { j.cancel() }

func (j *Job) String() string {
	s := j.Status()
	return fmt.Sprintf("job %s: %s %.0f%%", j.ID, s.Stage, s.Progress)
}
