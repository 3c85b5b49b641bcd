package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/averyholt/descentbackend/fallback"
	"github.com/averyholt/descentbackend/models"
	"github.com/averyholt/descentbackend/parser"
	"github.com/averyholt/descentbackend/realtime"
)

// Job status constants
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// ErrSourceBusy is returned when a parse is already queued or running for the
// requested source. Parses are serialized per source so two builders never
// write the same chart concurrently.
var ErrSourceBusy = errors.New("a parse is already in progress for this source")

// ErrQueueFull is returned when the job queue cannot take another parse.
var ErrQueueFull = errors.New("parse queue is full")

// ParseRequest describes one parse to run.
type ParseRequest struct {
	SourceID            uint
	Pages               []parser.PageInput
	DryRun              bool
	Force               bool
	ConfidenceThreshold float64
}

// ParseResult is what a finished job exposes. Dry runs additionally carry the
// full entity sets from the in-memory graph, since nothing was committed.
type ParseResult struct {
	Summary     parser.Summary       `json:"summary"`
	Individuals []*models.Individual `json:"individuals,omitempty"`
	Unions      []*models.Union      `json:"unions,omitempty"`
	ChildLinks  []*models.ChildLink  `json:"child_links,omitempty"`
}

// ParseJob tracks one queued or running parse.
type ParseJob struct {
	ID       string `json:"id"`
	SourceID uint   `json:"source_id"`
	DryRun   bool   `json:"dry_run"`
	Status   string `json:"status"`
	Done     int    `json:"done"`
	Total    int    `json:"total"`
	Error    string `json:"error,omitempty"`

	Result *ParseResult `json:"result,omitempty"`

	CreatedAt  int64 `json:"created_at"`
	StartedAt  int64 `json:"started_at,omitempty"`
	FinishedAt int64 `json:"finished_at,omitempty"`

	request ParseRequest
	cancel  context.CancelFunc
}

// ParseWorker runs parse jobs from a bounded queue, one per source at a time.
type ParseWorker struct {
	JobQueue chan *ParseJob
	Graph    parser.GraphStore
	Resolver fallback.LineResolver
	Hub      *realtime.Hub
	Wg       sync.WaitGroup
	StopChan chan struct{}

	Mutex   sync.Mutex
	Pending map[uint]bool // sources with a queued or running job
	Jobs    map[string]*ParseJob

	jobTTL time.Duration
	log    *zap.SugaredLogger
}

// NewParseWorker starts the worker pool and the finished-job janitor.
// resolver may be nil when no fallback is configured.
func NewParseWorker(graph parser.GraphStore, resolver fallback.LineResolver, hub *realtime.Hub, queueSize, numWorkers int, jobTTL time.Duration, log *zap.SugaredLogger) *ParseWorker {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	if jobTTL <= 0 {
		jobTTL = time.Hour
	}
	w := &ParseWorker{
		JobQueue: make(chan *ParseJob, queueSize),
		Graph:    graph,
		Resolver: resolver,
		Hub:      hub,
		StopChan: make(chan struct{}),
		Pending:  make(map[uint]bool),
		Jobs:     make(map[string]*ParseJob),
		jobTTL:   jobTTL,
		log:      log,
	}
	w.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go w.worker(i)
	}
	go w.janitor()
	log.Infow("started parse workers", "workers", numWorkers, "queue_size", queueSize)
	return w
}

// Enqueue registers a job for the request and queues it. One job per source
// at a time; a second request while one is pending gets ErrSourceBusy.
func (w *ParseWorker) Enqueue(req ParseRequest) (*ParseJob, error) {
	w.Mutex.Lock()
	if w.Pending[req.SourceID] {
		w.Mutex.Unlock()
		return nil, ErrSourceBusy
	}
	w.Pending[req.SourceID] = true

	job := &ParseJob{
		ID:        uuid.NewString(),
		SourceID:  req.SourceID,
		DryRun:    req.DryRun,
		Status:    StatusQueued,
		CreatedAt: time.Now().Unix(),
		request:   req,
	}
	w.Jobs[job.ID] = job
	w.Mutex.Unlock()

	select {
	case w.JobQueue <- job:
		w.Hub.Broadcast(realtime.NewEvent("queued", job.ID, job.SourceID))
		w.log.Infow("queued parse", "job_id", job.ID, "source_id", job.SourceID, "dry_run", job.DryRun)
		return job, nil
	default:
		w.Mutex.Lock()
		delete(w.Pending, req.SourceID)
		delete(w.Jobs, job.ID)
		w.Mutex.Unlock()
		return nil, ErrQueueFull
	}
}

// GetJob returns a snapshot of the job with the given ID.
func (w *ParseWorker) GetJob(id string) (ParseJob, bool) {
	w.Mutex.Lock()
	defer w.Mutex.Unlock()
	job, ok := w.Jobs[id]
	if !ok {
		return ParseJob{}, false
	}
	return *job, true
}

// Cancel stops a queued or running job. Queued jobs are marked cancelled and
// skipped when dequeued; running jobs get their context cancelled, which stops
// the parse before the next line.
func (w *ParseWorker) Cancel(id string) bool {
	w.Mutex.Lock()
	defer w.Mutex.Unlock()
	job, ok := w.Jobs[id]
	if !ok {
		return false
	}
	switch job.Status {
	case StatusQueued:
		job.Status = StatusCancelled
		job.FinishedAt = time.Now().Unix()
		delete(w.Pending, job.SourceID)
		w.Hub.Broadcast(realtime.NewEvent("cancelled", job.ID, job.SourceID))
		return true
	case StatusRunning:
		if job.cancel != nil {
			job.cancel()
		}
		return true
	default:
		return false
	}
}

func (w *ParseWorker) worker(id int) {
	defer w.Wg.Done()
	w.log.Debugw("parse worker started", "worker", id)
	for {
		select {
		case job, ok := <-w.JobQueue:
			if !ok {
				return
			}
			w.runJob(job)
		case <-w.StopChan:
			w.log.Debugw("parse worker stopping", "worker", id)
			return
		}
	}
}

func (w *ParseWorker) runJob(job *ParseJob) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Mutex.Lock()
	if job.Status != StatusQueued {
		// cancelled while queued
		w.Mutex.Unlock()
		return
	}
	job.Status = StatusRunning
	job.StartedAt = time.Now().Unix()
	job.cancel = cancel
	req := job.request
	w.Mutex.Unlock()

	w.Hub.Broadcast(realtime.NewEvent("started", job.ID, job.SourceID))

	store := w.Graph
	var mem *parser.MemoryStore
	if req.DryRun {
		mem = parser.NewMemoryStore()
		store = mem
	}

	p := parser.New(store, w.Resolver, w.log)
	summary, err := p.Parse(ctx, req.SourceID, req.Pages, parser.Options{
		Force:               req.Force,
		ConfidenceThreshold: req.ConfidenceThreshold,
		Progress: func(done, total int) {
			w.Mutex.Lock()
			job.Done, job.Total = done, total
			w.Mutex.Unlock()
			ev := realtime.NewEvent("progress", job.ID, job.SourceID)
			ev.Done, ev.Total = done, total
			w.Hub.Broadcast(ev)
		},
	})

	result := &ParseResult{Summary: summary}
	if mem != nil {
		result.Individuals = mem.Individuals()
		result.Unions = mem.Unions()
		result.ChildLinks = mem.ChildLinks()
	}

	w.Mutex.Lock()
	job.Result = result
	job.FinishedAt = time.Now().Unix()
	job.cancel = nil
	eventType := "completed"
	switch {
	case errors.Is(err, context.Canceled):
		job.Status = StatusCancelled
		eventType = "cancelled"
	case err != nil:
		job.Status = StatusFailed
		job.Error = err.Error()
		eventType = "failed"
	default:
		job.Status = StatusCompleted
	}
	delete(w.Pending, job.SourceID)
	w.Mutex.Unlock()

	ev := realtime.NewEvent(eventType, job.ID, job.SourceID)
	ev.Error = job.Error
	w.Hub.Broadcast(ev)
	w.log.Infow("parse finished", "job_id", job.ID, "source_id", job.SourceID, "status", job.Status,
		"people_seen", summary.PeopleSeen, "lines_flagged", summary.LinesFlagged)
}

// janitor drops finished jobs once they outlive the TTL.
func (w *ParseWorker) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-w.jobTTL).Unix()
			w.Mutex.Lock()
			for id, job := range w.Jobs {
				if job.FinishedAt != 0 && job.FinishedAt < cutoff {
					delete(w.Jobs, id)
				}
			}
			w.Mutex.Unlock()
		case <-w.StopChan:
			return
		}
	}
}

// Stop signals all workers and waits for them to drain.
func (w *ParseWorker) Stop() {
	w.log.Info("stopping parse workers")
	close(w.StopChan)
	w.Wg.Wait()
	w.log.Info("all parse workers stopped")
}
