package jobs

import (
	"context"
	"maps"
	"strings"
	"sync"
	"time"
)

// Kind identifies the pipeline a job runs.
type Kind string

const (
	KindSegmentation  Kind = "segmentation"
	KindEmbedding     Kind = "embedding"
	KindSummarization Kind = "summarization"
)

// Exit codes recorded when a job stops running.
const (
	ExitSuccess   = 0
	ExitFailure   = 1
	ExitCancelled = -1
)

// StageFailed is the stage of the event the runner emits when a workload
// returns an error.
const StageFailed = "failed"

// Event is one progress report from a workload.
// Counters carry running totals and overwrite earlier values of the same name.
type Event struct {
	Stage     string         `json:"stage"`
	ItemID    string         `json:"item_id,omitempty"`
	ItemLabel string         `json:"item_label,omitempty"`
	Error     string         `json:"error,omitempty"`
	Counters  map[string]int `json:"counters,omitempty"`
	Time      time.Time      `json:"time"`
}

// Message renders the human-readable status line for the event.
func (e Event) Message() string {
	switch {
	case e.Error != "":
		return e.Stage + ": " + e.Error
	case e.ItemLabel != "":
		return e.Stage + " · " + e.ItemLabel
	default:
		return e.Stage
	}
}

// sanitized returns a copy with malformed UTF-8 replaced and its own counter map.
func (e Event) sanitized() Event {
	e.Stage = strings.ToValidUTF8(e.Stage, "\uFFFD")
	e.ItemID = strings.ToValidUTF8(e.ItemID, "\uFFFD")
	e.ItemLabel = strings.ToValidUTF8(e.ItemLabel, "\uFFFD")
	e.Error = strings.ToValidUTF8(e.Error, "\uFFFD")
	e.Counters = maps.Clone(e.Counters)
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	return e
}

// EmitFunc reports a progress event to the runner.
type EmitFunc func(Event)

// Workload is the body of a job. It reports progress through emit and
// checks cancel at its checkpoints. Returning an error fails the job.
type Workload func(ctx context.Context, emit EmitFunc, cancel *CancelToken) error

// CancelToken is a one-shot cancellation signal.
type CancelToken struct {
	once sync.Once
	done chan struct{}
}

// NewCancelToken returns an unraised token.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel raises the signal. Further calls are no-ops.
func (t *CancelToken) Cancel() {
	t.once.Do(func() { close(t.done) })
}

// Cancelled reports whether the signal has been raised.
func (t *CancelToken) Cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the signal is raised.
func (t *CancelToken) Done() <-chan struct{} {
	return t.done
}

// Stats holds a job's folded counters and current position.
type Stats struct {
	Counters         map[string]int `json:"counters"`
	CurrentItemID    string         `json:"current_item_id,omitempty"`
	CurrentItemLabel string         `json:"current_item_label,omitempty"`
}

// Status is a point-in-time snapshot of a job.
type Status struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Running     bool      `json:"running"`
	ExitCode    *int      `json:"exit_code"`
	Stats       Stats     `json:"stats"`
	LastMessage string    `json:"last_message"`
	Log         []Event   `json:"log"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}

// Counter returns a named counter, or zero if it was never reported.
func (s *Status) Counter(name string) int {
	return s.Stats.Counters[name]
}

// job is the registry's mutable record. mu guards everything below it.
type job struct {
	id        string
	kind      Kind
	startedAt time.Time
	token     *CancelToken
	done      chan struct{}

	mu          sync.Mutex
	running     bool
	exitCode    *int
	finishedAt  time.Time
	stats       Stats
	lastMessage string
	log         []Event
}

func newJob(id string, kind Kind) *job {
	return &job{
		id:          id,
		kind:        kind,
		startedAt:   time.Now().UTC(),
		token:       NewCancelToken(),
		done:        make(chan struct{}),
		running:     true,
		stats:       Stats{Counters: make(map[string]int)},
		lastMessage: "started",
	}
}

// apply folds an already sanitized event into the job.
func (j *job) apply(ev Event) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for name, value := range ev.Counters {
		j.stats.Counters[name] = value
	}
	if ev.ItemID != "" || ev.ItemLabel != "" {
		j.stats.CurrentItemID = ev.ItemID
		j.stats.CurrentItemLabel = ev.ItemLabel
	}
	j.lastMessage = ev.Message()
	j.log = append(j.log, ev)
}

// finish records the exit code unless the job already stopped.
// It reports whether this call made the transition.
func (j *job) finish(code int) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return false
	}
	j.running = false
	j.exitCode = &code
	j.finishedAt = time.Now().UTC()
	return true
}

func (j *job) snapshot() *Status {
	j.mu.Lock()
	defer j.mu.Unlock()

	st := &Status{
		ID:          j.id,
		Kind:        j.kind,
		Running:     j.running,
		Stats:       j.stats,
		LastMessage: j.lastMessage,
		Log:         make([]Event, len(j.log)),
		StartedAt:   j.startedAt,
		FinishedAt:  j.finishedAt,
	}
	st.Stats.Counters = maps.Clone(j.stats.Counters)
	copy(st.Log, j.log)
	if j.exitCode != nil {
		code := *j.exitCode
		st.ExitCode = &code
	}
	return st
}
