package job

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fleetops/fleetops/internal/sdkmessage"
)

// OutputStream is a live handle on one job's output, for tailing a
// running (or already-finished) job. On first subscribe it replays
// everything already persisted, then polls for new lines and for the job
// reaching a terminal status. Each poll re-reads the whole output file
// and delivers only the messages beyond those already delivered.
type OutputStream struct {
	jobID        string
	store        *Store
	pollInterval time.Duration

	mu          sync.Mutex
	nextSubID   int
	messageSubs []messageSub
	endSubs     []endSub
	errorSubs   []errorSub
	started     bool
	stopCh      chan struct{}
	stopOnce    sync.Once
}

type messageSub struct {
	id int
	cb func(sdkmessage.Message)
}

type endSub struct {
	id int
	cb func()
}

type errorSub struct {
	id int
	cb func(error)
}

// NewOutputStream builds a stream for jobID. Callers normally get one via
// Manager.StreamJobOutput rather than calling this directly.
func NewOutputStream(store *Store, jobID string) *OutputStream {
	return &OutputStream{
		jobID:        jobID,
		store:        store,
		pollInterval: time.Second,
		stopCh:       make(chan struct{}),
	}
}

// OnMessage registers cb to be called, in order, for every message: the
// ones already persisted (replayed synchronously, before OnMessage
// returns) and every one appended afterward. Starts the background poll
// loop on first call. The returned function unsubscribes cb.
func (s *OutputStream) OnMessage(cb func(sdkmessage.Message)) (off func()) {
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.messageSubs = append(s.messageSubs, messageSub{id: id, cb: cb})
	needsStart := !s.started
	s.started = true
	s.mu.Unlock()

	existing, err := s.store.ReadOutput(s.jobID)
	if err != nil {
		slog.Warn("job: failed to read output for replay", "job_id", s.jobID, "error", err)
	}
	for _, msg := range existing {
		cb(msg)
	}

	if needsStart {
		go s.poll(len(existing))
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.messageSubs {
			if sub.id == id {
				s.messageSubs = append(s.messageSubs[:i:i], s.messageSubs[i+1:]...)
				return
			}
		}
	}
}

// OnEnd registers cb to be called once the job reaches a terminal
// status. The returned function unsubscribes cb.
func (s *OutputStream) OnEnd(cb func()) (off func()) {
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.endSubs = append(s.endSubs, endSub{id: id, cb: cb})
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.endSubs {
			if sub.id == id {
				s.endSubs = append(s.endSubs[:i:i], s.endSubs[i+1:]...)
				return
			}
		}
	}
}

// OnError registers cb to be called if polling itself fails
// unrecoverably (not job-level failures, which surface via OnEnd plus
// the job's own Status/ErrorMessage). The returned function
// unsubscribes cb.
func (s *OutputStream) OnError(cb func(error)) (off func()) {
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.errorSubs = append(s.errorSubs, errorSub{id: id, cb: cb})
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.errorSubs {
			if sub.id == id {
				s.errorSubs = append(s.errorSubs[:i:i], s.errorSubs[i+1:]...)
				return
			}
		}
	}
}

// Stop ends the poll loop. Idempotent and safe to call even if OnMessage
// was never called.
func (s *OutputStream) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *OutputStream) poll(replayedCount int) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	seen := replayedCount
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			all, err := s.store.ReadOutput(s.jobID)
			if err != nil {
				s.emitError(err)
				continue
			}
			if len(all) > seen {
				for _, msg := range all[seen:] {
					s.emitMessage(msg)
				}
				seen = len(all)
			}

			j, err := s.store.LoadMetadata(s.jobID)
			if err != nil {
				s.emitError(err)
				continue
			}
			if j.Status.IsTerminal() {
				s.emitEnd()
				return
			}
		}
	}
}

func (s *OutputStream) emitMessage(msg sdkmessage.Message) {
	s.mu.Lock()
	subs := append([]messageSub{}, s.messageSubs...)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.cb(msg)
	}
}

func (s *OutputStream) emitEnd() {
	s.mu.Lock()
	subs := append([]endSub{}, s.endSubs...)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.cb()
	}
}

func (s *OutputStream) emitError(err error) {
	s.mu.Lock()
	subs := append([]errorSub{}, s.errorSubs...)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.cb(err)
	}
}

// StreamJobOutput returns a live output handle for id, or a
// JobNotFoundError if the job doesn't exist.
func (m *Manager) StreamJobOutput(id string) (*OutputStream, error) {
	if _, err := m.store.LoadMetadata(id); err != nil {
		return nil, err
	}
	return NewOutputStream(m.store, id), nil
}
