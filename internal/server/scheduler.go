package server

import (
	"context"
	"log"
	"sync"
	"time"
)

// StateSupplier captures a room's current snapshot at write time, so a
// deferred save always persists the freshest state rather than the state
// at scheduling time.
type StateSupplier func() *RoomSnapshot

const (
	defaultAutosaveInterval = 30 * time.Second
	defaultDebounce         = 2 * time.Second
	defaultActionCap        = 20
)

// SaveScheduler decides when a room's snapshot is physically written.
// Three paths: an unconditional periodic autosave per room, a debounced
// save that coalesces bursts of mutations, and an immediate save for
// high-value events. The debounce counter caps consecutive deferrals so
// sustained activity can't postpone durability forever.
//
// All timers live in fields of this object, not package state, so tests
// can run isolated instances.
type SaveScheduler struct {
	writer SnapshotWriter

	// Tunable before first use; tests shrink these.
	AutosaveInterval time.Duration
	Debounce         time.Duration
	ActionCap        int

	mu       sync.Mutex
	pending  map[string]*pendingSave
	autosave map[string]chan struct{} // room code -> stop channel
	closed   bool
}

type pendingSave struct {
	timer    *time.Timer
	supplier StateSupplier
	actions  int
}

func NewSaveScheduler(writer SnapshotWriter) *SaveScheduler {
	return &SaveScheduler{
		writer:           writer,
		AutosaveInterval: defaultAutosaveInterval,
		Debounce:         defaultDebounce,
		ActionCap:        defaultActionCap,
		pending:          make(map[string]*pendingSave),
		autosave:         make(map[string]chan struct{}),
	}
}

// StartAutoSave begins the unconditional periodic save for a room.
// Starting twice for the same code replaces the previous loop.
func (s *SaveScheduler) StartAutoSave(roomCode string, supplier StateSupplier) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if stop, ok := s.autosave[roomCode]; ok {
		close(stop)
	}
	stop := make(chan struct{})
	s.autosave[roomCode] = stop
	interval := s.AutosaveInterval
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.write(roomCode, supplier)
			case <-stop:
				return
			}
		}
	}()
}

// StopAutoSave cancels a room's periodic save loop.
func (s *SaveScheduler) StopAutoSave(roomCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.autosave[roomCode]; ok {
		close(stop)
		delete(s.autosave, roomCode)
	}
}

// ScheduleSave requests a debounced save. Each call resets the quiet-period
// timer; the per-room action counter forces an immediate write once it
// reaches ActionCap, and counter and timer reset together.
func (s *SaveScheduler) ScheduleSave(roomCode string, supplier StateSupplier) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	p, ok := s.pending[roomCode]
	if !ok {
		p = &pendingSave{}
		p.timer = time.AfterFunc(s.Debounce, func() { s.fire(roomCode) })
		s.pending[roomCode] = p
	} else {
		p.timer.Reset(s.Debounce)
	}
	p.supplier = supplier
	p.actions++

	if p.actions >= s.ActionCap {
		p.timer.Stop()
		delete(s.pending, roomCode)
		s.mu.Unlock()
		s.write(roomCode, supplier)
		return
	}
	s.mu.Unlock()
}

// SaveNow bypasses the debounce for events where durability matters more
// than write amplification. Any pending debounced save is absorbed.
func (s *SaveScheduler) SaveNow(roomCode string, supplier StateSupplier) {
	s.CancelScheduledSave(roomCode)
	s.write(roomCode, supplier)
}

// CancelScheduledSave drops a pending debounced save without writing.
func (s *SaveScheduler) CancelScheduledSave(roomCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[roomCode]; ok {
		p.timer.Stop()
		delete(s.pending, roomCode)
	}
}

// FlushPendingSaves forces every outstanding debounced save to complete.
// Called before process shutdown.
func (s *SaveScheduler) FlushPendingSaves() {
	s.mu.Lock()
	suppliers := make(map[string]StateSupplier, len(s.pending))
	for code, p := range s.pending {
		p.timer.Stop()
		suppliers[code] = p.supplier
	}
	s.pending = make(map[string]*pendingSave)
	s.mu.Unlock()

	for code, supplier := range suppliers {
		s.write(code, supplier)
	}
}

// Close stops every timer and autosave loop and flushes pending saves.
func (s *SaveScheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for code, stop := range s.autosave {
		close(stop)
		delete(s.autosave, code)
	}
	s.mu.Unlock()

	s.FlushPendingSaves()
}

// fire runs when a debounce timer expires.
func (s *SaveScheduler) fire(roomCode string) {
	s.mu.Lock()
	p, ok := s.pending[roomCode]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, roomCode)
	supplier := p.supplier
	s.mu.Unlock()

	s.write(roomCode, supplier)
}

func (s *SaveScheduler) write(roomCode string, supplier StateSupplier) {
	snap := supplier()
	if snap == nil {
		// Room already torn down; nothing left to persist.
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.writer.SaveRoom(ctx, snap); err != nil {
		log.Printf("Save failed for room %s: %v", roomCode, err)
	}
}
