package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ViolationWriter persists violation records asynchronously so the event
// path never blocks on the database. A write failure is surfaced as a
// warning and the record is dropped without retry: observers were already
// notified in real time, and the design trades perfect audit completeness
// for real-time alerting.
type ViolationWriter struct {
	db   *DB
	ch   chan *ViolationRecord
	wg   sync.WaitGroup
	done chan struct{}
}

func NewViolationWriter(db *DB, bufferSize int) *ViolationWriter {
	if bufferSize < 1 {
		bufferSize = 1000
	}
	return &ViolationWriter{
		db:   db,
		ch:   make(chan *ViolationRecord, bufferSize),
		done: make(chan struct{}),
	}
}

func (w *ViolationWriter) Start() {
	w.wg.Add(1)
	go w.processLoop()
}

// Log queues a record for persistence. A full buffer drops the record.
func (w *ViolationWriter) Log(rec *ViolationRecord) {
	select {
	case w.ch <- rec:
	default:
		log.Warn().Str("violation_id", rec.ID).Msg("violation buffer full, dropping record")
	}
}

// Flush drains queued records and stops the writer.
func (w *ViolationWriter) Flush(timeout time.Duration) {
	close(w.done)

	doneCh := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		log.Info().Msg("violation writer flushed")
	case <-time.After(timeout):
		log.Warn().Msg("violation writer flush timed out")
	}
}

func (w *ViolationWriter) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case rec := <-w.ch:
			w.write(rec)
		case <-w.done:
			// Drain remaining entries
			for {
				select {
				case rec := <-w.ch:
					w.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (w *ViolationWriter) write(rec *ViolationRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.db.InsertViolation(ctx, rec); err != nil {
		log.Warn().
			Err(err).
			Str("violation_id", rec.ID).
			Str("session_id", rec.SessionID).
			Msg("violation write failed, record lost")
	}
}
