// Package progress carries migration and sync progress events from the
// pipeline to observers: the log, metrics and connected stream clients.
package progress

import (
	"time"

	"github.com/rs/zerolog"
)

type EventType string

const (
	StageStarted  EventType = "stage.started"
	StageBatch    EventType = "stage.batch"
	StageFinished EventType = "stage.finished"
	SyncPage      EventType = "sync.page"
	SyncFinished  EventType = "sync.finished"
	CursorReset   EventType = "sync.cursor_reset"
)

// Event is emitted at batch boundaries. Entity is set for sync events and
// Cursor holds the watermark after a sync page.
type Event struct {
	Type      EventType `json:"type"`
	Stage     string    `json:"stage,omitempty"`
	Entity    string    `json:"entity,omitempty"`
	Processed int       `json:"processed"`
	Total     int       `json:"total,omitempty"`
	Migrated  int       `json:"migrated,omitempty"`
	Skipped   int       `json:"skipped,omitempty"`
	Failed    int       `json:"failed,omitempty"`
	Cursor    int64     `json:"cursor,omitempty"`
	At        time.Time `json:"at"`
}

type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Fanout delivers each event to every observer in order.
type Fanout []Observer

func (f Fanout) Observe(e Event) {
	for _, o := range f {
		if o != nil {
			o.Observe(e)
		}
	}
}

// Nop discards events.
var Nop Observer = ObserverFunc(func(Event) {})

// Emit stamps e and hands it to o when o is set.
func Emit(o Observer, e Event) {
	if o == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	o.Observe(e)
}

// LogObserver writes events to a zerolog logger. Batch and page events are
// logged at debug level.
func LogObserver(log zerolog.Logger) Observer {
	return ObserverFunc(func(e Event) {
		ev := log.Info()
		if e.Type == StageBatch || e.Type == SyncPage {
			ev = log.Debug()
		}
		if e.Stage != "" {
			ev = ev.Str("stage", e.Stage)
		}
		if e.Entity != "" {
			ev = ev.Str("entity", e.Entity).Int64("cursor", e.Cursor)
		}
		ev.Int("processed", e.Processed).
			Int("total", e.Total).
			Int("migrated", e.Migrated).
			Int("skipped", e.Skipped).
			Int("failed", e.Failed).
			Msg(string(e.Type))
	})
}
