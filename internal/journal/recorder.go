package journal

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Versifine/motor/internal/event"
)

// Entry is one recorded control event.
type Entry struct {
	Seq     uint64    `json:"seq"`
	Session string    `json:"session,omitempty"`
	Event   string    `json:"event"`
	At      time.Time `json:"at"`
	Data    any       `json:"data"`
}

// Recorder journals bus events for one agent session.
type Recorder struct {
	w       *Writer
	session string
	seq     atomic.Uint64
}

func NewRecorder(w *Writer, session string) *Recorder {
	return &Recorder{w: w, session: session}
}

// Attach subscribes the recorder to every name in events. Bus handlers run
// concurrently, so Seq reflects write order rather than publish order.
func (r *Recorder) Attach(bus *event.Bus, events []string) {
	for _, name := range events {
		name := name
		bus.Subscribe(name, func(evt any) {
			r.Record(name, evt)
		})
	}
}

func (r *Recorder) Record(name string, data any) {
	if r == nil || r.w == nil {
		return
	}
	entry := Entry{
		Seq:     r.seq.Add(1),
		Session: r.session,
		Event:   name,
		At:      time.Now(),
		Data:    data,
	}
	if err := r.w.Write(entry); err != nil {
		slog.Warn("Journal write failed", "event", name, "error", err)
	}
}

func (r *Recorder) Close() error {
	if r == nil || r.w == nil {
		return nil
	}
	return r.w.Close()
}
