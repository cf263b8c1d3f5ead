// Package capture turns matcher hits on OSC payloads into append-only
// JSON Lines records.
package capture

import (
	"bytes"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yosagi/osc-tap/internal/logging"
	"github.com/yosagi/osc-tap/internal/matcher"
)

// Record is one captured match, serialized as a single JSON line.
// TS is RFC 3339 with the local UTC offset, captured at match time.
type Record struct {
	TS      string `json:"ts"`
	Matcher string `json:"matcher"`
	String  string `json:"string"`
}

// Emitter appends records to a log stream, one JSON object per line.
// Writes are serialized and unbuffered, so each record is flushed on its
// own and lines never interleave. Write failures are reported to stderr
// but never propagate: the interactive session outlives the log.
type Emitter struct {
	mu       sync.Mutex
	w        io.Writer
	reported bool
	logger   *logrus.Entry
}

// NewEmitter creates an emitter writing to w. A nil writer is valid and
// drops all records (log destination unavailable).
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{
		w:      w,
		logger: logging.NewLogger("capture"),
	}
}

// Emit appends one record.
func (e *Emitter) Emit(rec Record) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		// Record fields are plain strings; this should be unreachable.
		e.logger.WithError(err).Warn("Failed to encode capture record")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.w == nil {
		return
	}
	if _, err := e.w.Write(buf.Bytes()); err != nil && !e.reported {
		e.reported = true
		e.logger.WithError(err).Warn("Log destination unwritable, records may be lost")
	}
}

// Pipeline feeds completed OSC payloads through a matcher set into an
// emitter. Invoked sequentially from the output-forwarding flow.
type Pipeline struct {
	set     *matcher.Set
	emitter *Emitter
	now     func() time.Time
}

// NewPipeline creates a pipeline over the given matcher set and emitter.
func NewPipeline(set *matcher.Set, emitter *Emitter) *Pipeline {
	return &Pipeline{set: set, emitter: emitter, now: time.Now}
}

// Payload evaluates one completed OSC payload. Every firing matcher
// produces its own record; a payload matching nothing is discarded.
// The timestamp is taken here, at match time, not at write time.
func (p *Pipeline) Payload(payload string) {
	matches := p.set.Eval(payload)
	if len(matches) == 0 {
		return
	}
	ts := p.now().Format(time.RFC3339)
	for _, m := range matches {
		p.emitter.Emit(Record{TS: ts, Matcher: m.Name, String: m.Value})
	}
}
