package journal

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"minepilot.ai/internal/fault"
)

const (
	KindTick = "tick"
	KindTool = "tool"
)

type Entry struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Kind       string    `json:"kind"`
	Name       string    `json:"name"`
	DurationMS float64   `json:"duration_ms"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	Code       string    `json:"code,omitempty"`
}

// Journal records behavior ticks and tool calls. Write failures are logged
// and otherwise ignored.
type Journal struct {
	w   *JSONLZstdWriter
	log *slog.Logger
}

func Open(dir string, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{w: NewJSONLZstdWriter(dir, filePrefix), log: logger.With("component", "journal")}
}

func (j *Journal) Close() error { return j.w.Close() }

func (j *Journal) record(kind, name string, took time.Duration, err error) {
	e := Entry{
		ID:         uuid.NewString(),
		Time:       j.w.now().UTC(),
		Kind:       kind,
		Name:       name,
		DurationMS: float64(took.Microseconds()) / 1000,
		OK:         err == nil,
	}
	if err != nil {
		e.Error = err.Error()
		e.Code = fault.CodeOf(err)
	}
	switch werr := j.w.Write(e); {
	case errors.Is(werr, ErrClosed):
		j.log.Debug("journal closed, entry dropped", "kind", kind, "name", name)
	case werr != nil:
		j.log.Warn("journal write failed", "err", werr)
	}
}

func (j *Journal) ObserveTick(behavior string, took time.Duration, err error) {
	j.record(KindTick, behavior, took, err)
}

func (j *Journal) ObserveCall(tool string, took time.Duration, err error) {
	j.record(KindTool, tool, took, err)
}
