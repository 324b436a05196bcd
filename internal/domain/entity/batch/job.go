package batch

import (
	"time"

	"github.com/google/uuid"

	marketdata "marketbridge/internal/domain/entity/marketdata"
)

// Pair is one (symbol, resolution) fetch unit.
type Pair struct {
	Symbol     string `json:"symbol"`
	Resolution string `json:"resolution"`
}

// Job describes a batch fetch over the cartesian product of symbols and
// resolutions. Watchlist, when set, is expanded into Symbols before the job
// runs. Indicator names a study configuration resolved through the
// indicator config collaborator.
type Job struct {
	ID          uuid.UUID `json:"id"`
	Symbols     []string  `json:"symbols"`
	Resolutions []string  `json:"resolutions"`
	BarCount    int       `json:"bar_count"`
	Watchlist   string    `json:"watchlist,omitempty"`
	Indicator   string    `json:"indicator,omitempty"`
}

// Pairs expands the job in symbol-major order: every resolution of the
// first symbol, then the next symbol.
func (j Job) Pairs() []Pair {
	out := make([]Pair, 0, len(j.Symbols)*len(j.Resolutions))
	for _, sym := range j.Symbols {
		for _, res := range j.Resolutions {
			out = append(out, Pair{Symbol: sym, Resolution: res})
		}
	}
	return out
}

// PairResult is the outcome of one pair. Either Chart is set or Error
// carries the failure; a failed pair never aborts its job.
type PairResult struct {
	Symbol     string                `json:"symbol"`
	Resolution string                `json:"resolution"`
	Chart      *marketdata.ChartData `json:"chart,omitempty"`
	Error      string                `json:"error,omitempty"`
	ErrorKind  string                `json:"error_kind,omitempty"`
}

// Failed reports whether the pair ended in an error.
func (r PairResult) Failed() bool { return r.Error != "" }

// Progress tracks completed pairs against the job total.
type Progress struct {
	Loaded     int     `json:"loaded"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Event is emitted after each completed batch of pairs.
type Event struct {
	JobID        uuid.UUID    `json:"job_id"`
	BatchIndex   int          `json:"batch_index"`
	TotalBatches int          `json:"total_batches"`
	Pairs        []PairResult `json:"pairs"`
	Progress     Progress     `json:"progress"`
	BatchElapsed int64        `json:"batch_elapsed_ms"`
	Elapsed      int64        `json:"elapsed_ms"`
	EmittedAt    time.Time    `json:"emitted_at"`
}

// Result summarizes a finished job.
type Result struct {
	JobID     uuid.UUID    `json:"job_id"`
	Pairs     []PairResult `json:"pairs"`
	Completed int          `json:"completed"`
	Failed    int          `json:"failed"`
	Elapsed   int64        `json:"elapsed_ms"`
}
