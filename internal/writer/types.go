package writer

import (
	"encoding/json"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

// Row source labels. Streamed books come from the push feed, polled
// books from the REST book endpoint.
const (
	SourceStream = "ws"
	SourceREST   = "rest"
)

// WriterConfig controls batch accumulation for the book writer.
type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	Source        string
}

// DefaultWriterConfig returns settings suitable for the live stream.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
		Source:        SourceStream,
	}
}

// WriterMetrics is a point-in-time copy of the writer counters.
type WriterMetrics struct {
	Received  int64
	Written   int64
	Conflicts int64
	Failed    int64
	Flushes   int64
}

// bookRow is one insert into book_snapshots.
type bookRow struct {
	ID          string
	AssetID     string
	ConditionID string
	SnapshotTs  time.Time
	ReceivedAt  time.Time
	Source      string
	Bids        []byte
	Asks        []byte
	BestBid     float64
	BestAsk     float64
	Spread      float64
	BookHash    string
}

type jsonLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// levelsToJSON renders book levels as a JSONB array payload. An empty
// side becomes the empty array, never null.
func levelsToJSON(levels []model.PriceLevel) []byte {
	out := make([]jsonLevel, len(levels))
	for i, lvl := range levels {
		out[i] = jsonLevel{Price: lvl.Price, Size: lvl.Size}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return []byte("[]")
	}
	return data
}
