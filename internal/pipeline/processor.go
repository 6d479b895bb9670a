package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

// Data directory layout. Each subdirectory holds date-stamped CSV
// files, one per pipeline run per day.
const (
	dirRawData     = "raw_data"
	dirOpenMarkets = "open_markets"
	dirOrderBooks  = "order_books"
	dirGammaAPI    = "gamma_api"
)

var marketsHeader = []string{
	"condition_id", "question_id", "question", "slug", "category",
	"active", "closed", "accepting_orders",
	"minimum_order_size", "minimum_tick_size", "volume_24hr", "liquidity",
	"token_0_id", "token_0_outcome", "token_0_price", "token_0_winner",
	"token_1_id", "token_1_outcome", "token_1_price", "token_1_winner",
	"fetched_at",
}

var booksHeader = []string{
	"condition_id", "token_id", "timestamp",
	"bids_count", "asks_count", "best_bid", "best_ask",
	"bids", "asks", "book_hash",
}

// Processor reads and writes the pipeline's CSV artifacts.
type Processor struct {
	dataDir string
	logger  *slog.Logger
}

// NewProcessor creates a processor rooted at dataDir.
func NewProcessor(dataDir string, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		dataDir: dataDir,
		logger:  logger.With("component", "processor"),
	}
}

// SetupDirectories creates the data directory tree.
func (p *Processor) SetupDirectories() error {
	for _, dir := range []string{dirRawData, dirOpenMarkets, dirOrderBooks, dirGammaAPI} {
		if err := os.MkdirAll(filepath.Join(p.dataDir, dir), 0o755); err != nil {
			return fmt.Errorf("create data directory %s: %w", dir, err)
		}
	}
	return nil
}

// MarketsPath returns the raw CLOB catalog file for the given day.
func (p *Processor) MarketsPath(date time.Time) string {
	return filepath.Join(p.dataDir, dirRawData, "polymarket_data_"+dateStamp(date)+".csv")
}

// OpenMarketsPath returns the filtered open-market file for the given day.
func (p *Processor) OpenMarketsPath(date time.Time) string {
	return filepath.Join(p.dataDir, dirOpenMarkets, "open_markets_"+dateStamp(date)+".csv")
}

// BooksPath returns the polled order-book file for the given day.
func (p *Processor) BooksPath(date time.Time) string {
	return filepath.Join(p.dataDir, dirOrderBooks, "order_books_"+dateStamp(date)+".csv")
}

// GammaPath returns the Gamma catalog file for the given day.
func (p *Processor) GammaPath(date time.Time) string {
	return filepath.Join(p.dataDir, dirGammaAPI, "markets_"+dateStamp(date)+".csv")
}

func dateStamp(t time.Time) string {
	return t.Format("20060102")
}

// SaveMarketsCSV writes markets to path, replacing any existing file.
func (p *Processor) SaveMarketsCSV(markets []model.Market, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create markets csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(marketsHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, m := range markets {
		if err := w.Write(marketRecord(m)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush markets csv: %w", err)
	}

	p.logger.Info("markets saved", "path", path, "rows", len(markets))
	return nil
}

// LoadMarketsCSV reads a markets file written by SaveMarketsCSV.
// Columns are matched by header name, so column order does not matter;
// unparsable cells load as zero values.
func (p *Processor) LoadMarketsCSV(path string) ([]model.Market, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open markets csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	if _, ok := col["condition_id"]; !ok {
		return nil, fmt.Errorf("markets csv %s: missing condition_id column", filepath.Base(path))
	}

	var markets []model.Market
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		markets = append(markets, recordToMarket(rec, col))
	}
	return markets, nil
}

// SaveBooksCSV writes polled book snapshots to path. Level arrays are
// serialized as JSON [price, size] pairs inside their cells.
func (p *Processor) SaveBooksCSV(books []model.BookSnapshot, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create books csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(booksHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, snap := range books {
		if err := w.Write(bookRecord(snap)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush books csv: %w", err)
	}

	p.logger.Info("books saved", "path", path, "rows", len(books))
	return nil
}

// FilterOpenMarkets keeps markets open for trading, the same predicate
// the registry applies to its live view.
func (p *Processor) FilterOpenMarkets(markets []model.Market) []model.Market {
	open := make([]model.Market, 0, len(markets))
	for _, m := range markets {
		if m.Open() {
			open = append(open, m)
		}
	}
	return open
}

func marketRecord(m model.Market) []string {
	rec := []string{
		m.ConditionID, m.QuestionID, m.Question, m.Slug, m.Category,
		strconv.FormatBool(m.Active),
		strconv.FormatBool(m.Closed),
		strconv.FormatBool(m.AcceptingOrders),
		formatFloat(m.MinimumOrderSize),
		formatFloat(m.MinimumTickSize),
		formatFloat(m.Volume24h),
		formatFloat(m.Liquidity),
	}

	for i := 0; i < 2; i++ {
		if i < len(m.Tokens) {
			tok := m.Tokens[i]
			rec = append(rec, tok.ID, tok.Outcome, formatFloat(tok.Price), strconv.FormatBool(tok.Winner))
		} else {
			rec = append(rec, "", "", "", "")
		}
	}

	if m.FetchedAt.IsZero() {
		rec = append(rec, "")
	} else {
		rec = append(rec, m.FetchedAt.UTC().Format(time.RFC3339Nano))
	}
	return rec
}

func recordToMarket(rec []string, col map[string]int) model.Market {
	get := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	m := model.Market{
		ConditionID:      get("condition_id"),
		QuestionID:       get("question_id"),
		Question:         get("question"),
		Slug:             get("slug"),
		Category:         get("category"),
		Active:           parseBool(get("active")),
		Closed:           parseBool(get("closed")),
		AcceptingOrders:  parseBool(get("accepting_orders")),
		MinimumOrderSize: parseFloat(get("minimum_order_size")),
		MinimumTickSize:  parseFloat(get("minimum_tick_size")),
		Volume24h:        parseFloat(get("volume_24hr")),
		Liquidity:        parseFloat(get("liquidity")),
	}

	for _, prefix := range []string{"token_0_", "token_1_"} {
		id := get(prefix + "id")
		if id == "" {
			continue
		}
		m.Tokens = append(m.Tokens, model.Token{
			ID:      id,
			Outcome: get(prefix + "outcome"),
			Price:   parseFloat(get(prefix + "price")),
			Winner:  parseBool(get(prefix + "winner")),
		})
	}

	if ts := get("fetched_at"); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			m.FetchedAt = t
		}
	}
	return m
}

func bookRecord(snap model.BookSnapshot) []string {
	return []string{
		snap.ConditionID,
		snap.AssetID,
		snap.Timestamp.UTC().Format(time.RFC3339Nano),
		strconv.Itoa(len(snap.Bids)),
		strconv.Itoa(len(snap.Asks)),
		formatFloat(snap.BestBid()),
		formatFloat(snap.BestAsk()),
		pairsJSON(snap.Bids),
		pairsJSON(snap.Asks),
		snap.Hash,
	}
}

func pairsJSON(levels []model.PriceLevel) string {
	pairs := make([][2]float64, len(levels))
	for i, lvl := range levels {
		pairs[i] = [2]float64{lvl.Price, lvl.Size}
	}

	data, err := json.Marshal(pairs)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
