package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/rustyeddy/bintrader/market"
	"github.com/shopspring/decimal"
)

// Header is the fixed column schema of the CSV audit log.
var Header = []string{
	"timestamp", "asset", "direction", "stake", "outcome",
	"profit_loss", "daily_pnl", "policy", "cycle_level",
}

// ErrHeaderMismatch is returned when an existing file has a different schema.
var ErrHeaderMismatch = errors.New("csv header mismatch")

type CSVJournal struct {
	mu sync.Mutex
	w  *csv.Writer
	f  *os.File
}

// NewCSV opens path for appending, creating it with Header when it does not
// exist or is empty. Existing rows are never rewritten. A non-empty file whose
// first row is not Header is rejected with ErrHeaderMismatch.
func NewCSV(path string) (*CSVJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trade log: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat trade log: %w", err)
	}

	if st.Size() > 0 {
		if err := checkHeader(path); err != nil {
			f.Close()
			return nil, err
		}
	}

	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(Header); err != nil {
			f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &CSVJournal{w: w, f: f}, nil
}

func checkHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open trade log: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	hdr, err := cr.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHeaderMismatch, err)
	}
	if !slices.Equal(hdr, Header) {
		return fmt.Errorf("%w: %v", ErrHeaderMismatch, hdr)
	}
	return nil
}

func (j *CSVJournal) Append(t TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.w.Write(row(t)); err != nil {
		return err
	}
	j.w.Flush()
	return j.w.Error()
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.w.Flush()
	if err := j.w.Error(); err != nil {
		j.f.Close()
		return err
	}
	return j.f.Close()
}

func row(t TradeRecord) []string {
	return []string{
		t.Time.UTC().Format(time.RFC3339),
		t.Asset,
		t.Direction.String(),
		t.Stake.String(),
		t.Outcome.String(),
		t.PnL.String(),
		t.DailyPnL.String(),
		t.Policy,
		strconv.Itoa(t.Level),
	}
}

// ReadCSV loads every record from a CSV audit log.
func ReadCSV(path string) ([]TradeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readRecords(f)
}

func readRecords(r io.Reader) ([]TradeRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	hdr, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !slices.Equal(hdr, Header) {
		return nil, fmt.Errorf("%w: %v", ErrHeaderMismatch, hdr)
	}

	var out []TradeRecord
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		t, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, t)
	}
}

func parseRow(rec []string) (TradeRecord, error) {
	var (
		t   TradeRecord
		err error
	)
	if t.Time, err = time.Parse(time.RFC3339, rec[0]); err != nil {
		return t, fmt.Errorf("timestamp: %w", err)
	}
	t.Asset = rec[1]
	if t.Direction, err = market.ParseDirection(rec[2]); err != nil {
		return t, err
	}
	if t.Stake, err = decimal.NewFromString(rec[3]); err != nil {
		return t, fmt.Errorf("stake: %w", err)
	}
	if t.Outcome, err = market.ParseOutcome(rec[4]); err != nil {
		return t, err
	}
	if t.PnL, err = decimal.NewFromString(rec[5]); err != nil {
		return t, fmt.Errorf("profit_loss: %w", err)
	}
	if t.DailyPnL, err = decimal.NewFromString(rec[6]); err != nil {
		return t, fmt.Errorf("daily_pnl: %w", err)
	}
	t.Policy = rec[7]
	if t.Level, err = strconv.Atoi(rec[8]); err != nil {
		return t, fmt.Errorf("cycle_level: %w", err)
	}
	return t, nil
}
