package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"SessionLens/internal/domain/models"
	applogger "SessionLens/pkg/logger"

	"github.com/shopspring/decimal"
)

var columns = []string{"datetime", "open", "high", "low", "close", "volume"}

// LoaderOption configures Loader.
type LoaderOption func(*LoaderConfig)

// LoaderConfig holds input format settings.
type LoaderConfig struct {
	Delimiter rune
	Layout    string
}

// WithDelimiter sets the field separator.
func WithDelimiter(d rune) LoaderOption {
	return func(c *LoaderConfig) {
		c.Delimiter = d
	}
}

// WithLayout sets the datetime layout (Go reference time).
func WithLayout(layout string) LoaderOption {
	return func(c *LoaderConfig) {
		c.Layout = layout
	}
}

// Loader reads headerless delimited minute bars:
// datetime;open;high;low;close;volume with datetime as YYYYMMDD HHMMSS.
type Loader struct {
	cfg LoaderConfig
	l   *applogger.Logger
}

func NewLoader(l *applogger.Logger, opts ...LoaderOption) *Loader {
	cfg := LoaderConfig{
		Delimiter: ';',
		Layout:    "20060102 150405",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Loader{cfg: cfg, l: l}
}

// Load opens path and parses it.
func (ld *Loader) Load(path string) ([]models.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	start := time.Now()
	candles, err := ld.Parse(f)
	if err != nil {
		return nil, err
	}
	ld.l.Info("input loaded",
		applogger.String("path", path),
		applogger.Int("rows", len(candles)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return candles, nil
}

// Parse reads candles from r. The first malformed row aborts with *models.ParseError.
func (ld *Loader) Parse(r io.Reader) ([]models.Candle, error) {
	cr := csv.NewReader(r)
	cr.Comma = ld.cfg.Delimiter
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	out := make([]models.Candle, 0, 4096)
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, &models.ParseError{Line: line, Field: "row", Reason: "unreadable record", Err: err}
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) != len(columns) {
			return nil, &models.ParseError{
				Line:   line,
				Field:  "row",
				Value:  strings.Join(rec, string(ld.cfg.Delimiter)),
				Reason: fmt.Sprintf("expected %d fields, got %d", len(columns), len(rec)),
				Err:    errors.New("field count mismatch"),
			}
		}
		c, err := ld.parseRecord(line, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (ld *Loader) parseRecord(line int, rec []string) (models.Candle, error) {
	var c models.Candle

	raw := strings.TrimSpace(rec[0])
	ts, err := time.Parse(ld.cfg.Layout, raw)
	if err != nil {
		return c, &models.ParseError{Line: line, Field: columns[0], Value: raw, Reason: "expected layout " + ld.cfg.Layout, Err: err}
	}
	c.Timestamp = ts

	prices := []*float64{&c.Open, &c.High, &c.Low, &c.Close}
	for i, dst := range prices {
		field := strings.TrimSpace(rec[i+1])
		if field == "" {
			c.Missing = append(c.Missing, columns[i+1])
			continue
		}
		d, err := decimal.NewFromString(field)
		if err != nil {
			return c, &models.ParseError{Line: line, Field: columns[i+1], Value: field, Reason: "not a number", Err: err}
		}
		*dst = d.InexactFloat64()
	}

	field := strings.TrimSpace(rec[5])
	if field == "" {
		c.Missing = append(c.Missing, columns[5])
		return c, nil
	}
	vol, err := decimal.NewFromString(field)
	if err != nil {
		return c, &models.ParseError{Line: line, Field: columns[5], Value: field, Reason: "not a number", Err: err}
	}
	if !vol.IsInteger() {
		return c, &models.ParseError{Line: line, Field: columns[5], Value: field, Reason: "volume must be an integer", Err: errors.New("fractional volume")}
	}
	c.Volume = vol.IntPart()
	return c, nil
}
