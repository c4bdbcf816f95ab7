package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"SessionLens/internal/domain/models"
	applogger "SessionLens/pkg/logger"
)

// Ingestor runs load, validate and enrich in sequence. A batch that fails
// validation is never enriched.
type Ingestor struct {
	loader   *Loader
	validate *Validator
	enrich   *Enricher
	l        *applogger.Logger
}

func NewIngestor(loader *Loader, validator *Validator, enricher *Enricher, l *applogger.Logger) *Ingestor {
	if l == nil {
		l = applogger.Nop()
	}
	return &Ingestor{loader: loader, validate: validator, enrich: enricher, l: l}
}

// Report describes a finished ingestion.
type Report struct {
	Dataset    *models.Dataset
	Validation *models.ValidationResult
}

// Process ingests the file at path.
func (in *Ingestor) Process(path string) (*Report, error) {
	candles, err := in.loader.Load(path)
	if err != nil {
		return nil, in.loadFailed(path, err)
	}
	return in.finish(datasetID(path), path, candles)
}

// ProcessReader ingests an already opened source. id names the resulting dataset.
func (in *Ingestor) ProcessReader(id string, r io.Reader) (*Report, error) {
	candles, err := in.loader.Parse(r)
	if err != nil {
		return nil, in.loadFailed(id, err)
	}
	return in.finish(id, id, candles)
}

func (in *Ingestor) loadFailed(source string, err error) error {
	var pe *models.ParseError
	if errors.As(err, &pe) {
		in.l.Warn("input row rejected",
			applogger.String("source", source),
			applogger.Int("line", pe.Line),
			applogger.String("field", pe.Field),
			applogger.String("value", pe.Value),
			applogger.Error(pe.Err),
		)
	}
	return &models.RunError{Stage: "load", Errors: []string{err.Error()}, Err: err}
}

func (in *Ingestor) finish(id, source string, candles []models.Candle) (*Report, error) {
	if len(candles) == 0 {
		return nil, &models.RunError{Stage: "load", Errors: []string{models.ErrEmptyDataset.Error()}, Err: models.ErrEmptyDataset}
	}

	vr := in.validate.Validate(candles)
	warnings := vr.WarningMessages()
	for _, w := range vr.Warnings {
		in.l.Warn("validation warning",
			applogger.String("kind", string(w.Kind)),
			applogger.Int("count", w.Count),
			applogger.String("message", w.Message),
		)
	}
	if err := vr.Err(); err != nil {
		in.l.Error("validation failed",
			applogger.String("source", source),
			applogger.Strings("errors", vr.Errors),
		)
		return &Report{Validation: vr}, &models.RunError{Stage: "validate", Errors: vr.Errors, Warnings: warnings, Err: err}
	}

	er := in.enrich.Enrich(candles)
	warnings = append(warnings, er.Warnings...)

	ds := &models.Dataset{
		ID:          id,
		Source:      source,
		Fingerprint: Fingerprint(er.Candles),
		Candles:     er.Candles,
		Warnings:    warnings,
	}
	in.l.Info("dataset ingested",
		applogger.String("dataset", ds.ID),
		applogger.Int("candles", len(ds.Candles)),
		applogger.Int("warnings", len(warnings)),
	)
	return &Report{Dataset: ds, Validation: vr}, nil
}

// Fingerprint hashes the enriched series so equal inputs map to equal keys.
func Fingerprint(candles []models.Candle) string {
	h := sha256.New()
	var b strings.Builder
	for _, c := range candles {
		b.Reset()
		b.WriteString(strconv.FormatInt(c.Timestamp.Unix(), 10))
		for _, f := range []float64{c.Open, c.High, c.Low, c.Close} {
			b.WriteByte('|')
			b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}
		b.WriteByte('|')
		b.WriteString(strconv.FormatInt(c.Volume, 10))
		if len(c.Missing) > 0 {
			b.WriteString("|-")
			b.WriteString(strings.Join(c.Missing, ","))
		}
		b.WriteByte('\n')
		_, _ = io.WriteString(h, b.String())
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func datasetID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
