package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"SessionLens/internal/domain/models"
	"SessionLens/internal/services/session"
	"SessionLens/internal/services/timezone"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `20240115 100000;17000.25;17010.50;16995.00;17005.75;120
20240115 100100;17005.75;17012.00;17001.00;17011.00;95
20240115 100200;17011.00;17015.25;17008.50;17009.00;80
`

func candle(ts string, o, h, l, c float64, v int64) models.Candle {
	t, err := time.Parse("20060102 150405", ts)
	if err != nil {
		panic(err)
	}
	return models.Candle{Timestamp: t, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func newIngestor(t *testing.T, sourceTZ string) *Ingestor {
	t.Helper()
	cls, err := session.NewClassifier(session.DefaultWindows())
	require.NoError(t, err)
	norm := timezone.NewNormalizer(sourceTZ, "America/New_York", nil)
	return NewIngestor(NewLoader(nil), NewValidator(DefaultBounds()), NewEnricher(norm, cls), nil)
}

func TestLoaderParse(t *testing.T) {
	got, err := NewLoader(nil).Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), got[0].Timestamp)
	assert.Equal(t, 17000.25, got[0].Open)
	assert.Equal(t, 17010.50, got[0].High)
	assert.Equal(t, 16995.00, got[0].Low)
	assert.Equal(t, 17005.75, got[0].Close)
	assert.Equal(t, int64(120), got[0].Volume)
	assert.Empty(t, got[0].Missing)
}

func TestLoaderCustomDelimiter(t *testing.T) {
	in := strings.ReplaceAll(sample, ";", ",")
	got, err := NewLoader(nil, WithDelimiter(',')).Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestLoaderMalformedRow(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"bad datetime", "2024-01-15 10:00;1;2;0.5;1.5;10\n", "datetime"},
		{"bad price", "20240115 100000;abc;2;0.5;1.5;10\n", "open"},
		{"fractional volume", "20240115 100000;1;2;0.5;1.5;10.5\n", "volume"},
		{"too few fields", "20240115 100000;1;2;0.5\n", "row"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(nil).Parse(strings.NewReader(sample + tt.input))
			var pe *models.ParseError
			require.True(t, errors.As(err, &pe), "expected ParseError, got %v", err)
			assert.Equal(t, 4, pe.Line)
			assert.Equal(t, tt.field, pe.Field)
		})
	}
}

func TestParseErrorDoesNotQuoteInput(t *testing.T) {
	rows := []string{
		"db_password=hunter2\n",
		"20240115 100000;hunter2;2;0.5;1.5;10\n",
		"hunter2 100000;1;2;0.5;1.5;10\n",
	}
	for _, row := range rows {
		_, err := NewLoader(nil).Parse(strings.NewReader(row))
		var pe *models.ParseError
		require.True(t, errors.As(err, &pe))
		assert.Contains(t, pe.Value, "hunter2")
		assert.NotContains(t, err.Error(), "hunter2")
		assert.Contains(t, err.Error(), "line 1: invalid ")
	}
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := NewLoader(nil).Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, models.ErrFileNotFound)
}

func TestLoaderEmptyFieldsAreNulls(t *testing.T) {
	got, err := NewLoader(nil).Parse(strings.NewReader("20240115 100000;17000;;16990;17001;\n"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"high", "volume"}, got[0].Missing)

	res := NewValidator(DefaultBounds()).Validate(got)
	assert.True(t, res.Valid())
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, models.ViolationNulls, res.Warnings[0].Kind)
	assert.Equal(t, "Valores nulos encontrados: high: 1, volume: 1", res.Warnings[0].Message)
}

func TestValidateHighBelowLow(t *testing.T) {
	batch := []models.Candle{
		candle("20240115 100000", 17000, 17010, 16990, 17005, 10),
		candle("20240115 100100", 17002, 17000, 17005, 17003, 10),
	}

	res := NewValidator(DefaultBounds()).Validate(batch)
	require.False(t, res.Valid())
	assert.Contains(t, res.Errors, "1 velas con High < Low")
	assert.Equal(t, 1, res.Counts[models.ViolationHighLow])

	var ve *models.ValidationError
	require.True(t, errors.As(res.Err(), &ve))
	assert.Contains(t, ve.Error(), "High < Low")
}

func TestValidateAccumulatesAllErrors(t *testing.T) {
	batch := []models.Candle{
		candle("20240115 100000", 500, 510, 490, 505, 10),         // below price_min in all columns
		candle("20240115 100100", 17000, 17010, 16990, 17020, -1), // close above high, negative volume
		candle("20240115 100200", 16980, 17010, 16990, 17000, 5),  // open below low
	}
	res := NewValidator(DefaultBounds()).Validate(batch)
	require.False(t, res.Valid())

	assert.Contains(t, res.Errors, "open: precio mínimo (500) fuera de rango")
	assert.Contains(t, res.Errors, "close: precio mínimo (505) fuera de rango")
	assert.Contains(t, res.Errors, "1 registros con volumen negativo")
	assert.Contains(t, res.Errors, "1 velas con Open fuera de rango H/L")
	assert.Contains(t, res.Errors, "1 velas con Close fuera de rango H/L")
	assert.Equal(t, 4, res.Counts[models.ViolationPriceMin])
}

func TestValidateWarningsOnly(t *testing.T) {
	batch := []models.Candle{
		candle("20240115 103000", 17000, 17010, 16990, 17005, 10),
		candle("20240115 100000", 17000, 17010, 16990, 17005, 10),
		candle("20240115 100000", 17000, 17010, 16990, 17005, 10),
		candle("20240115 100100", 17000, 17010, 16990, 17005, 10),
	}
	res := NewValidator(DefaultBounds()).Validate(batch)
	assert.True(t, res.Valid())
	assert.NoError(t, res.Err())

	// both copies of a duplicated timestamp are counted
	assert.Equal(t, 2, res.Counts[models.ViolationDuplicates])
	// gaps are measured after sorting: 10:01 -> 10:30 is the only one
	assert.Equal(t, 1, res.Counts[models.ViolationGaps])
	assert.Contains(t, res.WarningMessages(), "2 timestamps duplicados encontrados")
	assert.Contains(t, res.WarningMessages(), "1 gaps temporales detectados (>5 min)")
}

func TestProcessRejectsBeforeEnrichment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, os.WriteFile(path, []byte(sample+"20240115 100300;17000;17000;17005;17002;10\n"), 0o600))

	rep, err := newIngestor(t, "America/Argentina/Buenos_Aires").Process(path)

	var re *models.RunError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "validate", re.Stage)
	assert.Contains(t, re.Errors, "1 velas con High < Low")
	require.NotNil(t, rep)
	assert.Nil(t, rep.Dataset)
}

func TestProcessEnriches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "MNQ_2024.txt")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	rep, err := newIngestor(t, "America/Argentina/Buenos_Aires").Process(path)
	require.NoError(t, err)

	ds := rep.Dataset
	assert.Equal(t, "MNQ_2024", ds.ID)
	assert.NotEmpty(t, ds.Fingerprint)
	require.Len(t, ds.Candles, 3)

	c := ds.Candles[0]
	assert.Equal(t, time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC), c.Timestamp)
	assert.Equal(t, "2024-01-15", c.Date)
	assert.Equal(t, time.Monday, c.Weekday)
	assert.Equal(t, models.SessionEurope, c.Session)
	assert.InDelta(t, 15.5, c.Range, 1e-9)
}

func TestProcessDegradesOnUnknownZone(t *testing.T) {
	rep, err := newIngestor(t, "Nowhere/Atlantis").ProcessReader("mnq", strings.NewReader(sample))
	require.NoError(t, err)

	ds := rep.Dataset
	assert.Equal(t, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), ds.Candles[0].Timestamp)
	require.Len(t, ds.Warnings, 1)
	assert.Contains(t, ds.Warnings[0], "Nowhere/Atlantis")
}

func TestProcessEmptyInput(t *testing.T) {
	_, err := newIngestor(t, "UTC").ProcessReader("empty", strings.NewReader(""))
	assert.ErrorIs(t, err, models.ErrEmptyDataset)
}

func TestFingerprintStable(t *testing.T) {
	a, err := NewLoader(nil).Parse(strings.NewReader(sample))
	require.NoError(t, err)
	b, err := NewLoader(nil).Parse(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(a), Fingerprint(b))

	b[0].Close++
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestProcessKeepsNullPricesOutOfRange(t *testing.T) {
	feed := "20240115 100000;17000.25;17010.50;16995.00;17005.75;120\n" +
		"20240115 100100;17005.75;17012.00;;17011.00;95\n"
	rep, err := newIngestor(t, "UTC").ProcessReader("mnq", strings.NewReader(feed))
	require.NoError(t, err)
	assert.True(t, rep.Validation.Valid())
	require.Len(t, rep.Dataset.Warnings, 1)
	assert.Contains(t, rep.Dataset.Warnings[0], "low: 1")

	c := rep.Dataset.Candles[1]
	assert.False(t, c.Has("low"))
	assert.Zero(t, c.Range)
	assert.InDelta(t, 15.5, rep.Dataset.Candles[0].Range, 1e-9)
}
