package timezone

import (
	"bytes"
	"testing"
	"time"

	"SessionLens/internal/domain/models"
	applogger "SessionLens/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func naive(y int, m time.Month, d, h, mi int) time.Time {
	return time.Date(y, m, d, h, mi, 0, 0, time.UTC)
}

func TestNormalizeAcrossDST(t *testing.T) {
	n := NewNormalizer("America/Argentina/Buenos_Aires", "America/New_York", nil)

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"winter EST is ART-2h", naive(2024, time.January, 15, 10, 0), naive(2024, time.January, 15, 8, 0)},
		{"summer EDT is ART-1h", naive(2024, time.July, 15, 10, 0), naive(2024, time.July, 15, 9, 0)},
		{"crosses midnight backwards", naive(2024, time.January, 16, 1, 30), naive(2024, time.January, 15, 23, 30)},
		{"day after spring forward", naive(2024, time.March, 11, 10, 0), naive(2024, time.March, 11, 9, 0)},
		{"day before spring forward", naive(2024, time.March, 9, 10, 0), naive(2024, time.March, 9, 8, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := n.Normalize(tt.in)
			require.Nil(t, out.Warning)
			assert.True(t, tt.want.Equal(out.Time), "got %v want %v", out.Time, tt.want)
			assert.Equal(t, time.UTC, out.Time.Location())
		})
	}
}

func TestNormalizeInstantIgnoresSourceZone(t *testing.T) {
	n := NewNormalizer("America/Argentina/Buenos_Aires", "America/New_York", nil)

	tests := []struct {
		name string
		in   time.Time
	}{
		{"utc instant", time.Date(2024, time.January, 15, 13, 0, 0, 0, time.UTC)},
		{"fixed zero offset", time.Date(2024, time.January, 15, 13, 0, 0, 0, time.FixedZone("Z0", 0))},
		{"source zone instant", time.Date(2024, time.January, 15, 10, 0, 0, 0, time.FixedZone("ART", -3*3600))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := n.NormalizeInstant(tt.in)
			require.Nil(t, out.Warning)
			assert.True(t, naive(2024, time.January, 15, 8, 0).Equal(out.Time), "got %v", out.Time)
			assert.Equal(t, time.UTC, out.Time.Location())
		})
	}
}

func TestNormalizeReadsWallClockWhateverTheLocation(t *testing.T) {
	n := NewNormalizer("America/Argentina/Buenos_Aires", "America/New_York", nil)
	want := naive(2024, time.January, 15, 8, 0)

	for _, loc := range []*time.Location{time.UTC, time.FixedZone("Z0", 0), time.FixedZone("X", 5*3600)} {
		out := n.Normalize(time.Date(2024, time.January, 15, 10, 0, 0, 0, loc))
		require.Nil(t, out.Warning)
		assert.True(t, want.Equal(out.Time), "%s: got %v", loc, out.Time)
	}
}

func TestNormalizeUnknownZoneDegrades(t *testing.T) {
	var buf bytes.Buffer
	n := NewNormalizer("Nowhere/Atlantis", "America/New_York", applogger.NewWriter(&buf, "warn"))

	in := []time.Time{naive(2024, time.January, 15, 10, 0), naive(2024, time.January, 15, 10, 1)}
	out, w := n.NormalizeAll(in)

	require.NotNil(t, w)
	assert.Equal(t, "Nowhere/Atlantis", w.Source)
	assert.Equal(t, in, out)
	assert.Contains(t, buf.String(), "timezone conversion skipped")

	single := n.Normalize(in[0])
	assert.NotNil(t, single.Warning)
	assert.Equal(t, in[0], single.Time)

	inst := n.NormalizeInstant(in[0])
	assert.NotNil(t, inst.Warning)
	assert.Equal(t, in[0], inst.Time)
}

func TestNormalizeAllDoesNotMutateInput(t *testing.T) {
	n := NewNormalizer("America/Argentina/Buenos_Aires", "America/New_York", nil)
	in := []time.Time{naive(2024, time.January, 15, 10, 0)}
	out, w := n.NormalizeAll(in)
	require.Nil(t, w)
	assert.Equal(t, naive(2024, time.January, 15, 10, 0), in[0])
	assert.Equal(t, naive(2024, time.January, 15, 8, 0), out[0])
}

func TestUSDSTBoundaries(t *testing.T) {
	assert.Equal(t, naive(2024, time.March, 10, 0, 0), SecondSundayOfMarch(2024))
	assert.Equal(t, naive(2024, time.November, 3, 0, 0), FirstSundayOfNovember(2024))
	assert.Equal(t, naive(2025, time.March, 9, 0, 0), SecondSundayOfMarch(2025))
	assert.Equal(t, naive(2025, time.November, 2, 0, 0), FirstSundayOfNovember(2025))

	assert.False(t, IsUSDST(naive(2024, time.March, 9, 12, 0)))
	assert.True(t, IsUSDST(naive(2024, time.March, 10, 0, 0)))
	assert.True(t, IsUSDST(naive(2024, time.November, 2, 23, 0)))
	assert.False(t, IsUSDST(naive(2024, time.November, 3, 0, 0)))
}

func TestMarkUSDST(t *testing.T) {
	days := []models.DailyStats{
		{Date: "2024-03-08"},
		{Date: "2024-03-11"},
		{Date: "2024-11-01"},
		{Date: "2024-11-04"},
		{Date: "not-a-date"},
	}
	MarkUSDST(days)
	got := make([]bool, len(days))
	for i, d := range days {
		got[i] = d.USDST
	}
	assert.Equal(t, []bool{false, true, true, false, false}, got)
}
