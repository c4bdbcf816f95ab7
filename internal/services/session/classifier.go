package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"SessionLens/internal/domain/models"
)

const secondsPerDay = 24 * 60 * 60

// interval is a half-open [start, end) span in seconds of day.
type interval struct {
	start, end int
}

type window struct {
	session   models.Session
	intervals []interval
}

// Classifier maps a reference-timezone clock time to a trading session.
// Windows are checked in the order given; anything uncovered falls back to NY.
type Classifier struct {
	windows  []window
	fallback models.Session
}

// DefaultWindows returns the CME-style session layout in New York time.
func DefaultWindows() []models.SessionWindow {
	return []models.SessionWindow{
		{Name: models.SessionAsia, Start: "19:00", End: "04:00"},
		{Name: models.SessionEurope, Start: "03:00", End: "12:00"},
		{Name: models.SessionNY, Start: "09:30", End: "17:00"},
	}
}

func NewClassifier(ws []models.SessionWindow) (*Classifier, error) {
	if len(ws) == 0 {
		return nil, fmt.Errorf("%w: no windows", models.ErrInvalidWindows)
	}
	c := &Classifier{fallback: models.SessionNY}
	for _, w := range ws {
		start, err := ParseClock(w.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: %s start: %v", models.ErrInvalidWindows, w.Name, err)
		}
		end, err := ParseClock(w.End)
		if err != nil {
			return nil, fmt.Errorf("%w: %s end: %v", models.ErrInvalidWindows, w.Name, err)
		}
		if start == end {
			return nil, fmt.Errorf("%w: %s is empty", models.ErrInvalidWindows, w.Name)
		}
		win := window{session: w.Name}
		if start > end {
			win.intervals = []interval{{start, secondsPerDay}, {0, end}}
		} else {
			win.intervals = []interval{{start, end}}
		}
		c.windows = append(c.windows, win)
	}
	return c, nil
}

// Classify returns the session owning the wall clock of ts.
func (c *Classifier) Classify(ts time.Time) models.Session {
	return c.ClassifySecond(ts.Hour()*3600 + ts.Minute()*60 + ts.Second())
}

// ClassifySecond classifies a second of day in [0, 86400).
func (c *Classifier) ClassifySecond(sec int) models.Session {
	for _, w := range c.windows {
		for _, iv := range w.intervals {
			if sec >= iv.start && sec < iv.end {
				return w.session
			}
		}
	}
	return c.fallback
}

// ClassifyClock classifies an "HH:MM" or "HH:MM:SS" string.
func (c *Classifier) ClassifyClock(clock string) (models.Session, error) {
	sec, err := ParseClock(clock)
	if err != nil {
		return "", err
	}
	return c.ClassifySecond(sec), nil
}

// ParseClock converts "HH:MM" or "HH:MM:SS" to seconds of day.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	limits := []int{23, 59, 59}
	total := 0
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > limits[i] {
			return 0, fmt.Errorf("invalid clock %q", s)
		}
		total = total*60 + v
	}
	if len(parts) == 2 {
		total *= 60
	}
	return total, nil
}
