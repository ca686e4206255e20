package cue

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// Status is the review state of a cue entry. Detected entries start PENDING
// and move to CONFIRMED or DELETED; MANUAL entries are created confirmed,
// without engine involvement.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusDeleted   Status = "DELETED"
	StatusManual    Status = "MANUAL"
)

// Entry is one track in a mix. Start and duration are rounded to whole
// seconds; transitions in a mix are far coarser than that.
type Entry struct {
	TrackID    string  `json:"track_id,omitempty"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	StartMs    int64   `json:"start_ms"`
	DurationMs int64   `json:"duration_ms"`
	Confidence float64 `json:"-"`
	Status     Status  `json:"status"`

	// Windows is how many analysis windows supported the detection; 0 for
	// manual entries.
	Windows int `json:"windows,omitempty"`

	// StretchRatio is the detected playback rate (1.0 = unaltered); only
	// meaningful when the analysis ran a multi-rate search.
	StretchRatio float64 `json:"stretch_ratio,omitempty"`
}

// ConfidenceLabel renders the confidence for display: manual entries carry
// the literal "manual" instead of a score.
func (e Entry) ConfidenceLabel() string {
	if e.Status == StatusManual {
		return "manual"
	}
	return strconv.FormatFloat(e.Confidence, 'f', 2, 64)
}

// MarshalJSON emits confidence as a number, or the string "manual" for
// manual entries.
func (e Entry) MarshalJSON() ([]byte, error) {
	type alias Entry
	return json.Marshal(struct {
		alias
		Confidence any `json:"confidence"`
	}{
		alias: alias(e),
		Confidence: func() any {
			if e.Status == StatusManual {
				return "manual"
			}
			return e.Confidence
		}(),
	})
}

// Sheet is an ordered cue entry sequence plus mix-level metadata. Entries
// stay sorted by start time after every mutation.
type Sheet struct {
	FilePath  string  `json:"file_path"`
	Title     string  `json:"title,omitempty"`
	Performer string  `json:"performer,omitempty"`
	Entries   []Entry `json:"entries"`
}

// NewSheet returns an empty sheet for the given mix file.
func NewSheet(filePath, title, performer string) *Sheet {
	return &Sheet{FilePath: filePath, Title: title, Performer: performer}
}

func roundToSecond(ms int64) int64 {
	return (ms + 500) / 1000 * 1000
}

// AddDetected appends an engine-detected entry as PENDING.
func (s *Sheet) AddDetected(e Entry) {
	e.Status = StatusPending
	e.StartMs = roundToSecond(e.StartMs)
	e.DurationMs = roundToSecond(e.DurationMs)
	s.Entries = append(s.Entries, e)
	s.sortByTime()
}

// AddManual inserts a user-provided entry. It is confirmed on creation and
// its confidence renders as "manual".
func (s *Sheet) AddManual(title, artist string, startMs, durationMs int64) {
	s.Entries = append(s.Entries, Entry{
		Title:      title,
		Artist:     artist,
		StartMs:    roundToSecond(startMs),
		DurationMs: roundToSecond(durationMs),
		Status:     StatusManual,
	})
	s.sortByTime()
}

// Confirm accepts the entry at index. Manual entries are already confirmed.
func (s *Sheet) Confirm(index int) error {
	e, err := s.entry(index)
	if err != nil {
		return err
	}
	if e.Status != StatusManual {
		e.Status = StatusConfirmed
	}
	return nil
}

// Delete rejects the entry at index. It stays in the sheet but is excluded
// from export.
func (s *Sheet) Delete(index int) error {
	e, err := s.entry(index)
	if err != nil {
		return err
	}
	e.Status = StatusDeleted
	return nil
}

// Retime moves the entry at index to a new start and re-sorts.
func (s *Sheet) Retime(index int, startMs int64) error {
	e, err := s.entry(index)
	if err != nil {
		return err
	}
	e.StartMs = roundToSecond(startMs)
	s.sortByTime()
	return nil
}

// SetTitleArtist edits the entry's metadata in place.
func (s *Sheet) SetTitleArtist(index int, title, artist string) error {
	e, err := s.entry(index)
	if err != nil {
		return err
	}
	e.Title = title
	e.Artist = artist
	return nil
}

// Exportable returns the entries included in a .cue export: everything not
// DELETED, in time order.
func (s *Sheet) Exportable() []Entry {
	out := make([]Entry, 0, len(s.Entries))
	for _, e := range s.Entries {
		if e.Status != StatusDeleted {
			out = append(out, e)
		}
	}
	return out
}

func (s *Sheet) entry(index int) (*Entry, error) {
	if index < 0 || index >= len(s.Entries) {
		return nil, fmt.Errorf("cue entry index %d out of range [0,%d)", index, len(s.Entries))
	}
	return &s.Entries[index], nil
}

func (s *Sheet) sortByTime() {
	sort.SliceStable(s.Entries, func(i, j int) bool {
		return s.Entries[i].StartMs < s.Entries[j].StartMs
	})
}

// Timestamp converts milliseconds to the cue-sheet MM:SS:FF convention,
// FF being 1/75 s frames.
func Timestamp(ms int64) string {
	totalSeconds := ms / 1000
	frames := (ms % 1000) * 75 / 1000
	return fmt.Sprintf("%02d:%02d:%02d", totalSeconds/60, totalSeconds%60, frames)
}

// FormatMs renders milliseconds as MM:SS, or HH:MM:SS past the hour mark.
func FormatMs(ms int64) string {
	totalSeconds := ms / 1000
	h, m, s := totalSeconds/3600, totalSeconds/60%60, totalSeconds%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

var displayTimeRe = regexp.MustCompile(`^(?:(\d{1,2}):)?(\d{1,3}):([0-5]\d)$`)

// ParseDisplay parses a MM:SS or HH:MM:SS display time back to milliseconds.
func ParseDisplay(s string) (int64, error) {
	m := displayTimeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid time %q, want MM:SS or HH:MM:SS", s)
	}
	var h int64
	if m[1] != "" {
		h, _ = strconv.ParseInt(m[1], 10, 64)
	}
	min, _ := strconv.ParseInt(m[2], 10, 64)
	sec, _ := strconv.ParseInt(m[3], 10, 64)
	return (h*3600 + min*60 + sec) * 1000, nil
}
