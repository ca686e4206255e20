package cue

import (
	"encoding/json"
	"strings"
	"testing"
)

// TestTimestamp checks the MM:SS:FF conversion at 75 frames per second.
func TestTimestamp(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{0, "00:00:00"},
		{185000, "03:05:00"},
		{30000, "00:30:00"},
		{1000, "00:01:00"},
		{1500, "00:01:37"}, // 500ms = 37.5 frames, truncated
		{3599000, "59:59:00"},
		{3600000, "60:00:00"}, // cue minutes do not wrap at the hour
	}
	for _, c := range cases {
		if got := Timestamp(c.ms); got != c.want {
			t.Errorf("Timestamp(%d) = %q, want %q", c.ms, got, c.want)
		}
	}
}

func TestFormatParseDisplay(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{185000, "03:05"},
		{0, "00:00"},
		{3723000, "01:02:03"},
	}
	for _, c := range cases {
		got := FormatMs(c.ms)
		if got != c.want {
			t.Errorf("FormatMs(%d) = %q, want %q", c.ms, got, c.want)
		}
		back, err := ParseDisplay(got)
		if err != nil {
			t.Fatalf("ParseDisplay(%q): %v", got, err)
		}
		if back != c.ms {
			t.Errorf("ParseDisplay(%q) = %d, want %d", got, back, c.ms)
		}
	}

	for _, bad := range []string{"", "3:5", "aa:bb", "01:60", "1:2:3:4"} {
		if _, err := ParseDisplay(bad); err == nil {
			t.Errorf("ParseDisplay(%q) accepted invalid input", bad)
		}
	}
}

// TestSheetOrdering verifies entries stay time-sorted through detection,
// manual insertion, and retiming.
func TestSheetOrdering(t *testing.T) {
	s := NewSheet("mix.mp3", "", "")
	s.AddDetected(Entry{Title: "B", StartMs: 60000, DurationMs: 30000, Confidence: 0.8})
	s.AddDetected(Entry{Title: "A", StartMs: 0, DurationMs: 60000, Confidence: 0.9})
	s.AddManual("C", "DJ", 30000, 10000)

	var titles []string
	for _, e := range s.Entries {
		titles = append(titles, e.Title)
	}
	if got := strings.Join(titles, ""); got != "ACB" {
		t.Fatalf("Entry order %q, want ACB", got)
	}

	if err := s.Retime(0, 90000); err != nil {
		t.Fatal(err)
	}
	if s.Entries[len(s.Entries)-1].Title != "A" {
		t.Error("Retimed entry did not re-sort to the end")
	}

	for i := 1; i < len(s.Entries); i++ {
		if s.Entries[i].StartMs < s.Entries[i-1].StartMs {
			t.Fatal("Start times not monotonically non-decreasing")
		}
	}
}

// TestSheetStatusMachine walks PENDING -> CONFIRMED / DELETED and manual
// insertion semantics.
func TestSheetStatusMachine(t *testing.T) {
	s := NewSheet("mix.mp3", "", "")
	s.AddDetected(Entry{Title: "A", StartMs: 0, Confidence: 0.9})
	s.AddManual("M", "", 10000, 0)

	if s.Entries[0].Status != StatusPending {
		t.Errorf("Detected entry status = %s, want PENDING", s.Entries[0].Status)
	}
	if s.Entries[1].Status != StatusManual {
		t.Errorf("Manual entry status = %s, want MANUAL", s.Entries[1].Status)
	}
	if got := s.Entries[1].ConfidenceLabel(); got != "manual" {
		t.Errorf("Manual confidence label = %q", got)
	}

	if err := s.Confirm(0); err != nil {
		t.Fatal(err)
	}
	if s.Entries[0].Status != StatusConfirmed {
		t.Error("Confirm did not move entry to CONFIRMED")
	}

	// Confirming a manual entry must not demote it.
	if err := s.Confirm(1); err != nil {
		t.Fatal(err)
	}
	if s.Entries[1].Status != StatusManual {
		t.Error("Confirm changed a MANUAL entry")
	}

	if err := s.Delete(0); err != nil {
		t.Fatal(err)
	}
	if len(s.Entries) != 2 {
		t.Error("Delete removed the entry instead of marking it")
	}
	if got := len(s.Exportable()); got != 1 {
		t.Errorf("Exportable returned %d entries, want 1", got)
	}

	if err := s.Confirm(5); err == nil {
		t.Error("Out-of-range index did not error")
	}
}

// TestExport golden-checks the serialized cue text, including quote
// escaping, deleted-entry exclusion, and contiguous renumbering.
func TestExport(t *testing.T) {
	s := NewSheet("/mixes/summer mix.mp3", `Summer "Sunset" Mix`, "DJ Test")
	s.AddDetected(Entry{Title: "First Track", Artist: "Artist One", StartMs: 0, DurationMs: 185000, Confidence: 0.92})
	s.AddDetected(Entry{Title: "Dropped", Artist: "Nobody", StartMs: 100000, Confidence: 0.3})
	s.AddDetected(Entry{Title: "Second Track", Artist: "Artist Two", StartMs: 185000, Confidence: 0.85})
	if err := s.Delete(1); err != nil {
		t.Fatal(err)
	}

	var b strings.Builder
	if err := s.Export(&b); err != nil {
		t.Fatal(err)
	}

	want := `PERFORMER "DJ Test"
TITLE "Summer \"Sunset\" Mix"
FILE "summer mix.mp3" MP3
  TRACK 01 AUDIO
    PERFORMER "Artist One"
    TITLE "First Track"
    INDEX 01 00:00:00
  TRACK 02 AUDIO
    PERFORMER "Artist Two"
    TITLE "Second Track"
    INDEX 01 03:05:00
`
	if b.String() != want {
		t.Errorf("Export mismatch.\nGot:\n%s\nWant:\n%s", b.String(), want)
	}
}

func TestExportEmpty(t *testing.T) {
	s := NewSheet("mix.wav", "", "")
	s.AddDetected(Entry{Title: "A", StartMs: 0})
	if err := s.Delete(0); err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	if err := s.Export(&b); err != ErrNoEntries {
		t.Errorf("Export of all-deleted sheet = %v, want ErrNoEntries", err)
	}
}

func TestFileType(t *testing.T) {
	cases := map[string]string{
		"mix.mp3":  "MP3",
		"mix.flac": "FLAC",
		"mix.wav":  "WAV",
		"mix.aiff": "AIFF",
		"mix.ogg":  "MP3",
		"mix":      "MP3",
	}
	for path, want := range cases {
		if got := fileType(path); got != want {
			t.Errorf("fileType(%q) = %q, want %q", path, got, want)
		}
	}
}

// TestEntryJSON checks that manual entries serialize confidence as the
// literal "manual" and detected entries as a number.
func TestEntryJSON(t *testing.T) {
	s := NewSheet("mix.mp3", "", "")
	s.AddDetected(Entry{TrackID: "id-1", Title: "A", StartMs: 0, Confidence: 0.75})
	s.AddManual("M", "", 10000, 0)

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	js := string(data)
	if !strings.Contains(js, `"confidence":0.75`) {
		t.Errorf("Detected confidence not numeric: %s", js)
	}
	if !strings.Contains(js, `"confidence":"manual"`) {
		t.Errorf("Manual confidence not literal: %s", js)
	}
}
