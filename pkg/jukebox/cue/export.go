package cue

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoEntries is returned when a sheet with nothing exportable is exported.
var ErrNoEntries = errors.New("no exportable cue entries")

// fileType maps the mix file extension to the cue FILE type token; unknown
// extensions fall back to MP3.
func fileType(path string) string {
	ext := strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "MP3", "FLAC", "WAV", "AIFF", "AIF":
		return ext
	default:
		return "MP3"
	}
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// Export writes the sheet in standard cue format: optional PERFORMER/TITLE
// header, one FILE record, then TRACK NN AUDIO blocks with INDEX 01
// timestamps. DELETED entries are skipped; track numbers stay contiguous.
func (s *Sheet) Export(w io.Writer) error {
	entries := s.Exportable()
	if len(entries) == 0 {
		return ErrNoEntries
	}

	bw := bufio.NewWriter(w)
	if s.Performer != "" {
		fmt.Fprintf(bw, "PERFORMER \"%s\"\n", escapeQuotes(s.Performer))
	}
	if s.Title != "" {
		fmt.Fprintf(bw, "TITLE \"%s\"\n", escapeQuotes(s.Title))
	}
	fmt.Fprintf(bw, "FILE \"%s\" %s\n", escapeQuotes(filepath.Base(s.FilePath)), fileType(s.FilePath))

	for i, e := range entries {
		fmt.Fprintf(bw, "  TRACK %02d AUDIO\n", i+1)
		if e.Artist != "" {
			fmt.Fprintf(bw, "    PERFORMER \"%s\"\n", escapeQuotes(e.Artist))
		}
		if e.Title != "" {
			fmt.Fprintf(bw, "    TITLE \"%s\"\n", escapeQuotes(e.Title))
		}
		fmt.Fprintf(bw, "    INDEX 01 %s\n", Timestamp(e.StartMs))
	}
	return bw.Flush()
}

// WriteFile exports the sheet to path.
func (s *Sheet) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating cue file: %w", err)
	}
	if err := s.Export(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
