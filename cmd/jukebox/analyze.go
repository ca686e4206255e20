package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/frederictriquet/Jukebox/pkg/jukebox"
	"github.com/frederictriquet/Jukebox/pkg/jukebox/cue"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <mix-file>",
	Short: "Detect tracklist of a DJ mix and export a cue sheet",
	Long: `Slice a long recording into overlapping windows, identify each window
against the indexed library and stitch the results into a cue sheet.
Regions where nothing matched are reported as gaps.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mixPath := args[0]
		output, _ := cmd.Flags().GetString("output")
		segment, _ := cmd.Flags().GetInt("segment")
		overlap, _ := cmd.Flags().GetInt("overlap")
		minConf, _ := cmd.Flags().GetFloat64("min-confidence")
		tempoSearch, _ := cmd.Flags().GetBool("tempo-search")
		asJSON, _ := cmd.Flags().GetBool("json")
		title, _ := cmd.Flags().GetString("title")
		performer, _ := cmd.Flags().GetString("performer")

		if output == "" {
			base := strings.TrimSuffix(filepath.Base(mixPath), filepath.Ext(mixPath))
			output = base + ".cue"
		}
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(mixPath), filepath.Ext(mixPath))
		}

		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		analysis, err := eng.Analyze(ctx, mixPath, jukebox.AnalyzeOptions{
			SegmentSeconds: segment,
			OverlapSeconds: overlap,
			MinConfidence:  minConf,
			TempoSearch:    tempoSearch,
			MixTitle:       title,
			MixPerformer:   performer,
		})
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(analysis)
		}

		fmt.Printf("Mix: %s (%s, %d windows)\n",
			filepath.Base(mixPath), cue.FormatMs(analysis.MixDurationMs), analysis.Windows)
		for i, e := range analysis.Sheet.Entries {
			fmt.Printf("  %2d. %s  %s - %s  (%s)\n",
				i+1, cue.FormatMs(e.StartMs), e.Artist, e.Title, e.ConfidenceLabel())
		}
		for _, g := range analysis.Gaps {
			fmt.Printf("  gap %s .. %s (unidentified)\n",
				cue.FormatMs(g.StartMs), cue.FormatMs(g.EndMs))
		}

		if len(analysis.Sheet.Exportable()) == 0 {
			fmt.Println("No tracks identified, cue sheet not written.")
			return nil
		}
		if err := analysis.Sheet.WriteFile(output); err != nil {
			return err
		}
		fmt.Printf("Cue sheet written to %s\n", output)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringP("output", "o", "", "cue sheet output path (default <mix>.cue)")
	analyzeCmd.Flags().Int("segment", 0, "window length in seconds (0 uses segment_seconds from config)")
	analyzeCmd.Flags().Int("overlap", 0, "window overlap in seconds (0 uses overlap_seconds from config)")
	analyzeCmd.Flags().Float64("min-confidence", 0, "minimum confidence to keep a match (0 uses min_confidence from config)")
	analyzeCmd.Flags().Bool("tempo-search", false, "retry unmatched windows at several tempo ratios")
	analyzeCmd.Flags().Bool("json", false, "print the analysis as JSON instead of text")
	analyzeCmd.Flags().String("title", "", "mix title for the cue header (default file name)")
	analyzeCmd.Flags().String("performer", "", "mix performer for the cue header")
	rootCmd.AddCommand(analyzeCmd)
}
