package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show fingerprint store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		stats, err := eng.Stats()
		if err != nil {
			return err
		}

		fmt.Printf("Tracks:        %s\n", humanize.Comma(stats.TotalTracks))
		fmt.Printf("  indexed:     %s\n", humanize.Comma(stats.IndexedTracks))
		fmt.Printf("  unindexed:   %s\n", humanize.Comma(stats.UnindexedTracks))
		fmt.Printf("Fingerprints:  %s\n", humanize.Comma(stats.TotalFingerprints))
		if stats.IndexedTracks > 0 {
			fmt.Printf("  per track:   %s avg\n", humanize.Comma(int64(stats.AvgPerTrack)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
