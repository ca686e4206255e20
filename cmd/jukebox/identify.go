package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frederictriquet/Jukebox/pkg/jukebox"
	"github.com/frederictriquet/Jukebox/pkg/jukebox/cue"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <file>",
	Short: "Identify a recording against the indexed library",
	Long: `Fingerprint an audio file and look it up in the fingerprint index.
The file can be any format ffmpeg understands.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		match, err := eng.Identify(cmd.Context(), args[0])
		if errors.Is(err, jukebox.ErrNoMatch) {
			fmt.Println("No confident match.")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s - %s\n", match.Artist, match.Title)
		fmt.Printf("  confidence: %.2f  votes: %d  offset: %s\n",
			match.Confidence, match.Votes, cue.FormatMs(match.OffsetMs))
		if match.StretchRatio != 0 && match.StretchRatio != 1.0 {
			fmt.Printf("  tempo ratio: %.2f\n", match.StretchRatio)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(identifyCmd)
}
