package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all fingerprints from the store",
	Long: `Remove every fingerprint and index mark from the store. The track
catalog is kept, so a subsequent "jukebox index" re-fingerprints everything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		stats, err := eng.Stats()
		if err != nil {
			return err
		}

		if !force {
			fmt.Printf("This deletes %s fingerprints for %s tracks. Continue? [y/N] ",
				humanize.Comma(stats.TotalFingerprints), humanize.Comma(stats.IndexedTracks))
			line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			answer := strings.ToLower(strings.TrimSpace(line))
			if answer != "y" && answer != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if err := eng.ClearFingerprints(); err != nil {
			return err
		}
		fmt.Println("Fingerprint store cleared.")
		return nil
	},
}

func init() {
	clearCmd.Flags().Bool("force", false, "skip the confirmation prompt")
	rootCmd.AddCommand(clearCmd)
}
