package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/frederictriquet/Jukebox/pkg/jukebox"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Fingerprint the track library into the store",
	Long: `Scans the selected library root, registers new or changed audio files,
and fingerprints every track that is not indexed yet. The run is resumable:
interrupt it and the next run picks up where it stopped.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().String("mode", "jukebox", "library mode (jukebox, curating)")
	indexCmd.Flags().IntP("workers", "w", 0, "indexing worker count (default from config)")
	indexCmd.Flags().Int("limit", 0, "index at most N tracks (0 = all)")
	indexCmd.Flags().Bool("force", false, "re-fingerprint already indexed tracks")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	mode, _ := cmd.Flags().GetString("mode")
	workers, _ := cmd.Flags().GetInt("workers")
	limit, _ := cmd.Flags().GetInt("limit")
	force, _ := cmd.Flags().GetBool("force")

	root, err := libraryRoot(mode)
	if err != nil {
		return err
	}

	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	// A SIGINT stops the batch at the next per-track boundary; the store
	// stays valid and the run resumes later.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanned, err := engine.ScanLibrary(ctx, root)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", root, err)
	}
	fmt.Printf("Library scan: %d audio files under %s\n", scanned, root)

	var progress *mpb.Progress
	var bar *mpb.Bar
	report, err := engine.IndexLibrary(ctx, jukebox.IndexOptions{
		Workers: workers,
		Limit:   limit,
		Force:   force,
		OnProgress: func(done, total int) {
			if progress == nil {
				progress = mpb.New(mpb.WithWidth(64))
				bar = progress.AddBar(int64(total),
					mpb.PrependDecorators(
						decor.Name("Indexing: "),
						decor.CountersNoUnit("%d / %d"),
					),
					mpb.AppendDecorators(
						decor.Percentage(),
						decor.AverageETA(decor.ET_STYLE_GO),
					),
				)
			}
			bar.Increment()
		},
	})
	if progress != nil {
		bar.Abort(false)
		progress.Wait()
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nIndexed %d/%d tracks in %s\n", report.Indexed, report.Total, report.Elapsed.Round(time.Second))
	for _, issue := range report.Failed {
		fmt.Printf("  failed: %s (%s)\n", issue.Path, issue.Reason)
	}
	if report.Interrupted {
		fmt.Println("Interrupted; rerun `jukebox index` to resume.")
	}
	return nil
}
