package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/lrstanley/go-ytdlp"
	"github.com/spf13/cobra"

	"github.com/frederictriquet/Jukebox/pkg/jukebox/audio"
	"github.com/frederictriquet/Jukebox/pkg/utils"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download a reference track from YouTube into the library",
	Long: `Fetch the audio stream of a YouTube video into the library root,
name it from the video metadata and fingerprint it. Requires yt-dlp,
which is installed automatically on first use.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		noIndex, _ := cmd.Flags().GetBool("no-index")

		root, err := libraryRoot(mode)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if _, err := ytdlp.Install(ctx, nil); err != nil {
			return fmt.Errorf("installing yt-dlp: %w", err)
		}

		path, info, err := audio.DownloadYouTubeAudio(ctx, args[0], root)
		if err != nil {
			return err
		}

		// Rename to "Artist - Title" so tag-less containers still carry
		// metadata through the filename fallback.
		named := filepath.Join(root, sanitizeFilename(
			info.BestArtist()+" - "+info.BestTitle())+filepath.Ext(path))
		if named != path {
			if err := utils.MoveFile(path, named); err != nil {
				return fmt.Errorf("renaming download: %w", err)
			}
			path = named
		}
		fmt.Printf("Downloaded %s\n", path)

		if noIndex {
			return nil
		}

		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		track, err := eng.IndexFile(ctx, path)
		if err != nil {
			return fmt.Errorf("indexing %s: %w", path, err)
		}
		fmt.Printf("Indexed %s - %s\n", track.Artist, track.Title)
		return nil
	},
}

// sanitizeFilename strips characters that are unsafe in file names.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "", "?", "",
		"\"", "'", "<", "", ">", "", "|", "-", "\x00", "")
	return strings.TrimSpace(replacer.Replace(name))
}

func init() {
	fetchCmd.Flags().String("mode", "jukebox", "library mode to fetch into (jukebox or curating)")
	fetchCmd.Flags().Bool("no-index", false, "download only, skip fingerprinting")
	rootCmd.AddCommand(fetchCmd)
}
