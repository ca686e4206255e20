package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/frederictriquet/Jukebox/pkg/utils"
)

// YouTubeInfo is the metadata subset the library scan needs for a fetched
// reference track.
type YouTubeInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Track    string  `json:"track"`
	Uploader string  `json:"uploader"`
	Channel  string  `json:"channel"`
	Duration float64 `json:"duration"`
}

// BestArtist picks the most specific artist field available, worst case
// "Unknown Artist".
func (i *YouTubeInfo) BestArtist() string {
	for _, s := range []string{i.Artist, i.Channel, i.Uploader} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return "Unknown Artist"
}

// BestTitle prefers the track tag over the video title.
func (i *YouTubeInfo) BestTitle() string {
	if strings.TrimSpace(i.Track) != "" {
		return i.Track
	}
	return i.Title
}

// ExtractYouTubeID pulls the video id out of watch, short, and embed URL
// forms; anything else is rejected before yt-dlp is spawned.
func ExtractYouTubeID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	host := strings.ToLower(u.Host)
	switch {
	case strings.Contains(host, "youtu.be"):
		if id := strings.TrimPrefix(u.Path, "/"); id != "" {
			return id, nil
		}
	case strings.Contains(host, "youtube.com"):
		if strings.HasPrefix(u.Path, "/watch") {
			if id := u.Query().Get("v"); id != "" {
				return id, nil
			}
		}
		for _, prefix := range []string{"/embed/", "/v/", "/shorts/"} {
			if strings.HasPrefix(u.Path, prefix) {
				if id := strings.TrimPrefix(u.Path, prefix); id != "" {
					return id, nil
				}
			}
		}
	}
	return "", fmt.Errorf("not a recognized YouTube URL: %s", rawURL)
}

// DownloadYouTubeAudio fetches the best audio stream of a video into
// outputDir via yt-dlp and returns the downloaded path plus metadata. The
// file keeps its source container; Decode handles the conversion later.
func DownloadYouTubeAudio(ctx context.Context, rawURL, outputDir string) (string, *YouTubeInfo, error) {
	videoID, err := ExtractYouTubeID(rawURL)
	if err != nil {
		return "", nil, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
	}
	if err := utils.MakeDir(outputDir); err != nil {
		return "", nil, fmt.Errorf("creating output directory: %w", err)
	}

	meta := ytdlp.New().
		NoPlaylist().
		NoWarnings().
		SkipDownload().
		DumpSingleJSON()
	res, err := meta.Run(ctx, rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("yt-dlp metadata extraction: %w", err)
	}

	var info YouTubeInfo
	if err := json.Unmarshal([]byte(res.Stdout), &info); err != nil {
		return "", nil, fmt.Errorf("parsing yt-dlp JSON: %w", err)
	}
	if strings.TrimSpace(info.ID) == "" || strings.TrimSpace(info.Title) == "" {
		return "", nil, fmt.Errorf("incomplete yt-dlp metadata for %s", videoID)
	}

	dl := ytdlp.New().
		NoPlaylist().
		NoWarnings().
		Format("ba").
		Output(filepath.Join(outputDir, "%(id)s.%(ext)s"))
	if _, err := dl.Run(ctx, rawURL); err != nil {
		return "", nil, fmt.Errorf("yt-dlp download: %w", err)
	}

	for _, ext := range []string{".m4a", ".webm", ".opus", ".mp3", ".aac", ".ogg"} {
		candidate := filepath.Join(outputDir, info.ID+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, &info, nil
		}
	}
	return "", nil, fmt.Errorf("downloaded audio not found for video %s", info.ID)
}
