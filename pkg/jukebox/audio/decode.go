package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/frederictriquet/Jukebox/pkg/utils"
)

// DecodeError wraps any failure turning an audio file into samples. Indexing
// treats it as skip-and-continue, never as a batch abort.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode returns mono float64 samples at sampleRate, normalized to [-1, 1].
// Conforming WAV files (matching rate, single channel) are read directly
// through go-audio; everything else goes through ffmpeg into tempDir first.
func Decode(ctx context.Context, path, tempDir string, sampleRate int) ([]float64, error) {
	if isConformingWAV(path, sampleRate) {
		samples, _, err := ReadWAV(path)
		if err != nil {
			return nil, &DecodeError{Path: path, Err: err}
		}
		return samples, nil
	}

	wavPath, err := ConvertToMonoWAV(ctx, path, tempDir, sampleRate)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer utils.DeleteFile(wavPath)

	samples, _, err := ReadWAV(wavPath)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return samples, nil
}

func isConformingWAV(path string, sampleRate int) bool {
	if filepath.Ext(path) != ".wav" {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	return dec.IsValidFile() && int(dec.SampleRate) == sampleRate && dec.NumChans == 1
}

// ReadWAV reads a whole WAV file as float64 samples plus its sample rate.
// Multi-channel audio is averaged down to mono.
func ReadWAV(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("not a valid WAV file: %s", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("reading PCM data: %w", err)
	}

	return bufferToMono(buf, int(dec.BitDepth)), int(dec.SampleRate), nil
}

func bufferToMono(buf *goaudio.IntBuffer, bitDepth int) []float64 {
	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	maxVal := float64(int64(1) << (uint(bitDepth) - 1))

	samples := make([]float64, len(buf.Data)/channels)
	for i := range samples {
		sum := 0.0
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch])
		}
		samples[i] = sum / float64(channels) / maxVal
	}
	return samples
}

// ConvertToMonoWAV decodes any ffmpeg-readable file into a mono 16-bit WAV
// at sampleRate under outputDir, writing to a temp name first so a killed
// conversion never leaves a half-written target.
func ConvertToMonoWAV(ctx context.Context, inputPath, outputDir string, sampleRate int) (string, error) {
	if sampleRate == 0 {
		sampleRate = 11025
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", err
	}

	outputPath, err := convertTarget(outputDir, inputPath)
	if err != nil {
		return "", err
	}
	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(outputPath)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %v (%s)", err, out)
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		os.Remove(outputPath)
		return "", err
	}
	return outputPath, nil
}

// convertTarget reserves a unique output path for one conversion of
// inputPath. Equal basenames from different library directories land on
// concurrent workers; a shared name would let one conversion clobber
// another's output mid-read.
func convertTarget(outputDir, inputPath string) (string, error) {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	f, err := os.CreateTemp(outputDir, stem+"-*.wav")
	if err != nil {
		return "", err
	}
	f.Close()
	return f.Name(), nil
}

// WriteWAV encodes mono float64 samples as a 16-bit WAV file. Mainly used
// by tests and tooling to synthesize fixtures.
func WriteWAV(path string, samples []float64, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		buf.Data[i] = int(s * 32767)
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
