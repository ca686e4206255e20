// Command spectrogram renders PNG spectrograms for every WAV file in a
// directory. Useful for eyeballing peak density when tuning fingerprint
// parameters.
package main

import (
	"fmt"
	"image"
	"image/draw"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/eligwz/spectrogram"

	"github.com/frederictriquet/Jukebox/pkg/jukebox/audio"
)

const (
	imageWidth  = 2048
	imageHeight = 512
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <wav-dir> [output-dir]\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}
	inputDir := os.Args[1]
	outputDir := filepath.Join(inputDir, "spectrograms")
	if len(os.Args) > 2 {
		outputDir = os.Args[2]
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatal(err)
	}

	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".wav" {
			return nil
		}
		if err := render(path, outputDir); err != nil {
			log.Printf("skipping %s: %v", path, err)
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
}

func render(path, outputDir string) error {
	samples, sampleRate, err := audio.ReadWAV(path)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no samples")
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, imageWidth, imageHeight))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// Hamming window + FFT, linear magnitude. The log scale washes out the
	// peak structure at this resolution.
	spectrogram.Drawfft(
		img,
		samples,
		uint32(sampleRate),
		uint32(imageHeight),
		false, // rectangular window
		false, // DFT
		true,  // magnitude
		false, // log10
	)

	outputPath := filepath.Join(outputDir, filepath.Base(path)+".png")
	if err := spectrogram.SavePng(img, outputPath); err != nil {
		return err
	}
	fmt.Printf("%s -> %s\n", path, outputPath)
	return nil
}
