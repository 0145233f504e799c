// Package spectrogram renders PNG spectrograms of uploaded recordings by
// shelling out to sox, with an ffmpeg fallback for inputs sox cannot handle.
// Rendered images live under the spectrograms/ subtree of the media store and
// are reused on subsequent requests.
package spectrogram

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/mousetube/mousetube-go/internal/audioinfo"
	"github.com/mousetube/mousetube-go/internal/conf"
	"github.com/mousetube/mousetube-go/internal/errors"
	"github.com/mousetube/mousetube-go/internal/mediastore"
)

const (
	// soxTimeout bounds a single sox render. Generous because ultrasonic
	// recordings are sampled at 250 kHz and up, and network storage is slow.
	soxTimeout = 90 * time.Second

	// ffmpegFallbackTimeout is independent of the sox timeout so the fallback
	// gets adequate time even when sox burned most of its own budget first.
	ffmpegFallbackTimeout = 60 * time.Second

	// processWaitTimeout is the grace period for a cancelled subprocess to be
	// reaped before the wait is abandoned.
	processWaitTimeout = 30 * time.Second

	// dynamicRange is the sox -z / ffmpeg drange parameter in dB.
	dynamicRange = "100"

	// ffmpegGain lifts quiet vocalizations in the ffmpeg showspectrumpic filter.
	ffmpegGain = "3"

	// heightRatio derives image height from width (height = width / heightRatio).
	heightRatio = 2

	// maxStderrLen caps captured renderer stderr in error messages.
	maxStderrLen = 512
)

// Generator renders spectrogram images into the media store.
type Generator struct {
	settings *conf.Settings
	store    *mediastore.Store
	logger   *slog.Logger
}

// New creates a Generator backed by the given media store.
func New(settings *conf.Settings, store *mediastore.Store) *Generator {
	return &Generator{
		settings: settings,
		store:    store,
		logger:   getLogger().With("component", "generator"),
	}
}

// DefaultWidth returns the configured render width, or the medium size when
// the configuration is unset or out of range.
func (g *Generator) DefaultWidth() int {
	w := g.settings.Media.Spectrogram.Width
	if w < sizeSmallPx || w > sizeExtraLargePx {
		return sizeMediumPx
	}
	return w
}

// Generate renders a spectrogram for the given audio file and returns the
// media store reference of the PNG. An already rendered image is reused.
// The raw flag drops axes and legends for embedding.
func (g *Generator) Generate(ctx context.Context, audioRef mediastore.Ref, width int, raw bool) (mediastore.Ref, error) {
	pngRef, err := PathFor(audioRef, width, raw)
	if err != nil {
		return mediastore.Ref{}, err
	}

	if ok, existsErr := g.store.Exists(pngRef); existsErr == nil && ok {
		g.logger.Debug("spectrogram already rendered", "image", pngRef.String())
		return pngRef, nil
	}

	srcPath, err := g.store.Abs(audioRef)
	if err != nil {
		return mediastore.Ref{}, err
	}
	destPath, err := g.store.Abs(pngRef)
	if err != nil {
		return mediastore.Ref{}, err
	}

	soxPath := g.settings.Media.Spectrogram.SoxPath
	ffmpegPath := g.settings.Media.Spectrogram.FfmpegPath
	if soxPath == "" && ffmpegPath == "" {
		return mediastore.Ref{}, errors.Newf("no spectrogram renderer available, install sox or ffmpeg").
			Component("spectrogram").
			Category(errors.CategoryConfiguration).
			Context("operation", "generate").
			Build()
	}

	start := time.Now()

	if soxPath != "" {
		soxErr := g.renderWithSox(ctx, srcPath, destPath, width, raw)
		if soxErr == nil {
			g.logger.Debug("spectrogram rendered with sox",
				"source", audioRef.String(), "image", pngRef.String(),
				"duration_ms", time.Since(start).Milliseconds())
			return pngRef, nil
		}
		if ctx.Err() != nil || ffmpegPath == "" {
			g.discardPartial(pngRef)
			return mediastore.Ref{}, g.renderError(soxErr, "sox", audioRef)
		}
		g.logger.Warn("sox rendering failed, falling back to ffmpeg",
			"source", audioRef.String(), "error", soxErr)
	}

	// Fresh context for the fallback: sox may have consumed most of the
	// caller's deadline before failing.
	ffmpegCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ffmpegFallbackTimeout)
	defer cancel()

	if err := g.renderWithFFmpeg(ffmpegCtx, srcPath, destPath, width, raw); err != nil {
		g.discardPartial(pngRef)
		return mediastore.Ref{}, g.renderError(err, "ffmpeg", audioRef)
	}

	g.logger.Debug("spectrogram rendered with ffmpeg",
		"source", audioRef.String(), "image", pngRef.String(),
		"duration_ms", time.Since(start).Milliseconds())
	return pngRef, nil
}

// discardPartial removes whatever a failed render left behind.
func (g *Generator) discardPartial(pngRef mediastore.Ref) {
	if err := g.store.Remove(pngRef); err == nil {
		g.logger.Debug("removed partial render", "image", pngRef.String())
	}
}

func (g *Generator) renderError(err error, renderer string, audioRef mediastore.Ref) error {
	return errors.New(err).
		Component("spectrogram").
		Category(errors.CategorySpectrogram).
		Context("operation", "generate").
		Context("renderer", renderer).
		Context("source", audioRef.String()).
		Build()
}

// renderWithSox runs sox with the spectrogram effect. The recording keeps its
// native sample rate: mouse vocalizations sit far above the audible band and
// resampling would cut them off the plot.
func (g *Generator) renderWithSox(ctx context.Context, srcPath, destPath string, width int, raw bool) error {
	ctx, cancel := context.WithTimeout(ctx, soxTimeout)
	defer cancel()

	args := g.soxArgs(srcPath, destPath, width, raw)
	cmd := createCommandWithNice(ctx, g.settings.Media.Spectrogram.SoxPath, args)
	return runCommand(ctx, cmd)
}

// soxArgs builds the sox argument list for a render.
func (g *Generator) soxArgs(srcPath, destPath string, width int, raw bool) []string {
	args := []string{srcPath, "-n", "spectrogram",
		"-x", strconv.Itoa(width),
		"-y", strconv.Itoa(width / heightRatio),
		"-z", dynamicRange,
	}
	// -d fits the X axis to the clip length. The duration comes from the
	// file header, sox sizes from the input when the probe fails.
	if info, err := audioinfo.ReadFile(srcPath); err == nil {
		if secs := info.Duration().Seconds(); secs > 0 {
			args = append(args, "-d", strconv.FormatFloat(secs, 'f', 3, 64))
		}
	} else {
		g.logger.Debug("duration probe failed, sox will size from input",
			"source", srcPath, "error", err)
	}
	if raw {
		args = append(args, "-r")
	}
	args = append(args, g.styleArgs()...)
	return append(args, "-o", destPath)
}

// styleArgs returns sox flags for the configured style preset.
func (g *Generator) styleArgs() []string {
	switch g.settings.Media.Spectrogram.Style {
	case conf.SpectrogramStylePrint:
		// Grayscale with Dolph window on a light background.
		return []string{"-m", "-l", "-w", "dolph"}
	case conf.SpectrogramStyleDark:
		// High color saturation with dark background.
		return []string{"-h"}
	default:
		return nil
	}
}

// renderWithFFmpeg renders via the showspectrumpic filter when sox is
// unavailable or fails on the input.
func (g *Generator) renderWithFFmpeg(ctx context.Context, srcPath, destPath string, width int, raw bool) error {
	cmd := createCommandWithNice(ctx, g.settings.Media.Spectrogram.FfmpegPath, ffmpegArgs(srcPath, destPath, width, raw))
	return runCommand(ctx, cmd)
}

// ffmpegArgs builds the ffmpeg argument list for a render.
func ffmpegArgs(srcPath, destPath string, width int, raw bool) []string {
	legend := "1"
	if raw {
		legend = "0"
	}
	filter := fmt.Sprintf("showspectrumpic=s=%dx%d:legend=%s:gain=%s:drange=%s",
		width, width/heightRatio, legend, ffmpegGain, dynamicRange)

	return []string{"-hide_banner", "-y",
		"-i", srcPath,
		"-lavfi", filter,
		"-frames:v", "1",
		destPath,
	}
}

// createCommandWithNice wraps the renderer in nice -n 19 where available so
// long renders do not starve request handling.
func createCommandWithNice(ctx context.Context, cmdPath string, args []string) *exec.Cmd {
	if runtime.GOOS != "windows" {
		if nicePath, err := exec.LookPath("nice"); err == nil {
			niceArgs := append([]string{"-n", "19", cmdPath}, args...)
			return exec.CommandContext(ctx, nicePath, niceArgs...)
		}
	}
	return exec.CommandContext(ctx, cmdPath, args...)
}

// runCommand starts the command and waits for completion, capturing stderr
// for error context. A cancelled process gets a grace period to be reaped,
// then the wait is abandoned in a goroutine so no zombie is left behind.
func runCommand(ctx context.Context, cmd *exec.Cmd) error {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", cmd.Path, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s failed: %w (stderr: %s)", cmd.Path, err, truncate(stderr.String(), maxStderrLen))
		}
		return nil
	case <-ctx.Done():
		select {
		case <-done:
			return fmt.Errorf("%s cancelled: %w", cmd.Path, ctx.Err())
		case <-time.After(processWaitTimeout):
			go func() { <-done }()
			return fmt.Errorf("%s ignored kill after cancellation", cmd.Path)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
