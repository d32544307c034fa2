package services

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dhanushrs1/HDC-File/lib/format"
	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

// MediaService shells out to ffmpeg and ffprobe for the workspace's
// screenshot and clip jobs.
type MediaService struct {
	ffmpegPath  string
	ffprobePath string
	watermark   string
	log         *zap.Logger
}

func NewMediaService(ffmpegPath, ffprobePath, watermark string, log *zap.Logger) *MediaService {
	return &MediaService{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		watermark:   watermark,
		log:         log.Named("media"),
	}
}

// ProbeDuration asks ffprobe for the container duration.
func (s *MediaService) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	defer tracer.Trace("MediaService::ProbeDuration")()
	out, err := exec.CommandContext(ctx, s.ffprobePath, probeArgs(path)...).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe error: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe returned an unreadable duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// Screenshot grabs one frame at the given offset with a timestamp
// overlay and the configured watermark.
func (s *MediaService) Screenshot(ctx context.Context, videoPath string, at time.Duration, outPath string) error {
	defer tracer.Trace("MediaService::Screenshot")()
	cmd := exec.CommandContext(ctx, s.ffmpegPath, screenshotArgs(videoPath, at, s.watermark, outPath)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg screenshot error: %w, output: %s", err, string(output))
	}
	return nil
}

// Clip cuts a segment starting at start, re-encoding video and copying
// the audio track.
func (s *MediaService) Clip(ctx context.Context, videoPath string, start, duration time.Duration, outPath string) error {
	defer tracer.Trace("MediaService::Clip")()
	cmd := exec.CommandContext(ctx, s.ffmpegPath, clipArgs(videoPath, start, duration, outPath)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg clip error: %w, output: %s", err, string(output))
	}
	return nil
}

func probeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
}

func screenshotArgs(videoPath string, at time.Duration, watermark, outPath string) []string {
	filter := fmt.Sprintf(
		"drawtext=text='%s':x=15:y=15:fontsize=28:fontcolor=white:borderw=3:bordercolor=black",
		escapeDrawtext(format.ReadableTime(at)),
	)
	if watermark != "" {
		filter += fmt.Sprintf(
			",drawtext=text='%s':x=w-tw-15:y=h-th-15:fontsize=20:fontcolor=white:borderw=2:bordercolor=black",
			escapeDrawtext(watermark),
		)
	}
	return []string{
		"-y",
		"-ss", format.Timestamp(at),
		"-i", videoPath,
		"-frames:v", "1",
		"-vf", filter,
		"-q:v", "2",
		outPath,
	}
}

func clipArgs(videoPath string, start, duration time.Duration, outPath string) []string {
	return []string{
		"-y",
		"-ss", format.Timestamp(start),
		"-i", videoPath,
		"-t", strconv.Itoa(int(duration.Seconds())),
		"-c:v", "libx264",
		"-c:a", "copy",
		"-strict", "-2",
		outPath,
	}
}

// escapeDrawtext keeps operator supplied text from breaking out of the
// drawtext filter expression.
var drawtextEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)

func escapeDrawtext(s string) string {
	return drawtextEscaper.Replace(s)
}
