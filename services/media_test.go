package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProbeArgs(t *testing.T) {
	t.Parallel()
	args := probeArgs("/tmp/video.mp4")
	assert.Equal(t, []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		"/tmp/video.mp4",
	}, args)
}

func TestScreenshotArgs(t *testing.T) {
	t.Parallel()
	args := screenshotArgs("/tmp/in.mp4", 75*time.Second, "", "/tmp/ss_1.jpg")

	assert.Equal(t, "-y", args[0])
	assert.Equal(t, "-ss", args[1])
	assert.Equal(t, "00:01:15", args[2])
	assert.Equal(t, "/tmp/in.mp4", args[4])
	assert.Equal(t, "/tmp/ss_1.jpg", args[len(args)-1])

	filter := args[8]
	assert.Contains(t, filter, "drawtext=text='1m 15s'")
	assert.Contains(t, filter, "x=15:y=15")
	assert.NotContains(t, filter, "w-tw-15", "no watermark overlay when unset")
}

func TestScreenshotArgsWithWatermark(t *testing.T) {
	t.Parallel()
	args := screenshotArgs("/tmp/in.mp4", time.Minute, "HD Cinema", "/tmp/ss.jpg")

	filter := args[8]
	assert.Contains(t, filter, "text='HD Cinema'")
	assert.Contains(t, filter, "x=w-tw-15:y=h-th-15")
	assert.Equal(t, 2, strings.Count(filter, "drawtext="))
}

func TestClipArgs(t *testing.T) {
	t.Parallel()
	args := clipArgs("/tmp/in.mp4", 90*time.Second, 30*time.Second, "/tmp/clip.mp4")
	assert.Equal(t, []string{
		"-y",
		"-ss", "00:01:30",
		"-i", "/tmp/in.mp4",
		"-t", "30",
		"-c:v", "libx264",
		"-c:a", "copy",
		"-strict", "-2",
		"/tmp/clip.mp4",
	}, args)
}

func TestEscapeDrawtext(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `12\:30`, escapeDrawtext(`12:30`))
	assert.Equal(t, `it\'s`, escapeDrawtext(`it's`))
	assert.Equal(t, `a\\b`, escapeDrawtext(`a\b`))
	assert.Equal(t, "plain", escapeDrawtext("plain"))
}
