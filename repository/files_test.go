package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v3"
)

func TestSummarizeMedia(t *testing.T) {
	tests := []struct {
		name string
		msg  *tele.Message
		want mediaSummary
		ok   bool
	}{
		{
			name: "document",
			msg: &tele.Message{Document: &tele.Document{
				File:     tele.File{UniqueID: "doc-uid", FileSize: 42},
				FileName: "movie.mkv",
			}},
			want: mediaSummary{uniqueID: "doc-uid", name: "movie.mkv", size: 42},
			ok:   true,
		},
		{
			name: "video keeps duration",
			msg: &tele.Message{Video: &tele.Video{
				File:     tele.File{UniqueID: "vid-uid", FileSize: 1024},
				FileName: "clip.mp4",
				Duration: 93,
			}},
			want: mediaSummary{uniqueID: "vid-uid", name: "clip.mp4", size: 1024, duration: 93},
			ok:   true,
		},
		{
			name: "photo gets a placeholder name",
			msg: &tele.Message{Photo: &tele.Photo{
				File: tele.File{UniqueID: "pho-uid", FileSize: 7},
			}},
			want: mediaSummary{uniqueID: "pho-uid", name: "Photo", size: 7},
			ok:   true,
		},
		{
			name: "audio keeps duration",
			msg: &tele.Message{Audio: &tele.Audio{
				File:     tele.File{UniqueID: "aud-uid", FileSize: 9},
				FileName: "song.mp3",
				Duration: 180,
			}},
			want: mediaSummary{uniqueID: "aud-uid", name: "song.mp3", size: 9, duration: 180},
			ok:   true,
		},
		{name: "text only", msg: &tele.Message{Text: "hello"}, ok: false},
		{name: "nil message", msg: nil, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := summarizeMedia(tt.msg)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFirstCount(t *testing.T) {
	assert.EqualValues(t, 0, firstCount(nil))
	assert.EqualValues(t, 3, firstCount([]countDoc{{Count: 3}, {Count: 9}}))
}
