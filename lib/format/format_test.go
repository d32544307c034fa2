package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadableTime(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "0s"},
		{"negative", -5 * time.Second, "0s"},
		{"seconds", 42 * time.Second, "42s"},
		{"minutes and seconds", 95 * time.Second, "1m 35s"},
		{"exact hour", time.Hour, "1h"},
		{"full set", 26*time.Hour + 3*time.Minute + 4*time.Second, "1d 2h 3m 4s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReadableTime(tt.d))
		})
	}
}

func TestBytes(t *testing.T) {
	tests := []struct {
		name string
		n    int64
		want string
	}{
		{"bytes", 512, "512 B"},
		{"kib", 2048, "2.0 KiB"},
		{"mib", 5 * 1024 * 1024, "5.0 MiB"},
		{"gib and a half", 1536 * 1024 * 1024, "1.5 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Bytes(tt.n))
		})
	}
}

func TestMentionEscapesName(t *testing.T) {
	assert.Equal(t, `<a href="tg://user?id=7">Bob &lt;script&gt;</a>`, Mention(7, "Bob <script>"))
	assert.Equal(t, `<a href="tg://user?id=7">7</a>`, Mention(7, ""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 40))
	assert.Equal(t, "exactly", Truncate("exactly", 7))
	assert.Equal(t, "long nam…", Truncate("long name here", 9))
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"full", "01:02:03", time.Hour + 2*time.Minute + 3*time.Second, false},
		{"minutes", "02:30", 2*time.Minute + 30*time.Second, false},
		{"bare seconds", "90", 90 * time.Second, false},
		{"padded", " 00:00:15 ", 15 * time.Second, false},
		{"letters", "aa:bb:cc", 0, true},
		{"negative", "-5", 0, true},
		{"too many parts", "1:2:3:4", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:00", Timestamp(0))
	assert.Equal(t, "01:02:03", Timestamp(time.Hour+2*time.Minute+3*time.Second))
	assert.Equal(t, "27:46:40", Timestamp(100000*time.Second))
}
