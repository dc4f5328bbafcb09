package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LevelsFilterRecords(t *testing.T) {
	ctx := context.Background()

	for _, tt := range []struct {
		level string
		want  []string
	}{
		{"debug", []string{"dbg", "inf", "wrn", "err"}},
		{"", []string{"inf", "wrn", "err"}},
		{"WARNING", []string{"wrn", "err"}},
		{"error", []string{"err"}},
	} {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(&buf, tt.level, "text")
			log.Debug(ctx, "dbg")
			log.Info(ctx, "inf")
			log.Warn(ctx, "wrn")
			log.Error(ctx, "err")

			var got []string
			for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
				_, msg, _ := strings.Cut(line, "msg=")
				got = append(got, msg)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "JSON").With("component", "persist").Info(context.Background(), "image saved", "key", "brainbox.sqlite", "size", "4.1 kB")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "image saved", rec["msg"])
	assert.Equal(t, "persist", rec["component"])
	assert.Equal(t, "brainbox.sqlite", rec["key"])
	assert.Equal(t, "4.1 kB", rec["size"])
}

func TestNew_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "text").With("Secret", "s3")
	log.Info(context.Background(), "signed in", "user_id", "u1", "access_token", "eyJhbGci", "password", "hunter2")

	out := buf.String()
	assert.Contains(t, out, "user_id=u1")
	assert.Contains(t, out, "access_token=[redacted]")
	assert.Contains(t, out, "password=[redacted]")
	assert.Contains(t, out, "Secret=[redacted]")
	assert.NotContains(t, out, "eyJhbGci")
	assert.NotContains(t, out, "hunter2")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNop_DiscardsEverything(t *testing.T) {
	log := Nop()
	ctx := context.TODO()
	log.Debug(ctx, "x")
	log.With("a", 1).Error(ctx, "y")
}
