package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"video.mp4", "video.mp4"},
		{"My Holiday (2).MOV", "My_Holiday__2_.MOV"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\clip.webm`, "clip.webm"},
		{".hidden.mp4", "hidden.mp4"},
		{"видео.mp4", "_____.mp4"},
		{"...", ""},
		{"", ""},
		{"///", ""},
		{"___", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), "input %q", tt.in)
	}
}

func TestSanitizeFilename_CapsLength(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("a", 300) + ".mp4")
	assert.Len(t, got, 200)
	assert.True(t, strings.HasSuffix(got, ".mp4"))
}

func TestBuildVideoID(t *testing.T) {
	id := uuid.MustParse("0b6a2a4e-7d5c-4a59-9d0f-2f1f8c3b9e11")
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("CET", 3600))

	got := BuildVideoID(at, id, "video.mp4")
	assert.Equal(t, "04032026_040607_0b6a2a4e-7d5c-4a59-9d0f-2f1f8c3b9e11_video.mp4", got)
	assert.Equal(t, "gs://uploads/"+got, BuildBucketPath("gs", "uploads", got))
}
