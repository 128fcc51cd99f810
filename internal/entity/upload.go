package entity

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const UploadGrantTTL = 900 * time.Second

// videoIDTimeLayout renders as ddmmyyyy_HHMMSS.
const videoIDTimeLayout = "02012006_150405"

const maxFilenameLen = 200

type GrantRequest struct {
	ObjectKey   string
	ContentType string
	Method      string
	TTL         time.Duration
}

type UploadGrant struct {
	URL         string
	Method      string
	ContentType string
	ExpiresAt   time.Time
}

// Returns "" when nothing usable remains.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := strings.TrimLeft(b.String(), ".")
	if len(out) > maxFilenameLen {
		out = out[len(out)-maxFilenameLen:]
	}
	if strings.Trim(out, "_.-") == "" {
		return ""
	}
	return out
}

// The job id keeps two uploads of one file in the same second apart.
func BuildVideoID(createdAt time.Time, id uuid.UUID, sanitizedFilename string) string {
	return fmt.Sprintf("%s_%s_%s", createdAt.UTC().Format(videoIDTimeLayout), id.String(), sanitizedFilename)
}

func BuildBucketPath(scheme, bucket, videoID string) string {
	return fmt.Sprintf("%s://%s/%s", scheme, bucket, videoID)
}
