package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Ryuya-dot-com/SelfPacedReading/internal/models"

	"github.com/google/uuid"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// SanitizeFilename strips a free-text field down to filename-safe characters,
// falling back when nothing survives.
func SanitizeFilename(s, fallback string) string {
	cleaned := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(s), "-")
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		return fallback
	}
	return cleaned
}

// Filename builds the export filename from the participant identity and the
// moment of export. A short random suffix keeps rapid repeated exports from
// colliding on the one-second timestamp.
func Filename(name, id string, now time.Time) string {
	pname := SanitizeFilename(name, "anon")
	pid := SanitizeFilename(id, "id")
	stamp := now.Format("2006-01-02_150405")
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("SelfPacedReading_%s_%s_%s_%s.csv", pname, pid, stamp, suffix)
}

// Write renders rows and writes them under dir, creating the directory as
// needed. Returns the full path of the written file.
func Write(dir, name, id string, rows []models.EventRow, now time.Time) (string, error) {
	data, err := Render(rows)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create export directory: %w", err)
	}
	path := filepath.Join(dir, Filename(name, id, now))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("could not write export file: %w", err)
	}
	return path, nil
}
