package storage

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// MediaObjectPath is the object key of one rendition of a media asset, e.g.
// media/med_01H.../thumb.webp.
func MediaObjectPath(assetID, variant, ext string) (string, error) {
	id, err := validateSegment("assetID", assetID)
	if err != nil {
		return "", err
	}
	name, err := validateSegment("variant", variant)
	if err != nil {
		return "", err
	}
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		return "", fmt.Errorf("storage: extension is required")
	}
	return fmt.Sprintf("media/%s/%s.%s", id, name, ext), nil
}

// UploadObjectPath places raw uploads under a month prefix so buckets stay browsable.
func UploadObjectPath(at time.Time, uploadID, fileName string) (string, error) {
	id, err := validateSegment("uploadID", uploadID)
	if err != nil {
		return "", err
	}
	name, err := validateFileName(path.Base(strings.ReplaceAll(fileName, "\\", "/")))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("uploads/%s/%s/%s", at.UTC().Format("2006/01"), id, name), nil
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") || strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	return value, nil
}

func validateFileName(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "." || value == "/" {
		return "", fmt.Errorf("storage: fileName is required")
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: fileName contains invalid traversal sequence")
	}
	return strings.ReplaceAll(value, " ", "-"), nil
}
