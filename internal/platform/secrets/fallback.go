package secrets

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// readFallbackFile loads "secret://name[?version=N]=value" lines used when Secret Manager
// cannot be reached, typically on a developer machine.
func readFallbackFile(path string) (map[string]string, error) {
	values := make(map[string]string)
	if strings.TrimSpace(path) == "" {
		return values, nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return values, fmt.Errorf("secrets: unable to open fallback file %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rawRef, value, ok := splitFallbackLine(line)
		if !ok {
			continue
		}
		ref, err := parseReference(rawRef)
		if err != nil {
			continue
		}
		version := ref.version
		if version == "" {
			version = latestVersion
			values[ref.canonical] = value
		}
		values[ref.key(version)] = value
	}
	if err := scanner.Err(); err != nil {
		return values, fmt.Errorf("secrets: failed reading %s: %w", absPath, err)
	}
	return values, nil
}

// splitFallbackLine separates the reference from its value. Query parameters in the
// reference contain "=" themselves, so the separator is the first "=" after every
// "key=value" pair of the query is complete. Values may contain "=".
func splitFallbackLine(line string) (string, string, bool) {
	first := strings.IndexByte(line, '=')
	if first <= 0 {
		return "", "", false
	}
	sep := first
	if q := strings.IndexByte(line, '?'); q >= 0 && q < first {
		sep = -1
		for i := first; i < len(line); i++ {
			if line[i] != '=' {
				continue
			}
			query := line[q+1 : i]
			if strings.Count(query, "=") == strings.Count(query, "&")+1 {
				sep = i
				break
			}
		}
		if sep < 0 {
			return "", "", false
		}
	}
	ref := strings.TrimSpace(line[:sep])
	if ref == "" {
		return "", "", false
	}
	return ref, strings.TrimSpace(line[sep+1:]), true
}
