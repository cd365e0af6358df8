package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadBatchFile reads and parses a catalog batch file: a JSON array of
// content items. Every item in the batch must validate; a batch with one bad
// item is rejected whole, matching the all-or-nothing generation semantics
// of a cache refresh.
func ReadBatchFile(path string) ([]ContentItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file %s: %w", path, err)
	}

	var items []ContentItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse batch file %s: %w", path, err)
	}

	for i := range items {
		if err := items[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid item %d in %s: %w", i, path, err)
		}
	}

	return items, nil
}

// WriteBatchFile writes content items to disk as a pretty-printed JSON array.
func WriteBatchFile(path string, items []ContentItem) error {
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return fmt.Errorf("cannot write invalid item %d: %w", i, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create batch directory: %w", err)
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write batch file %s: %w", path, err)
	}

	return nil
}

// ReadAllBatchFiles reads every *.json batch in the directory and returns the
// combined item set. Invalid batch files are skipped with a warning to stderr
// so one bad drop does not block a refresh from the rest of the directory.
func ReadAllBatchFiles(dir string) ([]ContentItem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ContentItem{}, nil // missing drop directory is valid
		}
		return nil, fmt.Errorf("failed to read catalog directory: %w", err)
	}

	var all []ContentItem
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		items, err := ReadBatchFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping invalid batch file %s: %v\n", entry.Name(), err)
			continue
		}

		for _, item := range items {
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			all = append(all, item)
		}
	}

	return all, nil
}
