package main

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// fixtureExts are the file types served as assistant messages. JSON files
// must be valid JSON; text and markdown are served verbatim so fixtures can
// reproduce prose and fenced replies.
var fixtureExts = map[string]bool{".json": true, ".txt": true, ".md": true}

// numberedFileRe matches files like "mock-validator.1.json" or "mock-analyst.2.txt".
var numberedFileRe = regexp.MustCompile(`^(.+)\.(\d+)\.(json|txt|md)$`)

// loadFixtures reads fixture files from dir and returns model → reply sequence.
//
// For each model, numbered files come first in numeric order, then the base
// file (model.json, model.txt or model.md) as the repeating fallback.
func loadFixtures(dir string) (map[string][]string, error) {
	base := make(map[string]string)
	numbered := make(map[string]map[int]string)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := filepath.Ext(d.Name())
		if d.IsDir() || !fixtureExts[ext] {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if ext == ".json" && !json.Valid(data) {
			return fmt.Errorf("invalid JSON in %s", path)
		}
		content := strings.TrimRight(string(data), "\n")

		if m := numberedFileRe.FindStringSubmatch(d.Name()); m != nil {
			index, _ := strconv.Atoi(m[2])
			if numbered[m[1]] == nil {
				numbered[m[1]] = make(map[int]string)
			}
			numbered[m[1]][index] = content
			return nil
		}

		model := strings.TrimSuffix(d.Name(), ext)
		if _, dup := base[model]; dup {
			return fmt.Errorf("duplicate base fixture for model %q", model)
		}
		base[model] = content
		return nil
	})
	if err != nil {
		return nil, err
	}

	fixtures := make(map[string][]string)
	for model, byIndex := range numbered {
		indices := make([]int, 0, len(byIndex))
		for idx := range byIndex {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		for _, idx := range indices {
			fixtures[model] = append(fixtures[model], byIndex[idx])
		}
	}
	for model, content := range base {
		fixtures[model] = append(fixtures[model], content)
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}
	return fixtures, nil
}
