// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const filePrefix = "checkpoint-"

// FileStore keeps snapshots as JSON files in one directory.
type FileStore struct {
	Dir    string
	Retain int
}

// NewFileStore creates dir with private permissions if missing.
func NewFileStore(dir string, retain int) (*FileStore, error) {
	if retain < 1 {
		retain = 1
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileStore{Dir: dir, Retain: retain}, nil
}

func fileName(seq int64) string { return fmt.Sprintf("%s%010d.json", filePrefix, seq) }

// Save writes the snapshot through a temp file and rename so readers never
// observe a partial checkpoint.
func (f *FileStore) Save(ctx context.Context, s Snapshot) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.Dir, ".checkpoint-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(f.Dir, fileName(s.Sequence))); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return f.prune()
}

// list returns checkpoint file names, oldest first.
func (f *FileStore) list() ([]string, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), filePrefix) && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *FileStore) prune() error {
	names, err := f.list()
	if err != nil {
		return err
	}
	for len(names) > f.Retain {
		if err := os.Remove(filepath.Join(f.Dir, names[0])); err != nil {
			return err
		}
		names = names[1:]
	}
	return nil
}

func (f *FileStore) Latest(ctx context.Context) (Snapshot, bool, error) {
	var s Snapshot
	names, err := f.list()
	if err != nil || len(names) == 0 {
		return s, false, err
	}
	b, err := os.ReadFile(filepath.Join(f.Dir, names[len(names)-1]))
	if err != nil {
		return s, false, err
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, false, err
	}
	return s, true, nil
}
