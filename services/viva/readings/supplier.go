// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package readings resolves assignment document references into plain
// text for the session's background context.
package readings

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Supplier resolves document references into extracted text.
//
// # Description
//
// Resolve is total with respect to individual documents: references that
// fail to resolve are omitted from the map, never surfaced as errors. An
// error return is reserved for supplier-level failures (e.g. an
// unreachable backing store).
type Supplier interface {
	Resolve(ctx context.Context, refs []string) (map[string]string, error)
}

// DirSupplier serves pre-extracted reading text from a directory tree.
//
// # Description
//
// References are relative paths ("week1/reading1.txt"); the resolved name
// is the file's base name. Paths are confined to the root directory.
// PDF extraction happens upstream in the ingestion pipeline; this supplier
// only ever sees plain text.
type DirSupplier struct {
	root string
}

// NewDirSupplier creates a supplier rooted at dir.
func NewDirSupplier(dir string) *DirSupplier {
	return &DirSupplier{root: dir}
}

// Resolve reads each referenced file, skipping any that are missing,
// unreadable, or outside the root.
func (d *DirSupplier) Resolve(ctx context.Context, refs []string) (map[string]string, error) {
	texts := make(map[string]string, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(d.root, filepath.Clean("/"+ref))
		rel, err := filepath.Rel(d.root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			slog.Warn("skipping document reference outside readings root", "ref", ref)
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read document, omitting from context", "ref", ref, "error", err)
			continue
		}
		text := strings.TrimSpace(string(content))
		if text == "" {
			continue
		}
		texts[filepath.Base(ref)] = text
	}
	return texts, nil
}

// StaticSupplier resolves from a fixed in-memory map. Used in tests and
// single-assignment deployments.
type StaticSupplier struct {
	Docs map[string]string
}

// Resolve returns the documents whose names match the given refs.
func (s *StaticSupplier) Resolve(ctx context.Context, refs []string) (map[string]string, error) {
	texts := make(map[string]string, len(refs))
	for _, ref := range refs {
		if text, ok := s.Docs[ref]; ok {
			texts[ref] = text
		}
	}
	return texts, nil
}
