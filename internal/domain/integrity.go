package domain

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"tbench.dev/pkg/tbench/internal/adapter"
	"tbench.dev/pkg/tbench/internal/manifest"
	m "tbench.dev/pkg/tbench/internal/model"
)

// hashParallelism bounds concurrent checksum computation during a
// verification pass.
const hashParallelism = 4

// IntegrityVerifier confirms the test-fixture inventory has not been
// deleted, shrunk, or tampered with. It is read-only: a verification pass
// never writes and never caches results across workspace mutations.
type IntegrityVerifier struct {
	ws       adapter.WorkspaceFS
	files    []string
	minBytes int64
	critical map[string]string
}

// NewIntegrityVerifier constructs a verifier from the manifest's declared
// fixture inventory.
func NewIntegrityVerifier(ws adapter.WorkspaceFS, cfg manifest.Integrity) *IntegrityVerifier {
	minBytes := cfg.MinBytes
	if minBytes <= 0 {
		minBytes = manifest.DefaultMinBytes
	}

	return &IntegrityVerifier{
		ws:       ws,
		files:    cfg.Files,
		minBytes: minBytes,
		critical: cfg.Critical,
	}
}

// Verify computes a fresh IntegrityReport. Missing and undersized checks
// run inline; critical-file checksums are hashed with bounded parallelism.
func (v *IntegrityVerifier) Verify(ctx context.Context) (m.IntegrityReport, error) {
	var report m.IntegrityReport

	for _, file := range v.files {
		size, err := v.ws.FileSize(m.Path(file))
		if err != nil {
			report.MissingFiles = append(report.MissingFiles, m.Path(file))
			continue
		}

		if size < v.minBytes {
			report.UndersizedFiles = append(report.UndersizedFiles, m.Path(file))
		}
	}

	mismatches, err := v.verifyChecksums(ctx)
	if err != nil {
		return m.IntegrityReport{}, err
	}

	report.ChecksumMismatches = mismatches

	sortPaths(report.MissingFiles)
	sortPaths(report.UndersizedFiles)

	if !report.Clean() {
		slog.Warn("fixture integrity findings",
			"missing", len(report.MissingFiles),
			"undersized", len(report.UndersizedFiles),
			"checksum_mismatches", len(report.ChecksumMismatches))
	}

	return report, nil
}

func (v *IntegrityVerifier) verifyChecksums(ctx context.Context) ([]m.Path, error) {
	if len(v.critical) == 0 {
		return nil, nil
	}

	var (
		mu         sync.Mutex
		mismatches []m.Path
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(hashParallelism)

	for path, wantPrefix := range v.critical {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			hash, err := v.ws.HashFile(m.Path(path))
			if err != nil || !strings.HasPrefix(hash, wantPrefix) {
				mu.Lock()
				mismatches = append(mismatches, m.Path(path))
				mu.Unlock()
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	sortPaths(mismatches)

	return mismatches, nil
}

func sortPaths(paths []m.Path) {
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })
}
