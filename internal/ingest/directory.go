// Package ingest converts every PDF under a directory, one pipeline run per file.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/doc-structurer/constants"
	"github.com/joseph-ayodele/doc-structurer/internal/common"
	"github.com/joseph-ayodele/doc-structurer/internal/entity"
	processor "github.com/joseph-ayodele/doc-structurer/internal/pipeline"
)

// Pipeline is the single-document run each file goes through.
type Pipeline interface {
	Process(ctx context.Context, doc entity.Document, cred *common.Credential, opts processor.Options) (processor.Result, error)
}

// FileResult is the per-file outcome.
type FileResult struct {
	Path         string
	OutPath      string
	Rows         int
	Deduplicated bool
	HashHex      string
	Err          error
}

// DirStats summarizes a directory run.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Options controls which files are picked up and where results go.
type Options struct {
	SkipHidden bool
	// OutDir receives <name>.xlsx for every input. Empty means next to the input.
	OutDir string
	Run    processor.Options
}

// Directory walks root and runs every PDF through the pipeline in lexical order.
// Files with identical content are converted once. A rate-limit or authentication
// failure stops the walk since every later file would hit it too.
type Directory struct {
	pipeline Pipeline
	logger   *slog.Logger
}

func NewDirectory(p Pipeline, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{pipeline: p, logger: logger}
}

func (d *Directory) Convert(ctx context.Context, root string, cred *common.Credential, opts Options) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.InvalidInputError("A directory is required.")
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, DirStats{}, common.InvalidInputError(fmt.Sprintf("%s is not a directory.", root))
	}
	if opts.OutDir != "" {
		if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
			return nil, DirStats{}, common.InvalidInputError(fmt.Sprintf("Cannot create %s.", opts.OutDir))
		}
	}

	var (
		results []FileResult
		stats   DirStats
		b       = &batch{root: root, outDir: opts.OutDir, seen: map[string]string{}, used: map[string]bool{}}
	)
	errStop := errors.New("stop")
	var fatal error

	err := filepath.WalkDir(root, func(path string, de fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr})
			stats.Failed++
			return nil
		}
		if opts.SkipHidden && path != root && IsHidden(path) {
			if de.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if de.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		res := d.convertFile(ctx, path, cred, opts, b)
		results = append(results, res)
		switch {
		case res.Err != nil:
			stats.Failed++
			if errors.Is(res.Err, common.ErrRateLimit) || errors.Is(res.Err, common.ErrAuthentication) {
				fatal = res.Err
				return errStop
			}
		case res.Deduplicated:
			stats.Deduplicated++
		default:
			stats.Succeeded++
		}
		return nil
	})

	d.logger.Info("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	if fatal != nil {
		return results, stats, fatal
	}
	if err != nil && !errors.Is(err, errStop) {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

// batch tracks one Convert call: outputs by content hash and output paths already taken.
type batch struct {
	root   string
	outDir string
	seen   map[string]string
	used   map[string]bool
}

// claim reserves the output path for input, suffixing " (2)", " (3)" when another input
// already maps to the same file (e.g. a.pdf and a.PDF).
func (b *batch) claim(input string) string {
	out := OutputPath(b.root, input, b.outDir)
	if b.used[out] {
		base := strings.TrimSuffix(out, ".xlsx")
		for n := 2; b.used[out]; n++ {
			out = fmt.Sprintf("%s (%d).xlsx", base, n)
		}
	}
	b.used[out] = true
	return out
}

func (d *Directory) convertFile(ctx context.Context, path string, cred *common.Credential, opts Options, b *batch) FileResult {
	res := FileResult{Path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = common.InvalidInputError(fmt.Sprintf("Cannot read %s.", path))
		return res
	}
	sum := sha256.Sum256(data)
	res.HashHex = hex.EncodeToString(sum[:])
	if first, ok := b.seen[res.HashHex]; ok {
		d.logger.Info("ingest.file.deduplicated", "path", path, "same_as", first)
		res.Deduplicated = true
		res.OutPath = first
		return res
	}
	res.OutPath = b.claim(path)

	run := opts.Run
	run.ExportName = filepath.Base(res.OutPath)
	out, err := d.pipeline.Process(ctx, entity.Document{Filename: filepath.Base(path), Data: data}, cred, run)
	if err != nil {
		d.logger.Warn("ingest.file.failed", "path", path, "kind", common.KindOf(err), "error", err)
		res.Err = err
		return res
	}
	if err := os.MkdirAll(filepath.Dir(res.OutPath), 0o755); err != nil {
		res.Err = common.FormattingError(fmt.Sprintf("Cannot create %s.", filepath.Dir(res.OutPath)), err)
		return res
	}
	if err := os.WriteFile(res.OutPath, out.Export.Bytes, 0o644); err != nil {
		res.Err = common.FormattingError(fmt.Sprintf("Cannot write %s.", res.OutPath), err)
		return res
	}
	b.seen[res.HashHex] = res.OutPath
	res.Rows = out.Export.Rows
	d.logger.Info("ingest.file.ok", "path", path, "out", res.OutPath, "rows", res.Rows)
	return res
}

// OutputPath is <name>.xlsx next to input, or under outDir at input's path relative to root.
func OutputPath(root, input, outDir string) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + ".xlsx"
	if outDir == "" {
		return filepath.Join(filepath.Dir(input), name)
	}
	rel, err := filepath.Rel(root, filepath.Dir(input))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = "."
	}
	return filepath.Join(outDir, rel, name)
}

// AllowedExt checks if a file extension is in the accepted upload set.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
