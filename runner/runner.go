// Package runner drives the per-file pipeline over many files. Each file is an
// independent job with its own buffer; a failure on one file never affects its
// siblings, and per-file outcomes are collected into reports rather than
// aggregated into a single abort.
package runner

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Report is the outcome of one file's pipeline run.
type Report struct {
	ID     uuid.UUID
	Input  string
	Output string
	Err    error
}

// Runner processes files through an arbitrary per-file transform.
type Runner struct {
	// Process consumes the file's bytes and returns the bytes to write.
	Process func(buf []byte) ([]byte, error)
	// NumThreads bounds the worker pool, 0 = one per CPU.
	NumThreads int
	// Recursive descends into subdirectories when enumerating.
	Recursive bool
	// Silent suppresses per-file progress logging.
	Silent bool
	// RenameExt rewrites the output extension (e.g. ".lua") when the input
	// carries the bytecode extension.
	RenameExt string
	Logger    *slog.Logger
}

const bytecodeExt = ".l64"

// ListFiles enumerates bytecode files under root. Schema stubs are not real
// scripts and are excluded by name.
func ListFiles(root string, recursive bool) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if filepath.Ext(name) == bytecodeExt && !strings.Contains(name, "XMLSchema") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list files under %s", root)
	}

	return files, nil
}

// RunFile processes a single file and writes the result to output.
func (r *Runner) RunFile(input, output string) Report {
	report := Report{ID: uuid.New(), Input: input, Output: r.outputPath(output)}

	buf, err := os.ReadFile(input)
	if err != nil {
		report.Err = errors.Wrap(err, input)
		return report
	}

	result, err := r.Process(buf)
	if err != nil {
		report.Err = errors.Wrap(err, input)
		return report
	}

	if err := writeFile(report.Output, result); err != nil {
		report.Err = err
		return report
	}

	r.logReport(report)
	return report
}

// RunDir processes every bytecode file under inputDir in parallel, mirroring
// the directory layout under outputDir. The returned reports include the
// failed files; only enumeration itself can fail as a whole.
func (r *Runner) RunDir(inputDir, outputDir string) ([]Report, error) {
	files, err := ListFiles(inputDir, r.Recursive)
	if err != nil {
		return nil, err
	}

	limit := r.NumThreads
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	reports := make([]Report, len(files))

	var g errgroup.Group
	g.SetLimit(limit)

	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			rel, err := filepath.Rel(inputDir, file)
			if err != nil {
				reports[i] = Report{ID: uuid.New(), Input: file, Err: err}
				return nil
			}
			reports[i] = r.RunFile(file, filepath.Join(outputDir, rel))
			return nil
		})
	}

	// Per-file failures live in the reports; the group never carries an error.
	_ = g.Wait()

	return reports, nil
}

// Failed filters reports down to the ones that carry an error.
func Failed(reports []Report) []Report {
	var failed []Report
	for _, report := range reports {
		if report.Err != nil {
			failed = append(failed, report)
		}
	}
	return failed
}

func (r *Runner) outputPath(output string) string {
	if r.RenameExt != "" && filepath.Ext(output) == bytecodeExt {
		output = strings.TrimSuffix(output, bytecodeExt) + r.RenameExt
	}
	return output
}

func (r *Runner) logReport(report Report) {
	if r.Silent {
		return
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if report.Input == report.Output {
		logger.Info(report.Input, "job", report.ID.String())
		return
	}
	logger.Info(report.Input+" -> "+report.Output, "job", report.ID.String())
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}
