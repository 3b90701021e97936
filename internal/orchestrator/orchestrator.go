// Package orchestrator drives one organizing run: discover releases under
// the download roots, extract their archive groups, carry companions, and
// mirror the processed download tree into the finished root. Releases are
// isolated from each other; one failing release never stops the run.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/cineripr/cineripr/internal/extract"
	"github.com/cineripr/cineripr/internal/fileops"
	"github.com/cineripr/cineripr/internal/pathplan"
	"github.com/cineripr/cineripr/internal/progress"
	"github.com/cineripr/cineripr/internal/slogutil"
)

// Directories nested deeper than this below a release are not scanned for
// archives. Keeps runaway extraction output from being rescanned as input.
const maxScanDepth = 4

// ReleaseStatus is the final outcome for one release directory.
type ReleaseStatus string

const (
	StatusProcessed         ReleaseStatus = "processed"
	StatusFailed            ReleaseStatus = "failed"
	StatusSkippedIncomplete ReleaseStatus = "skipped_incomplete"
	StatusNoArchives        ReleaseStatus = "no_archives"
)

// ReleaseReport describes what happened to one release. The counters are
// per archive group (and per file for Unsupported), so a release can carry
// extracted and failed groups at the same time.
type ReleaseReport struct {
	Release           string
	Root              string
	Status            ReleaseStatus
	Reason            string
	Processed         int      // groups extracted successfully
	SkippedIncomplete int      // groups left for a later run
	Unsupported       int      // non-archive files encountered
	Failures          []string // per-group extraction failures
}

// RunResult aggregates a full run across all download roots. Group counters
// sum over all releases; NoArchives counts releases.
type RunResult struct {
	RunID             string
	Reports           []ReleaseReport
	Processed         int
	Failed            int
	SkippedIncomplete int
	Unsupported       int
	NoArchives        int
	Errors            []string
}

func (r *RunResult) record(report ReleaseReport) {
	r.Reports = append(r.Reports, report)
	r.Processed += report.Processed
	r.Failed += len(report.Failures)
	r.SkippedIncomplete += report.SkippedIncomplete
	r.Unsupported += report.Unsupported
	if report.Status == StatusNoArchives {
		r.NoArchives++
	}
	for _, failure := range report.Failures {
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", report.Release, failure))
	}
	if report.Status == StatusFailed && len(report.Failures) == 0 {
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", report.Release, report.Reason))
	}
}

// Options configures an Orchestrator.
type Options struct {
	Fs            afero.Fs // nil = OS filesystem
	DownloadRoots []string
	ExtractedRoot string
	FinishedRoot  string
	Extractor     *extract.Extractor
	Policy        fileops.SubfolderPolicy
	Sink          progress.Sink // nil = no progress reporting
	Demo          bool          // log planned actions, change nothing
}

// Orchestrator processes releases sequentially. It is not safe for
// concurrent Run calls; serve mode guarantees a single active run.
type Orchestrator struct {
	fs        afero.Fs
	roots     []string
	extracted string
	finished  string
	extractor *extract.Extractor
	engine    *fileops.Engine
	policy    fileops.SubfolderPolicy
	sink      progress.Sink
	demo      bool
	log       *slog.Logger
}

// New creates an orchestrator from options.
func New(opts Options) *Orchestrator {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	sink := opts.Sink
	if sink == nil {
		sink = progress.NopSink{}
	}
	return &Orchestrator{
		fs:        fsys,
		roots:     opts.DownloadRoots,
		extracted: opts.ExtractedRoot,
		finished:  opts.FinishedRoot,
		extractor: opts.Extractor,
		engine:    fileops.NewEngine(fsys),
		policy:    opts.Policy,
		sink:      sink,
		demo:      opts.Demo,
		log:       slog.Default().With("component", "orchestrator"),
	}
}

// Run processes every release under every download root once.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	return o.RunWithID(ctx, uuid.NewString())
}

// RunWithID is Run with a caller-chosen run identifier, so external
// progress views and the run's log records agree on it.
func (o *Orchestrator) RunWithID(ctx context.Context, runID string) (*RunResult, error) {
	result := &RunResult{RunID: runID}
	ctx = slogutil.With(ctx, "run_id", result.RunID)

	o.log.InfoContext(ctx, "starting run", "roots", strings.Join(o.roots, ", "), "demo", o.demo)

	for _, root := range o.roots {
		releases, err := o.discoverReleases(root)
		if err != nil {
			o.log.ErrorContext(ctx, "cannot list download root", "root", root, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", root, err))
			continue
		}

		planner := &pathplan.Planner{
			DownloadRoot:  root,
			ExtractedRoot: o.extracted,
			FinishedRoot:  o.finished,
		}

		for _, release := range releases {
			if err := ctx.Err(); err != nil {
				o.log.WarnContext(ctx, "run canceled", "error", err)
				return result, err
			}
			report := o.processRelease(ctx, planner, root, release)
			result.record(report)
		}
	}

	o.log.InfoContext(ctx, "run finished",
		"processed", result.Processed,
		"failed", result.Failed,
		"skipped_incomplete", result.SkippedIncomplete,
		"unsupported", result.Unsupported,
		"no_archives", result.NoArchives)

	return result, nil
}

// discoverReleases returns the names of the immediate subdirectories of
// root, sorted for deterministic processing order.
func (o *Orchestrator) discoverReleases(root string) ([]string, error) {
	infos, err := afero.ReadDir(o.fs, root)
	if err != nil {
		return nil, err
	}
	var releases []string
	for _, info := range infos {
		if info.IsDir() {
			releases = append(releases, info.Name())
		}
	}
	sort.Slice(releases, func(i, j int) bool {
		return strings.ToLower(releases[i]) < strings.ToLower(releases[j])
	})
	return releases, nil
}
