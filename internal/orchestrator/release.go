package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/cineripr/cineripr/internal/archive"
	apperrors "github.com/cineripr/cineripr/internal/errors"
	"github.com/cineripr/cineripr/internal/naming"
	"github.com/cineripr/cineripr/internal/pathplan"
	"github.com/cineripr/cineripr/internal/progress"
	"github.com/cineripr/cineripr/internal/slogutil"
)

// releaseContext is one directory inside a release that directly contains
// archive candidate files.
type releaseContext struct {
	dir        string
	depth      int
	candidates []string
}

// plannedGroup binds one validated archive group to its source directory
// and extraction target. The group from the release directory itself is the
// main one; its failure fails the whole release.
type plannedGroup struct {
	sourceDir string
	target    string
	group     *archive.Group
	main      bool
}

// processRelease handles one release directory end to end. Failures are
// confined: a nested group's failure skips that group only, and any failure
// in this release never stops the caller's loop over other releases.
func (o *Orchestrator) processRelease(ctx context.Context, planner *pathplan.Planner, root, release string) ReleaseReport {
	releaseDir := filepath.Join(root, release)
	ctx = slogutil.With(ctx, "release", release)
	report := ReleaseReport{Release: release, Root: root}

	contexts, unsupported, err := o.scanRelease(releaseDir)
	if err != nil {
		report.Status = StatusFailed
		report.Reason = err.Error()
		o.log.ErrorContext(ctx, "cannot scan release", "error", err)
		return report
	}
	report.Unsupported = unsupported

	// Validation pass. An incomplete group is skipped on its own; complete
	// sibling groups still extract this run.
	var planned []plannedGroup
	var skipReason string
	for _, rc := range contexts {
		for _, g := range archive.BuildGroups(rc.candidates) {
			if ok, reason := archive.Validate(g); !ok {
				skipErr := apperrors.Newf(apperrors.KindIncompleteArchive, "%s: %s", g.Base, reason)
				o.log.InfoContext(ctx, "archive group not ready, leaving in place",
					"group", g.Base,
					"error", skipErr,
					"error_kind", apperrors.KindOf(skipErr).String())
				report.SkippedIncomplete++
				if skipReason == "" {
					skipReason = reason
				}
				continue
			}
			planned = append(planned, plannedGroup{
				sourceDir: rc.dir,
				target:    planner.ExtractionTarget(rc.dir),
				group:     g,
				main:      rc.dir == releaseDir,
			})
		}
	}

	if len(planned) == 0 && report.SkippedIncomplete == 0 {
		report.Status = StatusNoArchives
		report.Reason = "no archive groups found"
		o.log.InfoContext(ctx, "no archives in release, leaving in place")
		return report
	}

	classification := planner.Classification(releaseDir)
	o.log.InfoContext(ctx, "processing release",
		"category", categoryName(classification.Category),
		"groups", len(planned),
		"skipped", report.SkippedIncomplete)

	if o.demo {
		return o.reportDemo(ctx, planner, releaseDir, planned, report)
	}

	succeeded, failures, mainFailed := o.extractAll(ctx, release, planned)
	report.Processed = len(succeeded)
	report.Failures = failures

	if mainFailed {
		report.Status = StatusFailed
		report.Reason = failures[len(failures)-1]
		return report
	}

	o.postProcess(ctx, succeeded, classification)

	// The finished mirror moves the whole download tree, so it must wait
	// until no group is still incomplete: mirroring now would carry a
	// half-downloaded sibling away. The extracted output stays; the next
	// run converges on it.
	if report.SkippedIncomplete > 0 {
		report.Status = StatusSkippedIncomplete
		report.Reason = skipReason
		o.log.InfoContext(ctx, "release partially ready, mirror deferred",
			"extracted", len(succeeded),
			"skipped", report.SkippedIncomplete)
		return report
	}

	if len(succeeded) == 0 {
		report.Status = StatusFailed
		report.Reason = failures[0]
		return report
	}

	if reason, ok := o.mirrorToFinished(ctx, planner, releaseDir); !ok {
		report.Status = StatusFailed
		report.Reason = reason
		return report
	}

	report.Status = StatusProcessed
	if len(failures) > 0 {
		report.Reason = fmt.Sprintf("%d group(s) failed", len(failures))
	}
	o.log.InfoContext(ctx, "release done", "extracted", len(succeeded), "failed", len(failures))
	return report
}

// scanRelease finds every directory under releaseDir (inclusive, bounded
// depth) that directly contains archive candidates, plus the count of
// non-archive files seen along the way. Deeper directories come first so
// nested episode content is handled before the release's own archives.
func (o *Orchestrator) scanRelease(releaseDir string) ([]releaseContext, int, error) {
	var found []releaseContext
	unsupported := 0

	err := afero.Walk(o.fs, releaseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		depth := pathDepth(releaseDir, path)
		if depth > maxScanDepth {
			return filepath.SkipDir
		}
		candidates, companions, listErr := archive.SplitDirectoryEntries(o.fs, path)
		if listErr != nil {
			return listErr
		}
		unsupported += len(companions)
		if len(candidates) > 0 {
			found = append(found, releaseContext{dir: path, depth: depth, candidates: candidates})
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].depth != found[j].depth {
			return found[i].depth > found[j].depth
		}
		return strings.ToLower(found[i].dir) < strings.ToLower(found[j].dir)
	})
	return found, unsupported, nil
}

func pathDepth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// extractAll runs every planned group through the extractor. A nested
// group's failure cleans up only that group's freshly created target and
// moves on; a main-group failure additionally sweeps the release's other
// targets and aborts.
func (o *Orchestrator) extractAll(ctx context.Context, release string, planned []plannedGroup) (succeeded []plannedGroup, failures []string, mainFailed bool) {
	// Targets another group of this release already extracted into, or that
	// existed before its extraction started. Never removed on failure.
	keepTarget := make(map[string]bool)
	// Targets first created by this run, eligible for the main-failure sweep.
	created := make(map[string]bool)

	for i, pg := range planned {
		tracker := progress.NewTracker(o.sink, release, i+1, len(planned))

		preExisting, _ := afero.DirExists(o.fs, pg.target)

		ok, reason := o.extractor.CanExtract(pg.group)
		var err error
		if ok {
			_, err = o.extractor.Extract(ctx, pg.group, pg.target, tracker)
			if err != nil {
				reason = err.Error()
			}
		}

		if !ok || err != nil {
			tracker.Done(progress.StatusFailed)
			failures = append(failures, fmt.Sprintf("%s: %s", pg.group.Base, reason))
			o.log.ErrorContext(ctx, "extraction failed",
				"group", pg.group.Base,
				"target", pg.target,
				"main", pg.main,
				"reason", reason)

			if !preExisting && !keepTarget[pg.target] {
				o.removeTarget(ctx, pg.target)
			}
			if pg.main {
				o.cleanupTargets(ctx, created)
				return nil, failures, true
			}
			continue
		}

		tracker.Done(progress.StatusSuccess)
		keepTarget[pg.target] = true
		if !preExisting {
			created[pg.target] = true
		}
		succeeded = append(succeeded, pg)
		o.log.InfoContext(ctx, "group extracted", "group", pg.group.Base, "target", pg.target)
	}
	return succeeded, failures, false
}

func (o *Orchestrator) removeTarget(ctx context.Context, target string) {
	if err := o.fs.RemoveAll(target); err != nil {
		o.log.WarnContext(ctx, "could not clean up extraction target",
			"target", target, "error", err)
	}
}

// cleanupTargets removes extraction targets this run created, after a
// main-group failure, so a retry of the release starts clean. Targets that
// existed before the run (a season folder filled by earlier runs) survive.
func (o *Orchestrator) cleanupTargets(ctx context.Context, created map[string]bool) {
	for target := range created {
		o.removeTarget(ctx, target)
	}
}

// postProcess flattens wrapper and episode directories in each extraction
// target and carries companion files over. Only successfully extracted
// groups take part.
func (o *Orchestrator) postProcess(ctx context.Context, succeeded []plannedGroup, c naming.Classification) {
	type pair struct{ source, target string }
	seen := make(map[pair]bool)

	for _, pg := range succeeded {
		p := pair{source: pg.sourceDir, target: pg.target}
		if seen[p] {
			continue
		}
		seen[p] = true

		if err := o.engine.FlattenSingleSubdir(pg.target); err != nil {
			o.log.WarnContext(ctx, "could not flatten wrapper directory",
				"target", pg.target, "error", err)
		}
		if c.Category == naming.CategoryTV {
			if err := o.engine.FlattenEpisodeDirs(pg.target); err != nil {
				o.log.WarnContext(ctx, "could not flatten episode directories",
					"target", pg.target, "error", err)
			}
		}
		if err := o.engine.CopyCompanions(pg.sourceDir, pg.target, o.policy); err != nil {
			o.log.WarnContext(ctx, "could not copy companions",
				"source", pg.sourceDir, "error", err)
		}
	}
}

// mirrorToFinished moves the remaining download tree of the release into
// the finished root and sweeps the emptied source directory away.
func (o *Orchestrator) mirrorToFinished(ctx context.Context, planner *pathplan.Planner, releaseDir string) (string, bool) {
	finished := planner.FinishedTarget(releaseDir)
	result := o.engine.MirrorTree(releaseDir, finished)

	if len(result.Failed) > 0 {
		first := result.Failed[0]
		o.log.ErrorContext(ctx, "finished mirror incomplete",
			"moved", len(result.Moved),
			"failed", len(result.Failed),
			"first_error", first.Err)
		return first.Err.Error(), false
	}

	if result.UsedFallbackCopyDelete {
		o.log.InfoContext(ctx, "finished mirror used copy fallback", "moved", len(result.Moved))
	}

	o.engine.RemoveEmptySubdirs(releaseDir)
	if empty, err := afero.IsEmpty(o.fs, releaseDir); err == nil && empty {
		if err := o.fs.Remove(releaseDir); err != nil {
			o.log.WarnContext(ctx, "could not remove emptied release directory",
				"dir", releaseDir, "error", err)
		}
	}
	return "", true
}

// reportDemo logs what a real run would do without changing anything.
func (o *Orchestrator) reportDemo(ctx context.Context, planner *pathplan.Planner, releaseDir string, planned []plannedGroup, report ReleaseReport) ReleaseReport {
	for _, pg := range planned {
		o.log.InfoContext(ctx, "demo: would extract",
			"group", pg.group.Base,
			"volumes", pg.group.VolumeCount(),
			"target", pg.target)
	}
	o.log.InfoContext(ctx, "demo: would mirror to finished",
		"target", planner.FinishedTarget(releaseDir))
	report.Processed = len(planned)
	report.Status = StatusProcessed
	report.Reason = "demo"
	return report
}

func categoryName(c naming.Category) string {
	if c == naming.CategoryTV {
		return "tv"
	}
	return "movie"
}
