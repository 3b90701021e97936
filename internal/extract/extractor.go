// Package extract runs the external 7-Zip binary to unpack validated
// archive groups. The archiver is a black box: this package owns the
// subprocess contract (arguments, stdout parsing, timeout kill) and nothing
// about what the archives contain.
package extract

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cineripr/cineripr/internal/archive"
	apperrors "github.com/cineripr/cineripr/internal/errors"
	"github.com/cineripr/cineripr/internal/progress"
)

// DefaultStallTimeout is how long the archiver may stay silent before the
// process is killed and the group marked failed. Generous on purpose: large
// volumes on slow disks legitimately pause between output lines.
const DefaultStallTimeout = 10 * time.Minute

// Extractor invokes 7-Zip against the primary volume of an archive group.
type Extractor struct {
	Command      string
	CPUCores     int
	StallTimeout time.Duration
	log          *slog.Logger
}

// NewExtractor creates an extractor bound to a resolved archiver command.
func NewExtractor(command string, cpuCores int) *Extractor {
	if cpuCores <= 0 {
		cpuCores = 2
	}
	return &Extractor{
		Command:      command,
		CPUCores:     cpuCores,
		StallTimeout: DefaultStallTimeout,
		log:          slog.Default().With("component", "extractor"),
	}
}

// CanExtract checks the preconditions for extracting a group: a resolvable
// archiver and a complete volume set. Completeness was already validated
// upstream; re-checking here is defense in depth against callers that skip
// the grouping step.
func (e *Extractor) CanExtract(g *archive.Group) (bool, string) {
	if e.Command == "" {
		return false, "no archiver command configured"
	}
	if ok, reason := archive.Validate(g); !ok {
		return false, reason
	}
	if _, err := os.Stat(g.Primary()); err != nil {
		return false, fmt.Sprintf("primary volume unreadable: %v", err)
	}
	return true, ""
}

// Extract unpacks the group into targetDir, streaming percent updates to the
// tracker. The target directory is created if absent. On failure the target
// is left in place for the caller to decide on cleanup. A single fallback
// through a short temp path is attempted before reporting failure; there is
// no further automatic retry.
func (e *Extractor) Extract(ctx context.Context, g *archive.Group, targetDir string, tracker *progress.Tracker) ([]string, error) {
	if err := os.MkdirAll(targetDir, 0o777); err != nil {
		return nil, apperrors.Wrap(apperrors.KindExtractionFailure, "creating extraction target", err)
	}

	before, err := topLevelNames(targetDir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindExtractionFailure, "reading extraction target", err)
	}

	primaryErr := e.run(ctx, g.Primary(), targetDir, tracker)
	if primaryErr != nil {
		// Environment-specific failures (path length, unwritable target)
		// sometimes succeed from a short temp path. Bounded to one retry.
		e.log.Warn("extraction failed, retrying via temp directory",
			"archive", filepath.Base(g.Primary()),
			"error", primaryErr)
		if tmpErr := e.runViaTempDir(ctx, g.Primary(), targetDir, tracker); tmpErr != nil {
			return nil, primaryErr
		}
	}

	after, err := topLevelNames(targetDir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindExtractionFailure, "reading extraction target", err)
	}
	var produced []string
	for name := range after {
		if !before[name] {
			produced = append(produced, name)
		}
	}
	sort.Strings(produced)
	return produced, nil
}

// run starts the archiver and consumes its stdout line by line. A watchdog
// kills the process when output stalls for longer than StallTimeout.
func (e *Extractor) run(ctx context.Context, primary, targetDir string, tracker *progress.Tracker) error {
	args := []string{
		"x", // extract with full paths
		primary,
		"-o" + targetDir,
		"-y",
		fmt.Sprintf("-mmt%d", e.CPUCores),
		"-bsp1", // progress to stdout
		"-bso1",
		"-bb1",
		"-x!*.sfv",
	}

	cmd := exec.CommandContext(ctx, e.Command, args...)
	// 7-Zip splits messages between stdout and stderr; merge them into one
	// stream so the watchdog and the error tail see everything.
	pr, pw, err := os.Pipe()
	if err != nil {
		return apperrors.Wrap(apperrors.KindExtractionFailure, "attaching to archiver output", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return apperrors.Wrap(apperrors.KindExtractionFailure, "starting archiver", err)
	}
	pw.Close()
	defer pr.Close()

	var stalled atomic.Bool
	watchdog := time.AfterFunc(e.StallTimeout, func() {
		stalled.Store(true)
		_ = cmd.Process.Kill()
	})
	defer watchdog.Stop()

	var tail []string
	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		watchdog.Reset(e.StallTimeout)
		line := scanner.Text()
		if percent, ok := ParseProgressLine(line); ok {
			if tracker != nil {
				tracker.Update(percent)
			}
			continue
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			tail = append(tail, trimmed)
			if len(tail) > 20 {
				tail = tail[1:]
			}
		}
	}

	waitErr := cmd.Wait()
	if stalled.Load() {
		return apperrors.Newf(apperrors.KindExtractionFailure,
			"archiver produced no output for %s, killed", e.StallTimeout)
	}
	if waitErr != nil {
		detail := strings.Join(tail, "; ")
		if detail != "" {
			return apperrors.Newf(apperrors.KindExtractionFailure,
				"archiver failed: %v (%s)", waitErr, detail)
		}
		return apperrors.Wrap(apperrors.KindExtractionFailure, "archiver failed", waitErr)
	}
	return nil
}

// runViaTempDir extracts into a fresh short temp path and moves the result
// into targetDir.
func (e *Extractor) runViaTempDir(ctx context.Context, primary, targetDir string, tracker *progress.Tracker) error {
	tmpDir, err := os.MkdirTemp("", "cineripr-")
	if err != nil {
		return apperrors.Wrap(apperrors.KindExtractionFailure, "creating temp directory", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := e.run(ctx, primary, tmpDir, tracker); err != nil {
		return err
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return apperrors.Wrap(apperrors.KindExtractionFailure, "reading temp directory", err)
	}
	for _, entry := range entries {
		src := filepath.Join(tmpDir, entry.Name())
		dst := filepath.Join(targetDir, entry.Name())
		if err := moveEntry(src, dst); err != nil {
			return apperrors.Wrap(apperrors.KindExtractionFailure, "moving extracted content", err)
		}
	}
	return nil
}

// moveEntry renames src to dst, falling back to a copy for cross-device
// moves out of the temp filesystem.
func moveEntry(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		if err := os.MkdirAll(dst, 0o777); err != nil {
			return err
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := moveEntry(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
				return err
			}
		}
		return os.Remove(src)
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func topLevelNames(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(entries))
	for _, entry := range entries {
		names[entry.Name()] = true
	}
	return names, nil
}
