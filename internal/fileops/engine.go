// Package fileops moves and copies files and directory trees between the
// download, extracted and finished roots. Moves are resilient to
// cross-device links and read-only source filesystems: content reaching the
// destination counts as success even when the source cannot be removed.
package fileops

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/spf13/afero"

	"github.com/cineripr/cineripr/internal/archive"
	apperrors "github.com/cineripr/cineripr/internal/errors"
	"github.com/cineripr/cineripr/internal/naming"
)

// Fixed permissive modes applied after every successful move or copy.
// Ownership (UID/GID) is never touched: chown fails in unprivileged
// containers and is skipped entirely rather than attempted and caught.
const (
	fileMode = os.FileMode(0o666)
	dirMode  = os.FileMode(0o777)
)

// SubfolderPolicy controls which well-known companion subfolders are
// carried into the extraction target.
type SubfolderPolicy struct {
	IncludeSample bool
	IncludeSubs   bool
	IncludeOther  bool
}

// Include reports whether a normalized special-subdir name passes the policy.
func (p SubfolderPolicy) Include(normalized string) bool {
	switch normalized {
	case "Sample":
		return p.IncludeSample
	case "Subs":
		return p.IncludeSubs
	default:
		return p.IncludeOther
	}
}

// Disposition describes how a move completed.
type Disposition int

const (
	// DispositionRenamed means a plain rename succeeded.
	DispositionRenamed Disposition = iota
	// DispositionCopyDelete means the cross-device fallback copied the file
	// and removed the source.
	DispositionCopyDelete
	// DispositionCopyOnly means the content was copied but the source could
	// not be removed (read-only filesystem). Partial success with a warning.
	DispositionCopyOnly
)

// Failure records one path that could not be relocated.
type Failure struct {
	Source string
	Kind   apperrors.Kind
	Err    error
}

// Result is the outcome of one relocation batch. Every attempted path
// appears in exactly one of Moved or Failed.
type Result struct {
	Moved                  [][2]string
	Failed                 []Failure
	UsedFallbackCopyDelete bool
}

func (r *Result) recordMove(src, dst string, d Disposition) {
	r.Moved = append(r.Moved, [2]string{src, dst})
	if d != DispositionRenamed {
		r.UsedFallbackCopyDelete = true
	}
}

func (r *Result) recordFailure(src string, kind apperrors.Kind, err error) {
	r.Failed = append(r.Failed, Failure{Source: src, Kind: kind, Err: err})
}

// Engine performs relocation against an afero filesystem. Production code
// uses the OS filesystem; tests inject in-memory or fault-injecting ones.
type Engine struct {
	fs  afero.Fs
	log *slog.Logger

	renameAttempts uint
	renameDelay    time.Duration
}

// NewEngine creates an engine over the given filesystem.
func NewEngine(fsys afero.Fs) *Engine {
	return &Engine{
		fs:             fsys,
		log:            slog.Default().With("component", "relocation"),
		renameAttempts: 3,
		renameDelay:    100 * time.Millisecond,
	}
}

// Fs exposes the underlying filesystem for callers that share it.
func (e *Engine) Fs() afero.Fs {
	return e.fs
}

// EnsureUniqueDestination resolves a destination collision. The policy is
// overwrite: repeated processing of the same release must converge to one
// final file, never accumulate numbered duplicates.
func (e *Engine) EnsureUniqueDestination(path string) string {
	return path
}

// SafeMove relocates one file. Strategy order: rename (with a short retry
// for flaky network mounts), then copy plus delete for cross-device moves,
// then copy-only when the source filesystem refuses the delete. Only when
// the copy itself fails is the move a hard failure.
func (e *Engine) SafeMove(src, dst string) (Disposition, error) {
	if err := e.fs.MkdirAll(filepath.Dir(dst), dirMode); err != nil {
		return 0, apperrors.Wrap(apperrors.KindRelocationFailure, "creating destination directory", err)
	}

	renameErr := retry.Do(
		func() error { return e.renameOverwrite(src, dst) },
		retry.Attempts(e.renameAttempts),
		retry.Delay(e.renameDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !isCrossDevice(err) }),
	)
	if renameErr == nil {
		mode := fileMode
		if info, err := e.fs.Stat(dst); err == nil && info.IsDir() {
			mode = dirMode
		}
		e.chmod(dst, mode)
		return DispositionRenamed, nil
	}

	if err := e.copyFile(src, dst); err != nil {
		return 0, apperrors.Wrap(apperrors.KindRelocationFailure,
			fmt.Sprintf("move and copy fallback both failed for %s", filepath.Base(src)), err)
	}
	e.chmod(dst, fileMode)

	if err := e.fs.Remove(src); err != nil {
		e.log.Warn("source not removed after copy, leaving in place",
			"source", src,
			"error", err,
			"error_kind", apperrors.KindReadOnlyFilesystem.String())
		return DispositionCopyOnly, nil
	}
	return DispositionCopyDelete, nil
}

// renameOverwrite renames src over dst, removing an existing destination
// file first so reprocessing converges instead of failing.
func (e *Engine) renameOverwrite(src, dst string) error {
	if info, err := e.fs.Stat(dst); err == nil && !info.IsDir() {
		if err := e.fs.Remove(dst); err != nil {
			return err
		}
	}
	return e.fs.Rename(src, dst)
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		err = linkErr.Err
	}
	return errors.Is(err, syscall.EXDEV)
}

func (e *Engine) copyFile(src, dst string) error {
	in, err := e.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := e.fs.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (e *Engine) chmod(path string, mode os.FileMode) {
	// Best effort; FAT-style filesystems reject chmod and that is fine.
	_ = e.fs.Chmod(path, mode)
}

// MoveFiles moves a flat list of files into destDir, keeping their names.
// Failures are recorded per file and do not stop the batch.
func (e *Engine) MoveFiles(sources []string, destDir string) *Result {
	result := &Result{}
	for _, src := range sources {
		dst := e.EnsureUniqueDestination(filepath.Join(destDir, filepath.Base(src)))
		disposition, err := e.SafeMove(src, dst)
		if err != nil {
			e.log.Error("failed to relocate file",
				"source", src,
				"destination", dst,
				"error", err,
				"error_kind", apperrors.KindOf(err).String())
			result.recordFailure(src, apperrors.KindOf(err), err)
			continue
		}
		result.recordMove(src, dst, disposition)
	}
	return result
}

// MirrorTree moves every file under srcDir to the same relative position
// under dstDir, creating directories as needed. Used for the finished
// mirror, which preserves the download layout verbatim.
func (e *Engine) MirrorTree(srcDir, dstDir string) *Result {
	result := &Result{}
	err := afero.Walk(e.fs, srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(srcDir, path)
		if relErr != nil {
			result.recordFailure(path, apperrors.KindPathResolutionFailure, relErr)
			return nil
		}
		dst := e.EnsureUniqueDestination(filepath.Join(dstDir, rel))
		disposition, moveErr := e.SafeMove(path, dst)
		if moveErr != nil {
			e.log.Error("failed to mirror file",
				"source", path,
				"destination", dst,
				"error", moveErr,
				"error_kind", apperrors.KindOf(moveErr).String())
			result.recordFailure(path, apperrors.KindOf(moveErr), moveErr)
			return nil
		}
		result.recordMove(path, dst, disposition)
		return nil
	})
	if err != nil {
		e.log.Error("mirror walk aborted", "source", srcDir, "error", err)
	}
	return result
}

// CopyCompanions copies every non-archive file in srcDir into dstDir,
// overwriting existing files. Well-known companion subfolders (Subs,
// Sample, Sonstige) are carried over under their normalized names subject
// to the inclusion policy; .sfv checksums are never carried.
func (e *Engine) CopyCompanions(srcDir, dstDir string, policy SubfolderPolicy) error {
	infos, err := afero.ReadDir(e.fs, srcDir)
	if err != nil {
		return fmt.Errorf("listing %s: %w", srcDir, err)
	}
	if err := e.fs.MkdirAll(dstDir, dirMode); err != nil {
		return fmt.Errorf("creating %s: %w", dstDir, err)
	}

	for _, info := range infos {
		src := filepath.Join(srcDir, info.Name())
		if info.IsDir() {
			normalized, special := naming.SpecialSubdir(info.Name())
			if !special {
				if !policy.IncludeOther {
					continue
				}
				normalized = info.Name()
			}
			if !policy.Include(normalized) {
				continue
			}
			if err := e.copyTree(src, filepath.Join(dstDir, normalized)); err != nil {
				e.log.Error("failed to copy companion subfolder", "source", src, "error", err)
			}
			continue
		}
		if archive.IsArchiveCandidate(info.Name()) {
			continue
		}
		if filepath.Ext(info.Name()) == ".sfv" {
			continue
		}
		dst := e.EnsureUniqueDestination(filepath.Join(dstDir, info.Name()))
		if err := e.copyFile(src, dst); err != nil {
			e.log.Error("failed to copy companion file", "source", src, "error", err)
			continue
		}
		e.chmod(dst, fileMode)
	}
	return nil
}

func (e *Engine) copyTree(srcDir, dstDir string) error {
	return afero.Walk(e.fs, srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(dstDir, rel)
		if info.IsDir() {
			return e.fs.MkdirAll(dst, dirMode)
		}
		if archive.IsArchiveCandidate(info.Name()) || filepath.Ext(info.Name()) == ".sfv" {
			return nil
		}
		if err := e.copyFile(path, dst); err != nil {
			return err
		}
		e.chmod(dst, fileMode)
		return nil
	})
}
