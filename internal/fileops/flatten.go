package fileops

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/cineripr/cineripr/internal/naming"
)

// FlattenSingleSubdir collapses a redundant wrapper directory. Archives
// often extract to <target>/<ReleaseName>/<content>; when dir contains no
// files and exactly one subdirectory, that subdirectory's children are
// moved up and the wrapper is removed.
func (e *Engine) FlattenSingleSubdir(dir string) error {
	infos, err := afero.ReadDir(e.fs, dir)
	if err != nil {
		return err
	}
	var onlyDir string
	for _, info := range infos {
		if !info.IsDir() {
			return nil
		}
		if onlyDir != "" {
			return nil
		}
		onlyDir = info.Name()
	}
	if onlyDir == "" {
		return nil
	}

	wrapper := filepath.Join(dir, onlyDir)
	children, err := afero.ReadDir(e.fs, wrapper)
	if err != nil {
		return err
	}
	for _, child := range children {
		src := filepath.Join(wrapper, child.Name())
		dst := e.EnsureUniqueDestination(filepath.Join(dir, child.Name()))
		if _, err := e.SafeMove(src, dst); err != nil {
			if !child.IsDir() {
				return err
			}
			if err := e.moveTree(src, dst); err != nil {
				return err
			}
		}
	}
	return e.fs.RemoveAll(wrapper)
}

// FlattenEpisodeDirs lifts files out of per-episode subdirectories inside a
// season directory. Some releases ship every episode in its own folder;
// the season directory should hold the episode files directly.
func (e *Engine) FlattenEpisodeDirs(seasonDir string) error {
	infos, err := afero.ReadDir(e.fs, seasonDir)
	if err != nil {
		return err
	}
	for _, info := range infos {
		if !info.IsDir() {
			continue
		}
		if _, special := naming.SpecialSubdir(info.Name()); special {
			continue
		}
		if !naming.ContainsEpisodeTag(info.Name()) && !naming.ContainsTVTag(info.Name()) {
			continue
		}
		sub := filepath.Join(seasonDir, info.Name())
		if err := e.liftFiles(sub, seasonDir); err != nil {
			return err
		}
		e.RemoveEmptySubdirs(sub)
		if empty, _ := afero.IsEmpty(e.fs, sub); empty {
			_ = e.fs.Remove(sub)
		}
	}
	return nil
}

// liftFiles moves every regular file directly under src into dst. Special
// subfolders inside src are moved whole, keeping their normalized names.
func (e *Engine) liftFiles(src, dst string) error {
	infos, err := afero.ReadDir(e.fs, src)
	if err != nil {
		return err
	}
	for _, info := range infos {
		from := filepath.Join(src, info.Name())
		if info.IsDir() {
			if normalized, special := naming.SpecialSubdir(info.Name()); special {
				if err := e.moveTree(from, filepath.Join(dst, normalized)); err != nil {
					return err
				}
			}
			continue
		}
		to := e.EnsureUniqueDestination(filepath.Join(dst, info.Name()))
		if _, err := e.SafeMove(from, to); err != nil {
			return err
		}
	}
	return nil
}

// moveTree merges the tree at src into dst file by file, overwriting on
// conflict, then removes whatever is left of src.
func (e *Engine) moveTree(src, dst string) error {
	result := e.MirrorTree(src, dst)
	if len(result.Failed) > 0 {
		return result.Failed[0].Err
	}
	return e.fs.RemoveAll(src)
}

// RemoveEmptyTree removes dir if it is empty, then walks up removing empty
// parents until stopAt (exclusive) or a non-empty directory is reached.
func (e *Engine) RemoveEmptyTree(dir, stopAt string) {
	stopAt = filepath.Clean(stopAt)
	for current := filepath.Clean(dir); current != stopAt; current = filepath.Dir(current) {
		if current == "." || current == string(filepath.Separator) {
			return
		}
		empty, err := afero.IsEmpty(e.fs, current)
		if err != nil || !empty {
			return
		}
		if err := e.fs.Remove(current); err != nil {
			return
		}
	}
}

// RemoveEmptySubdirs deletes empty directories under root, deepest first.
// The root itself is kept.
func (e *Engine) RemoveEmptySubdirs(root string) {
	var dirs []string
	_ = afero.Walk(e.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	// Deepest paths first so nested empties cascade.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		if empty, err := afero.IsEmpty(e.fs, dir); err == nil && empty {
			_ = e.fs.Remove(dir)
		}
	}
}
