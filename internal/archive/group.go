// Package archive detects multi-volume compressed archives in a directory
// listing, groups the volumes that belong together and validates that a
// group is complete before any extraction is attempted.
package archive

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Format identifies the archive family of a group.
type Format int

const (
	FormatRAR Format = iota
	FormatRARMultipart
	FormatZIP
	FormatZIPSplit
	FormatTar
	FormatSingleFile
)

func (f Format) String() string {
	switch f {
	case FormatRAR:
		return "rar"
	case FormatRARMultipart:
		return "rar-multipart"
	case FormatZIP:
		return "zip"
	case FormatZIPSplit:
		return "zip-split"
	case FormatTar:
		return "tar"
	default:
		return "archive"
	}
}

// family is the grouping axis: volumes of the same logical archive share a
// family even when their per-file naming differs (x.rar + x.r00 + x.r01).
type family int

const (
	familyRAR family = iota
	familyZIP
	familyTar
	familyOther
)

var (
	// x.part01.rar, x.part1.zip
	partVolumeRe = regexp.MustCompile(`(?i)^(.+?)\.part(\d+)((?:\.[^.]+)+)$`)
	// x.r00, x.r01 (old-style RAR volumes)
	rVolumeRe = regexp.MustCompile(`(?i)^(.+?)\.r(\d+)$`)
	// x.zip.001, x.7z.002 (split archives)
	splitExtRe = regexp.MustCompile(`(?i)^(.+?)((?:\.[^.]+)+)\.(\d+)$`)
)

// Ordered longest-first so .tar.gz wins over .gz-style confusion.
var supportedSuffixes = []string{
	".tar.bz2", ".tar.gz", ".tar.xz",
	".tbz2", ".tgz", ".txz",
	".tar", ".zip", ".rar", ".7z",
}

const pendingSuffix = ".dctmp"

func hasArchiveSuffix(name string) bool {
	for _, suffix := range supportedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func familyOf(base string) family {
	switch {
	case strings.HasSuffix(base, ".rar"):
		return familyRAR
	case strings.HasSuffix(base, ".zip"):
		return familyZIP
	case strings.HasSuffix(base, ".tar"),
		strings.HasSuffix(base, ".tar.gz"), strings.HasSuffix(base, ".tgz"),
		strings.HasSuffix(base, ".tar.bz2"), strings.HasSuffix(base, ".tbz2"),
		strings.HasSuffix(base, ".tar.xz"), strings.HasSuffix(base, ".txz"):
		return familyTar
	default:
		return familyOther
	}
}

// IsArchiveCandidate reports whether a filename looks like an archive volume,
// including multi-part naming conventions and in-progress download files
// (.dctmp). Everything else is a companion file.
func IsArchiveCandidate(name string) bool {
	lower := strings.ToLower(filepath.Base(name))
	if strings.HasSuffix(lower, pendingSuffix) {
		return true
	}
	if hasArchiveSuffix(lower) {
		return true
	}
	if m := partVolumeRe.FindStringSubmatch(lower); m != nil {
		return hasArchiveSuffix(m[1] + m[3])
	}
	if rVolumeRe.MatchString(lower) {
		return true
	}
	if m := splitExtRe.FindStringSubmatch(lower); m != nil {
		return hasArchiveSuffix(m[1] + m[2])
	}
	return false
}

// Volume is a single archive part file. Index is the volume position for
// multi-part naming, or -1 for a standalone archive file. Pending marks a
// .dctmp file whose download has not finished.
type Volume struct {
	Path    string
	Index   int
	Pending bool
}

// Group is a set of volumes making up one logical archive, ordered by volume
// index ascending. Groups are immutable once built.
type Group struct {
	Base    string
	Format  Format
	Volumes []Volume
}

// Primary returns the volume extraction starts from.
func (g *Group) Primary() string {
	return g.Volumes[0].Path
}

// VolumeCount returns the number of part files in the group.
func (g *Group) VolumeCount() int {
	return len(g.Volumes)
}

// MultiVolume reports whether the group uses indexed multi-part naming.
func (g *Group) MultiVolume() bool {
	for _, v := range g.Volumes {
		if v.Index >= 0 {
			return true
		}
	}
	return false
}

type groupKey struct {
	base string
	fam  family
}

// volumeKey computes the shared group key and part index for one file.
// The base is the filename with all volume indicators stripped, lowercased.
func volumeKey(name string) (groupKey, Volume) {
	base := filepath.Base(name)
	lower := strings.ToLower(base)

	pending := strings.HasSuffix(lower, pendingSuffix)
	if pending {
		lower = strings.TrimSuffix(lower, pendingSuffix)
	}

	v := Volume{Path: name, Index: -1, Pending: pending}

	if m := partVolumeRe.FindStringSubmatch(lower); m != nil {
		stem := m[1] + m[3]
		if hasArchiveSuffix(stem) {
			v.Index = mustAtoi(m[2])
			return groupKey{base: stem, fam: familyOf(stem)}, v
		}
	}
	if m := rVolumeRe.FindStringSubmatch(lower); m != nil {
		stem := m[1] + ".rar"
		v.Index = mustAtoi(m[2])
		return groupKey{base: stem, fam: familyRAR}, v
	}
	if m := splitExtRe.FindStringSubmatch(lower); m != nil {
		stem := m[1] + m[2]
		if hasArchiveSuffix(stem) {
			v.Index = mustAtoi(m[3])
			return groupKey{base: stem, fam: familyOf(stem)}, v
		}
	}
	return groupKey{base: lower, fam: familyOf(lower)}, v
}

func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// SplitDirectoryEntries lists a directory and partitions its regular files
// into archive candidates and companion files, each sorted by lowercased
// name so repeated scans are deterministic.
func SplitDirectoryEntries(fsys afero.Fs, dir string) (candidates, companions []string, err error) {
	infos, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	sort.Slice(infos, func(i, j int) bool {
		return strings.ToLower(infos[i].Name()) < strings.ToLower(infos[j].Name())
	})
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		path := filepath.Join(dir, info.Name())
		if IsArchiveCandidate(info.Name()) {
			candidates = append(candidates, path)
		} else {
			companions = append(companions, path)
		}
	}
	return candidates, companions, nil
}

// BuildGroups partitions archive candidate files into groups keyed by the
// stripped base name and archive family. Two files with the same visual
// prefix but different families (x.zip vs x.rar) land in separate groups.
// The result is deterministic regardless of input order.
func BuildGroups(paths []string) []*Group {
	byKey := make(map[groupKey][]Volume)
	for _, path := range paths {
		key, vol := volumeKey(path)
		byKey[key] = append(byKey[key], vol)
	}

	groups := make([]*Group, 0, len(byKey))
	for key, volumes := range byKey {
		sort.Slice(volumes, func(i, j int) bool {
			if volumes[i].Index != volumes[j].Index {
				return volumes[i].Index < volumes[j].Index
			}
			return strings.ToLower(volumes[i].Path) < strings.ToLower(volumes[j].Path)
		})
		groups = append(groups, &Group{
			Base:    key.base,
			Format:  formatFor(key, volumes),
			Volumes: volumes,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		return strings.ToLower(filepath.Base(groups[i].Primary())) <
			strings.ToLower(filepath.Base(groups[j].Primary()))
	})
	return groups
}

func formatFor(key groupKey, volumes []Volume) Format {
	multi := false
	for _, v := range volumes {
		if v.Index >= 0 {
			multi = true
			break
		}
	}
	switch key.fam {
	case familyRAR:
		if multi {
			return FormatRARMultipart
		}
		return FormatRAR
	case familyZIP:
		if multi {
			return FormatZIPSplit
		}
		return FormatZIP
	case familyTar:
		return FormatTar
	default:
		return FormatSingleFile
	}
}

// Validate checks that a group is safe to extract. Multi-volume groups must
// form a contiguous index run starting at the convention's natural first
// index (0 or 1), with no part still downloading. A single-volume group of a
// non-multipart format is always valid.
func Validate(g *Group) (bool, string) {
	for _, v := range g.Volumes {
		if v.Pending {
			return false, fmt.Sprintf("part %s is still downloading (.dctmp)", filepath.Base(v.Path))
		}
	}

	var indices []int
	sawBase := false
	for _, v := range g.Volumes {
		if v.Index >= 0 {
			indices = append(indices, v.Index)
		} else {
			sawBase = true
		}
	}
	if len(indices) == 0 {
		return true, ""
	}

	// A lone .partNN/.rNN/.NNN volume means the rest of the set never
	// arrived (or is still downloading).
	if len(g.Volumes) == 1 && !sawBase {
		return false, fmt.Sprintf("only volume %d of a multi-part set present", indices[0])
	}

	sort.Ints(indices)
	start := indices[0]
	switch {
	case contains(indices, 0):
		start = 0
	case contains(indices, 1):
		start = 1
	}

	var missing []string
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		seen[idx] = true
	}
	for want := start; want <= indices[len(indices)-1]; want++ {
		if !seen[want] {
			missing = append(missing, strconv.Itoa(want))
		}
	}
	if len(missing) > 0 {
		return false, "missing volume " + strings.Join(missing, ", ")
	}

	// Old-style .rNN volumes require the base .rar file; modern .partNN.rar
	// sets do not.
	if g.Format == FormatRARMultipart && !sawBase && !usesPartNaming(g) {
		return false, "missing base .rar volume"
	}

	return true, ""
}

func usesPartNaming(g *Group) bool {
	for _, v := range g.Volumes {
		if strings.Contains(strings.ToLower(filepath.Base(v.Path)), ".part") {
			return true
		}
	}
	return false
}

func contains(values []int, want int) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
