// Package pathplan computes destination paths for extracted content and for
// the finished mirror. Both computations are pure path arithmetic; no
// filesystem access happens here.
package pathplan

import (
	"path/filepath"
	"strings"

	"github.com/cineripr/cineripr/internal/naming"
)

// Category directory names under the extracted root. External consumers
// depend on these exact strings.
const (
	TVShowsDir = "TV-Shows"
	MoviesDir  = "Movies"
)

// Planner computes destination paths relative to the configured roots.
type Planner struct {
	DownloadRoot  string
	ExtractedRoot string
	FinishedRoot  string
}

// chain returns the directory names from the release root down to dir. When
// dir is not under the download root (symlinks, mount normalization) it falls
// back to the last path segment alone rather than failing.
func (p *Planner) chain(dir string) []string {
	rel, err := filepath.Rel(p.DownloadRoot, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return []string{filepath.Base(dir)}
	}
	return strings.Split(rel, string(filepath.Separator))
}

// ExtractionTarget computes where a directory's archives extract to:
// <extracted>/TV-Shows/<Show>/Season NN for TV content,
// <extracted>/Movies/<ReleaseName> for everything else. TV releases without
// any season marker default to Season 01; that default is part of the
// library contract, not an error.
func (p *Planner) ExtractionTarget(dir string) string {
	chain := p.chain(dir)

	// Archives inside a companion subfolder (Subs, Sample) extract into the
	// same subfolder under the parent's target, normalized name included.
	if len(chain) > 1 {
		if normalized, special := naming.SpecialSubdir(chain[len(chain)-1]); special {
			return filepath.Join(p.ExtractionTarget(filepath.Dir(dir)), normalized)
		}
	}

	c := naming.Classify(chain...)

	if c.Category == naming.CategoryMovie {
		return filepath.Join(p.ExtractedRoot, MoviesDir, chain[0])
	}

	season := 1
	if c.HasSeason {
		season = c.Season
	}
	return filepath.Join(p.ExtractedRoot, TVShowsDir, c.ShowName, naming.SeasonDirName(season))
}

// Classification exposes the category decision for a directory so callers
// can log and count without redoing path arithmetic.
func (p *Planner) Classification(dir string) naming.Classification {
	return naming.Classify(p.chain(dir)...)
}

// FinishedTarget mirrors the relative path of dir under the download root
// onto the finished root, preserving the exact source layout. Unlike
// extraction targets there is no TV/Movie restructuring here: finished is a
// verbatim 1:1 mirror of the download tree.
func (p *Planner) FinishedTarget(dir string) string {
	rel, err := filepath.Rel(p.DownloadRoot, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return filepath.Join(p.FinishedRoot, filepath.Base(dir))
	}
	return filepath.Join(p.FinishedRoot, rel)
}
