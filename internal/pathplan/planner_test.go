package pathplan

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cineripr/cineripr/internal/naming"
)

func newPlanner() *Planner {
	return &Planner{
		DownloadRoot:  filepath.Join("/data", "downloads"),
		ExtractedRoot: filepath.Join("/data", "extracted"),
		FinishedRoot:  filepath.Join("/data", "finished"),
	}
}

func TestExtractionTarget(t *testing.T) {
	p := newPlanner()

	t.Run("movie goes under Movies with literal release name", func(t *testing.T) {
		got := p.ExtractionTarget(filepath.Join(p.DownloadRoot, "Movie.Name.2024.GROUP"))
		assert.Equal(t, filepath.Join(p.ExtractedRoot, "Movies", "Movie.Name.2024.GROUP"), got)
	})

	t.Run("tv episode dir lands in the season folder", func(t *testing.T) {
		dir := filepath.Join(p.DownloadRoot, "TestShow.S01.GROUP", "TestShow.S01E01.GROUP")
		got := p.ExtractionTarget(dir)
		assert.Equal(t, filepath.Join(p.ExtractedRoot, "TV-Shows", "TestShow", "Season 01"), got)
	})

	t.Run("season defaults to 01 without a season marker", func(t *testing.T) {
		got := p.ExtractionTarget(filepath.Join(p.DownloadRoot, "TestShow.E05.GROUP"))
		assert.Equal(t, filepath.Join(p.ExtractedRoot, "TV-Shows", "TestShow", "Season 01"), got)
	})

	t.Run("episode only release is still tv", func(t *testing.T) {
		got := p.ExtractionTarget(filepath.Join(p.DownloadRoot, "Show.Name.E01.GROUP"))
		assert.Equal(t, filepath.Join(p.ExtractedRoot, "TV-Shows", "Show Name", "Season 01"), got)
	})

	t.Run("season two from SxxEyy tag", func(t *testing.T) {
		got := p.ExtractionTarget(filepath.Join(p.DownloadRoot, "Show.Name.S02E04.GROUP"))
		assert.Equal(t, filepath.Join(p.ExtractedRoot, "TV-Shows", "Show Name", "Season 02"), got)
	})

	t.Run("dir outside download root falls back to its own name", func(t *testing.T) {
		got := p.ExtractionTarget(filepath.Join("/elsewhere", "Movie.Name.2024.GROUP"))
		assert.Equal(t, filepath.Join(p.ExtractedRoot, "Movies", "Movie.Name.2024.GROUP"), got)
	})

	t.Run("companion subfolder extracts under the parent target", func(t *testing.T) {
		dir := filepath.Join(p.DownloadRoot, "Movie.Name.2024.GROUP", "untertitel")
		got := p.ExtractionTarget(dir)
		assert.Equal(t, filepath.Join(p.ExtractedRoot, "Movies", "Movie.Name.2024.GROUP", "Subs"), got)
	})
}

func TestFinishedTarget(t *testing.T) {
	p := newPlanner()

	t.Run("mirrors download layout verbatim", func(t *testing.T) {
		dir := filepath.Join(p.DownloadRoot, "TestShow.S01.GROUP", "TestShow.S01E01.GROUP")
		got := p.FinishedTarget(dir)
		assert.Equal(t, filepath.Join(p.FinishedRoot, "TestShow.S01.GROUP", "TestShow.S01E01.GROUP"), got)
	})

	t.Run("no category restructuring in the mirror", func(t *testing.T) {
		dir := filepath.Join(p.DownloadRoot, "Show.Name.S02E04.GROUP")
		got := p.FinishedTarget(dir)
		assert.Equal(t, filepath.Join(p.FinishedRoot, "Show.Name.S02E04.GROUP"), got)
	})

	t.Run("dir outside download root falls back to last segment", func(t *testing.T) {
		got := p.FinishedTarget(filepath.Join("/elsewhere", "Some.Release"))
		assert.Equal(t, filepath.Join(p.FinishedRoot, "Some.Release"), got)
	})
}

func TestClassification(t *testing.T) {
	p := newPlanner()
	c := p.Classification(filepath.Join(p.DownloadRoot, "Movie.Name.2024.GROUP"))
	assert.Equal(t, naming.CategoryMovie, c.Category)
	c = p.Classification(filepath.Join(p.DownloadRoot, "Show.Name.S02E04.GROUP"))
	assert.Equal(t, naming.CategoryTV, c.Category)
	assert.Equal(t, 2, c.Season)
}
