package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cineripr/cineripr/internal/extract"
	"github.com/cineripr/cineripr/internal/fileops"
	"github.com/cineripr/cineripr/internal/progress"
)

// fakeArchiver mimics the 7z CLI: it reads the -o<dir> flag, prints
// percent lines, and drops one media file named after the primary volume.
// Primaries with "bad" in the name fail with a nonzero exit.
const fakeArchiver = `#!/bin/sh
primary="$2"
out=""
for a in "$@"; do
  case "$a" in
    -o*) out="${a#-o}" ;;
  esac
done
case "$primary" in
  *bad*) echo "ERROR: cannot open archive"; exit 2 ;;
esac
echo " 50% - extracting"
echo "100%"
mkdir -p "$out"
name=$(basename "$primary" .rar)
name=${name%.part1}
echo content > "$out/$name.mkv"
exit 0
`

type env struct {
	downloads string
	extracted string
	finished  string
	orch      *Orchestrator
}

func newEnv(t *testing.T, demo bool) *env {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake archiver is a shell script")
	}

	base := t.TempDir()
	e := &env{
		downloads: filepath.Join(base, "downloads"),
		extracted: filepath.Join(base, "extracted"),
		finished:  filepath.Join(base, "finished"),
	}
	for _, dir := range []string{e.downloads, e.extracted, e.finished} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}

	script := filepath.Join(base, "fake7z")
	require.NoError(t, os.WriteFile(script, []byte(fakeArchiver), 0o755))

	e.orch = New(Options{
		DownloadRoots: []string{e.downloads},
		ExtractedRoot: e.extracted,
		FinishedRoot:  e.finished,
		Extractor:     extract.NewExtractor(script, 2),
		Policy:        fileops.SubfolderPolicy{IncludeSubs: true},
		Demo:          demo,
	})
	return e
}

func (e *env) writeFile(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(e.downloads, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func exists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	require.True(t, os.IsNotExist(err), "unexpected stat error: %v", err)
	return false
}

func TestRunTVRelease(t *testing.T) {
	e := newEnv(t, false)
	release := "TestShow.S01.GROUP"
	episode := filepath.Join(release, "TestShow.S01E01.GROUP")
	e.writeFile(t, filepath.Join(episode, "TestShow.S01E01.GROUP.part1.rar"), "v1")
	e.writeFile(t, filepath.Join(episode, "TestShow.S01E01.GROUP.part2.rar"), "v2")
	e.writeFile(t, filepath.Join(episode, "TestShow.S01E01.GROUP.nfo"), "info")

	result, err := e.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Zero(t, result.Failed)
	assert.NotEmpty(t, result.RunID)

	season := filepath.Join(e.extracted, "TV-Shows", "TestShow", "Season 01")
	assert.True(t, exists(t, filepath.Join(season, "TestShow.S01E01.GROUP.mkv")), "episode extracted into season folder")
	assert.True(t, exists(t, filepath.Join(season, "TestShow.S01E01.GROUP.nfo")), "companion carried over")

	mirror := filepath.Join(e.finished, episode)
	assert.True(t, exists(t, filepath.Join(mirror, "TestShow.S01E01.GROUP.part1.rar")), "archives mirrored verbatim")
	assert.True(t, exists(t, filepath.Join(mirror, "TestShow.S01E01.GROUP.nfo")))

	assert.False(t, exists(t, filepath.Join(e.downloads, release)), "processed release removed from downloads")
}

func TestRunMovieRelease(t *testing.T) {
	e := newEnv(t, false)
	release := "Movie.Name.2024.1080p.GROUP"
	e.writeFile(t, filepath.Join(release, "movie.rar"), "v")
	e.writeFile(t, filepath.Join(release, "movie.sfv"), "checksums")

	result, err := e.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)

	target := filepath.Join(e.extracted, "Movies", release)
	assert.True(t, exists(t, filepath.Join(target, "movie.mkv")))
	assert.False(t, exists(t, filepath.Join(target, "movie.sfv")), "checksums never reach the library")

	assert.True(t, exists(t, filepath.Join(e.finished, release, "movie.sfv")), "mirror still keeps everything")
	assert.Equal(t, 1, result.Unsupported, "the sfv counts as a non-archive file")
}

func TestRunSkipsIncompleteRelease(t *testing.T) {
	e := newEnv(t, false)
	release := "Movie.2024.GROUP"
	e.writeFile(t, filepath.Join(release, "movie.part1.rar"), "v1")

	result, err := e.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.SkippedIncomplete)
	assert.Zero(t, result.Processed)

	assert.True(t, exists(t, filepath.Join(e.downloads, release, "movie.part1.rar")), "incomplete release untouched")
	assert.False(t, exists(t, filepath.Join(e.extracted, "Movies", release)))
	assert.False(t, exists(t, filepath.Join(e.finished, release)))
}

func TestRunSkipsPendingDownload(t *testing.T) {
	e := newEnv(t, false)
	release := "Movie.2024.GROUP"
	e.writeFile(t, filepath.Join(release, "movie.rar.dctmp"), "partial")

	result, err := e.orch.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Reports, 1)
	assert.Equal(t, StatusSkippedIncomplete, result.Reports[0].Status)
	assert.Contains(t, result.Reports[0].Reason, "dctmp")
}

func TestRunIsolatesFailingRelease(t *testing.T) {
	e := newEnv(t, false)
	e.writeFile(t, filepath.Join("Bad.Release.2024", "bad.rar"), "v")
	e.writeFile(t, filepath.Join("Good.Movie.2024", "movie.rar"), "v")

	result, err := e.orch.Run(context.Background())
	require.NoError(t, err)

	// Bad sorts before Good, so the failure happens first and must not
	// stop the rest of the run.
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Processed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Bad.Release.2024")

	assert.True(t, exists(t, filepath.Join(e.extracted, "Movies", "Good.Movie.2024", "movie.mkv")))
	assert.False(t, exists(t, filepath.Join(e.extracted, "Movies", "Bad.Release.2024")), "failed extraction target cleaned up")
	assert.True(t, exists(t, filepath.Join(e.downloads, "Bad.Release.2024", "bad.rar")), "failed release stays in downloads")
	assert.False(t, exists(t, filepath.Join(e.finished, "Bad.Release.2024")))
}

func TestRunNoArchives(t *testing.T) {
	e := newEnv(t, false)
	e.writeFile(t, filepath.Join("Just.Notes", "readme.nfo"), "n")

	result, err := e.orch.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Reports, 1)
	assert.Equal(t, StatusNoArchives, result.Reports[0].Status)
	assert.Equal(t, 1, result.Unsupported)
	assert.True(t, exists(t, filepath.Join(e.downloads, "Just.Notes", "readme.nfo")))
}

func TestRunIsolatesFailingEpisode(t *testing.T) {
	e := newEnv(t, false)
	release := "TestShow.S01.GROUP"
	e.writeFile(t, filepath.Join(release, "TestShow.S01E01.GROUP", "good.rar"), "v")
	e.writeFile(t, filepath.Join(release, "TestShow.S01E02.GROUP", "bad.rar"), "v")

	result, err := e.orch.Run(context.Background())
	require.NoError(t, err)

	// Both outcomes within the same release and the same run.
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "bad.rar")

	season := filepath.Join(e.extracted, "TV-Shows", "TestShow", "Season 01")
	assert.True(t, exists(t, filepath.Join(season, "good.mkv")), "healthy episode's output survives the sibling failure")

	assert.True(t, exists(t, filepath.Join(e.finished, release, "TestShow.S01E02.GROUP", "bad.rar")), "mirror runs when a sibling succeeded")
	assert.False(t, exists(t, filepath.Join(e.downloads, release)))

	require.Len(t, result.Reports, 1)
	assert.Equal(t, StatusProcessed, result.Reports[0].Status)
}

func TestRunMainFailureCleansRelease(t *testing.T) {
	e := newEnv(t, false)
	release := "TestShow.S01.GROUP"
	e.writeFile(t, filepath.Join(release, "bad.rar"), "v")
	e.writeFile(t, filepath.Join(release, "TestShow.S01E01.GROUP", "good.rar"), "v")

	result, err := e.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Reports, 1)
	assert.Equal(t, StatusFailed, result.Reports[0].Status)

	season := filepath.Join(e.extracted, "TV-Shows", "TestShow", "Season 01")
	assert.False(t, exists(t, season), "main failure sweeps the episode output extracted this run")
	assert.False(t, exists(t, filepath.Join(e.finished, release)))
	assert.True(t, exists(t, filepath.Join(e.downloads, release, "bad.rar")), "failed release stays for a retry")
}

func TestRunExtractsCompleteGroupsDespiteIncompleteSibling(t *testing.T) {
	e := newEnv(t, false)
	release := "Movie.Name.2024.GROUP"
	e.writeFile(t, filepath.Join(release, "movie.rar"), "v")
	e.writeFile(t, filepath.Join(release, "extras.part2.rar"), "v")

	result, err := e.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed, "the complete group still extracts")
	assert.Equal(t, 1, result.SkippedIncomplete)
	assert.Zero(t, result.Failed)

	assert.True(t, exists(t, filepath.Join(e.extracted, "Movies", release, "movie.mkv")))

	// The mirror waits until nothing is incomplete; the whole download tree
	// stays put for the next run.
	assert.False(t, exists(t, filepath.Join(e.finished, release)))
	assert.True(t, exists(t, filepath.Join(e.downloads, release, "movie.rar")))
	assert.True(t, exists(t, filepath.Join(e.downloads, release, "extras.part2.rar")))

	require.Len(t, result.Reports, 1)
	assert.Equal(t, StatusSkippedIncomplete, result.Reports[0].Status)
}

func TestRunDemoChangesNothing(t *testing.T) {
	e := newEnv(t, true)
	release := "Movie.Name.2024.GROUP"
	e.writeFile(t, filepath.Join(release, "movie.rar"), "v")

	result, err := e.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	require.Len(t, result.Reports, 1)
	assert.Equal(t, "demo", result.Reports[0].Reason)

	assert.True(t, exists(t, filepath.Join(e.downloads, release, "movie.rar")))
	assert.False(t, exists(t, filepath.Join(e.extracted, "Movies", release)))
	assert.False(t, exists(t, filepath.Join(e.finished, release)))
}

func TestRunReportsProgress(t *testing.T) {
	e := newEnv(t, false)
	board := progress.NewBoard()
	e.orch.sink = board

	e.writeFile(t, filepath.Join("Movie.One.2024", "movie.rar"), "v")
	e.writeFile(t, filepath.Join("Movie.Two.2024", "movie.rar"), "v")

	board.BeginRun("test-run")
	result, err := e.orch.Run(context.Background())
	board.EndRun()
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)

	snap := board.Current()
	require.NotNil(t, snap)
	assert.Equal(t, 2, snap.Processed)
	assert.Zero(t, snap.Failed)
}
