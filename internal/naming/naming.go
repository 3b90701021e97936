// Package naming analyzes release and directory names: season/episode tag
// parsing, show-name normalization and TV-versus-movie classification. All
// functions are pure; the same input always yields the same result.
package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Category is the top-level library classification of a release.
type Category int

const (
	CategoryMovie Category = iota
	CategoryTV
)

func (c Category) String() string {
	if c == CategoryTV {
		return "tv_show"
	}
	return "movie"
}

// TagKind identifies which naming convention matched within a name.
type TagKind int

const (
	// TagNone means no season or episode marker was found.
	TagNone TagKind = iota
	// TagSeasonOnly matches a bare season marker such as "S03".
	TagSeasonOnly
	// TagSeasonEpisode matches a combined marker such as "S03E07".
	TagSeasonEpisode
	// TagEpisodeOnly matches a bare episode marker such as "E07" or "E107".
	TagEpisodeOnly
)

// Tag is one recognized season/episode marker with its position in the
// original string. Position ordering is what makes tie-break rules auditable:
// the first tag in the string wins.
type Tag struct {
	Kind    TagKind
	Season  int
	Episode int
	Index   int // byte offset of the marker within the name
}

var (
	seasonTagRe   = regexp.MustCompile(`(?i)s(\d{1,2})(e\d{2,3})?`)
	episodeTagRe  = regexp.MustCompile(`(?i)e(\d{2,3})`)
	tvTagRe       = regexp.MustCompile(`(?i)s\d{2}(e\d{2})?`)
	seasonDirRe   = regexp.MustCompile(`(?i)^season\s*(\d+)$`)
	staffelDirRe  = regexp.MustCompile(`(?i)^staffel\s*(\d+)$`)
	seasonShortRe = regexp.MustCompile(`(?i)^s(\d{1,2})$`)
)

// letterAt reports whether the byte at pos (if any) is a letter, which
// disqualifies a marker boundary. Digits are allowed neighbors so markers in
// dotted release names ("Show.S01E01.1080p") still match.
func letterAt(name string, pos int) bool {
	if pos < 0 || pos >= len(name) {
		return false
	}
	b := name[pos]
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// ParseTags scans a name and returns every recognized marker in order of
// appearance. Markers embedded in words ("GODS01") are rejected by requiring
// a non-letter on both sides.
func ParseTags(name string) []Tag {
	var tags []Tag
	covered := make([][2]int, 0, 4)

	for _, m := range seasonTagRe.FindAllStringSubmatchIndex(name, -1) {
		start, end := m[0], m[1]
		if letterAt(name, start-1) || letterAt(name, end) {
			continue
		}
		season, _ := strconv.Atoi(name[m[2]:m[3]])
		tag := Tag{Kind: TagSeasonOnly, Season: season, Index: start}
		if m[4] >= 0 {
			tag.Kind = TagSeasonEpisode
			episode, _ := strconv.Atoi(name[m[4]+1 : m[5]])
			tag.Episode = episode
		}
		tags = append(tags, tag)
		covered = append(covered, [2]int{start, end})
	}

	for _, m := range episodeTagRe.FindAllStringSubmatchIndex(name, -1) {
		start, end := m[0], m[1]
		if letterAt(name, start-1) || letterAt(name, end) {
			continue
		}
		if insideAny(start, covered) {
			continue
		}
		episode, _ := strconv.Atoi(name[m[2]:m[3]])
		tags = append(tags, Tag{Kind: TagEpisodeOnly, Episode: episode, Index: start})
	}

	sortTagsByIndex(tags)
	return tags
}

func insideAny(pos int, ranges [][2]int) bool {
	for _, r := range ranges {
		if pos >= r[0] && pos < r[1] {
			return true
		}
	}
	return false
}

func sortTagsByIndex(tags []Tag) {
	for i := 1; i < len(tags); i++ {
		for j := i; j > 0 && tags[j].Index < tags[j-1].Index; j-- {
			tags[j], tags[j-1] = tags[j-1], tags[j]
		}
	}
}

// FirstTag returns the first marker in the name, or a TagNone tag.
func FirstTag(name string) Tag {
	tags := ParseTags(name)
	if len(tags) == 0 {
		return Tag{Kind: TagNone}
	}
	return tags[0]
}

// ContainsTVTag reports whether the name contains an SxxEyy or bare Sxx
// marker anywhere.
func ContainsTVTag(name string) bool {
	return tvTagRe.MatchString(name)
}

// ContainsEpisodeTag reports whether the name carries any episode or season
// marker, including episode-only markers such as "E05".
func ContainsEpisodeTag(name string) bool {
	return len(ParseTags(name)) > 0
}

// SeasonFromTag extracts the season number from the first season-bearing
// marker in the name. A season marker appearing before any episode-only
// marker wins; episode-only markers never produce a season.
func SeasonFromTag(name string) (int, bool) {
	for _, tag := range ParseTags(name) {
		switch tag.Kind {
		case TagSeasonOnly, TagSeasonEpisode:
			return tag.Season, true
		}
	}
	return 0, false
}

// IsSeasonDirectory reports whether a directory name is a season folder:
// "Season 01", "Staffel 1" (case-insensitive) or the short "S03" variant.
func IsSeasonDirectory(name string) bool {
	trimmed := strings.TrimSpace(name)
	return seasonDirRe.MatchString(trimmed) ||
		staffelDirRe.MatchString(trimmed) ||
		seasonShortRe.MatchString(trimmed)
}

// SeasonDirNumber extracts the season number from a season folder name.
func SeasonDirNumber(name string) (int, bool) {
	trimmed := strings.TrimSpace(name)
	for _, re := range []*regexp.Regexp{seasonDirRe, staffelDirRe, seasonShortRe} {
		if m := re.FindStringSubmatch(trimmed); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// SeasonDirName formats a season number as a canonical season folder name,
// zero-padded to two digits.
func SeasonDirName(season int) string {
	return fmt.Sprintf("Season %02d", season)
}

var separatorRunRe = regexp.MustCompile(`[._]+|\s+`)

// NormalizeShowName derives a display show name from a raw release segment:
// everything from the first season/episode marker on is stripped, dots and
// underscores become single spaces, and whitespace is collapsed. Casing of
// the remaining tokens is preserved. Returns "" when nothing remains before
// the marker.
func NormalizeShowName(raw string) string {
	cut := raw
	if tag := FirstTag(raw); tag.Kind != TagNone {
		cut = raw[:tag.Index]
	}
	cut = separatorRunRe.ReplaceAllString(cut, " ")
	return strings.Trim(cut, " -")
}

// SpecialSubdir maps well-known companion subfolder names to their
// canonical spelling: sub/subs/untertitel -> "Subs", sample -> "Sample",
// sonstige/other/misc -> "Sonstige". The boolean is false for any other name.
func SpecialSubdir(name string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sub", "subs", "untertitel":
		return "Subs", true
	case "sample":
		return "Sample", true
	case "sonstige", "other", "misc":
		return "Sonstige", true
	default:
		return "", false
	}
}

// Classification is the result of categorizing a directory chain. For TV
// shows ShowName is always set; HasSeason distinguishes "no season marker
// found" from season zero. For movies only ReleaseName is set.
type Classification struct {
	Category    Category
	ShowName    string
	Season      int
	HasSeason   bool
	ReleaseName string
}

// Classify categorizes a chain of directory names running from the release
// root down to the directory being processed. The release is TV when any
// segment carries a TV marker or is a season folder; otherwise it is a movie
// identified by the release root's literal name.
func Classify(chain ...string) Classification {
	if len(chain) == 0 {
		return Classification{Category: CategoryMovie}
	}
	release := chain[0]

	tv := false
	for _, segment := range chain {
		if ContainsTVTag(segment) || ContainsEpisodeTag(segment) || IsSeasonDirectory(segment) {
			tv = true
			break
		}
	}
	if !tv {
		return Classification{Category: CategoryMovie, ReleaseName: release}
	}

	c := Classification{Category: CategoryTV}
	for _, segment := range chain {
		if season, ok := SeasonFromTag(segment); ok {
			c.Season = season
			c.HasSeason = true
			break
		}
		if season, ok := SeasonDirNumber(segment); ok {
			c.Season = season
			c.HasSeason = true
			break
		}
	}

	// The show name comes from the first segment that carries a marker;
	// season folders name the season, not the show.
	for _, segment := range chain {
		if IsSeasonDirectory(segment) {
			continue
		}
		if len(ParseTags(segment)) == 0 {
			continue
		}
		c.ShowName = NormalizeShowName(segment)
		break
	}
	if c.ShowName == "" {
		// No recognizable separator before the marker: fall back to the
		// release name verbatim.
		c.ShowName = release
		c.ReleaseName = release
	}
	return c
}
