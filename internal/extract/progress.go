package extract

import "regexp"

// The archiver's stdout format is isolated here: the orchestration logic
// only ever sees a percentage, never raw 7-Zip output.

var percentRe = regexp.MustCompile(`(\d{1,3})%`)

// ParseProgressLine extracts a percent-complete token from one line of
// archiver output. Returns false when the line carries no parseable
// progress, which callers must tolerate: some archiver builds emit no
// progress at all and only the exit code signals completion.
func ParseProgressLine(line string) (int, bool) {
	m := percentRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	percent := 0
	for _, c := range m[1] {
		percent = percent*10 + int(c-'0')
	}
	if percent > 100 {
		percent = 100
	}
	return percent, true
}
