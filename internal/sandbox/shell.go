package sandbox

import (
	"path"
	"regexp"
	"strings"
)

var ansiRegex = regexp.MustCompile("[\u001b\u009b][[\\]()#;?]*(?:(?:(?:[a-zA-Z\\d]*(?:;[a-zA-Z\\d]*)*)?\u0007)|(?:(?:\\d{1,4}(?:;\\d{0,4})*)?[\\dA-PRZcf-ntqry=><~]))")

// shellQuote wraps s in single quotes for sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// cleanOutput removes terminal escapes and CRs that tools emit on a TTY.
func cleanOutput(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return ansiRegex.ReplaceAllString(s, "")
}

// joinPath resolves a relative sandbox path against workdir. Absolute paths
// are kept as they are.
func joinPath(workdir, p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(workdir, p)
}

// relPath is the inverse of joinPath for paths below workdir.
func relPath(workdir, p string) string {
	rel := strings.TrimPrefix(p, strings.TrimSuffix(workdir, "/")+"/")
	if rel == "" {
		return "."
	}
	return rel
}
