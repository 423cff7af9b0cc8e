package simulation

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Source files follow <name>_<YYYYMMDD>_<HHMMSS>.<ext>.
var stemPattern = regexp.MustCompile(`^(.+)_(\d{8})_(\d{6})$`)

var slugReplacer = regexp.MustCompile(`[^a-z0-9_-]+`)

const idTimeLayout = "20060102_150405"

// Identity is the stable identity derived from a source file.
type Identity struct {
	ID        string
	Name      string
	Timestamp time.Time
}

// DeriveIdentity derives the simulation id and display name for a source file.
// The timestamp comes from the file name when it follows the naming convention,
// otherwise from modTime, so the same file always yields the same id.
func DeriveIdentity(path string, modTime time.Time) Identity {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	name := stem
	ts := modTime.UTC().Truncate(time.Second)
	if m := stemPattern.FindStringSubmatch(stem); m != nil {
		if parsed, err := time.Parse(idTimeLayout, m[2]+"_"+m[3]); err == nil {
			name = m[1]
			ts = parsed
		}
	}

	return Identity{
		ID:        slug(name) + "_" + ts.Format(idTimeLayout),
		Name:      name,
		Timestamp: ts,
	}
}

func slug(s string) string {
	out := slugReplacer.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "_")
	out = strings.Trim(out, "_")
	if out == "" {
		return "simulation"
	}
	return out
}
