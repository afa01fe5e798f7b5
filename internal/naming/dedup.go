package naming

import (
	"fmt"
	"strings"
)

// Deduper tracks the final names assigned during one run. A base name,
// once assigned, must stay unique within the processing root; collisions
// get an incrementing counter appended before the stage suffix.
type Deduper struct {
	used map[string]struct{}
}

// NewDeduper returns an empty Deduper. Seed it with Claim for names that
// already exist on disk from earlier runs.
func NewDeduper() *Deduper {
	return &Deduper{used: make(map[string]struct{})}
}

// Claim marks a filename as taken without deduplicating it.
func (d *Deduper) Claim(name string) {
	d.used[name] = struct{}{}
}

// Unique returns filename unchanged if unused, otherwise the first
// "<base>_<n><suffix><ext>" (n starting at 2) that is free, and records
// the returned name as taken.
func (d *Deduper) Unique(filename, suffix, ext string) string {
	if _, taken := d.used[filename]; !taken {
		d.used[filename] = struct{}{}
		return filename
	}
	base := strings.TrimSuffix(filename, suffix+ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s%s", base, n, suffix, ext)
		if _, taken := d.used[candidate]; !taken {
			d.used[candidate] = struct{}{}
			return candidate
		}
	}
}
