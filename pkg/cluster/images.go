package cluster

import (
	"strings"

	"github.com/ryanuber/go-glob"
)

// Includer decides, by its canonical image reference, whether a
// service is a candidate for automatic updates.
type Includer interface {
	IsIncluded(ref string) bool
}

type includeAll struct{}

func (includeAll) IsIncluded(string) bool { return true }
func (includeAll) String() string         { return "<all>" }

// AlwaysInclude lets every image through.
var AlwaysInclude Includer = includeAll{}

// ImageGlobs includes images by glob patterns over their references.
// An exclusion always wins; if there are no Include patterns, anything
// not excluded is included.
type ImageGlobs struct {
	Include []string
	Exclude []string
}

// NewIncluder gives AlwaysInclude when there are no patterns at all,
// and an ImageGlobs otherwise. Empty patterns, as result from e.g.,
// `--include-image=`, are dropped.
func NewIncluder(include, exclude []string) Includer {
	include, exclude = nonEmpty(include), nonEmpty(exclude)
	if len(include) == 0 && len(exclude) == 0 {
		return AlwaysInclude
	}
	return ImageGlobs{Include: include, Exclude: exclude}
}

func (g ImageGlobs) IsIncluded(ref string) bool {
	if matchesAny(g.Exclude, ref) {
		return false
	}
	return len(g.Include) == 0 || matchesAny(g.Include, ref)
}

func (g ImageGlobs) String() string {
	var parts []string
	if len(g.Include) > 0 {
		parts = append(parts, "include="+strings.Join(g.Include, ","))
	}
	if len(g.Exclude) > 0 {
		parts = append(parts, "exclude="+strings.Join(g.Exclude, ","))
	}
	return strings.Join(parts, " ")
}

func matchesAny(patterns []string, ref string) bool {
	for _, p := range patterns {
		if glob.Glob(p, ref) {
			return true
		}
	}
	return false
}

func nonEmpty(patterns []string) []string {
	var res []string
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}
