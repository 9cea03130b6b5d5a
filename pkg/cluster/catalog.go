package cluster

import (
	"fmt"
	"sort"
	"strings"

	fluxerr "github.com/fluxcd/seedy/pkg/errors"
)

// MultipleMatchError is returned when looking up an image that more
// than one service claims.
type MultipleMatchError struct {
	Ref        string
	ServiceIDs []string
}

func (e *MultipleMatchError) Error() string {
	return fmt.Sprintf("image %s is used by %d services (%s)", e.Ref, len(e.ServiceIDs), strings.Join(e.ServiceIDs, ", "))
}

// Catalog indexes a snapshot of services by canonical image
// reference.
type Catalog struct {
	byRef     map[string]Service
	conflicts map[string][]string
}

// BuildCatalog indexes the services that pass the filter and the
// includer. Services without an image reference are left out. If
// more than one service has the same reference, that reference is
// marked as ambiguous rather than either service winning.
func BuildCatalog(services []Service, filter Filter, includer Includer) *Catalog {
	if filter == nil {
		filter = NoFilter{}
	}
	if includer == nil {
		includer = AlwaysInclude
	}
	c := &Catalog{
		byRef:     map[string]Service{},
		conflicts: map[string][]string{},
	}
	for _, s := range services {
		if !filter.Matches(s.Labels) {
			continue
		}
		ref, ok := s.CanonicalRef()
		if !ok || !includer.IsIncluded(ref) {
			continue
		}
		if ids, ok := c.conflicts[ref]; ok {
			c.conflicts[ref] = append(ids, s.ID)
			continue
		}
		if prev, ok := c.byRef[ref]; ok {
			c.conflicts[ref] = []string{prev.ID, s.ID}
			delete(c.byRef, ref)
			continue
		}
		c.byRef[ref] = s
	}
	return c
}

// Lookup finds the one service using the image ref. It is a missing
// error if there's none, and a configuration error if there's more
// than one.
func (c *Catalog) Lookup(ref string) (Service, error) {
	if ids, ok := c.conflicts[ref]; ok {
		return Service{}, &fluxerr.Error{
			Type: fluxerr.Configuration,
			Err:  &MultipleMatchError{Ref: ref, ServiceIDs: ids},
			Help: `More than one service uses the same image

It is not clear which of the services should be updated, so none of
them will be. Use a label filter, or an include or exclude pattern, so
that only one service is considered for each image.
`,
		}
	}
	s, ok := c.byRef[ref]
	if !ok {
		return Service{}, fluxerr.New(fluxerr.Missing, "no service uses image %s", ref)
	}
	return s, nil
}

// Len is the number of images that can be matched to a service.
func (c *Catalog) Len() int {
	return len(c.byRef)
}

// Ambiguous lists the image references that more than one service
// uses, sorted.
func (c *Catalog) Ambiguous() []string {
	refs := make([]string, 0, len(c.conflicts))
	for ref := range c.conflicts {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
