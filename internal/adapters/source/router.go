package source

import (
	"fmt"
	"strings"
)

// DefaultFilePrefix marks file-backed competition identifiers.
const DefaultFilePrefix = "file:"

// Router picks the loader for a competition identifier: identifiers with
// the file prefix go to the file loader, everything else to the API.
type Router struct {
	prefix string
	file   Loader
	api    Loader
}

// NewRouter creates a Router. A nil loader disables that kind.
func NewRouter(prefix string, file, api Loader) *Router {
	if prefix == "" {
		prefix = DefaultFilePrefix
	}
	return &Router{prefix: prefix, file: file, api: api}
}

// Kind reports which backend serves competitionID.
func (r *Router) Kind(competitionID string) Kind {
	if strings.HasPrefix(competitionID, r.prefix) {
		return KindFile
	}
	return KindAPI
}

// Route returns the backend kind, the name to pass to the loader, and the
// loader itself.
func (r *Router) Route(competitionID string) (Kind, string, Loader, error) {
	kind := r.Kind(competitionID)
	var (
		name   = competitionID
		loader = r.api
	)
	if kind == KindFile {
		name = strings.TrimPrefix(competitionID, r.prefix)
		loader = r.file
	}
	if loader == nil || name == "" {
		return kind, name, nil, fmt.Errorf("%w: %q (%s)", ErrUnknownSource, competitionID, kind)
	}
	return kind, name, loader, nil
}
