package znflow

import (
	"strings"

	"github.com/google/uuid"
)

// Group names a set of tasks built while an OpenGroup/CloseGroup pair was
// active, so a Deployment can later be asked to run (or report on) just
// that subset. Groups do not nest (spec.md §4.4: opening a group while
// another is open is a GroupError), mirroring the original's single
// `self._graph._group` slot rather than a stack.
//
// A group's name is a path: spec.md's Data Model describes it as "an
// ordered tuple of names forming a path" (e.g. opening ("a", "b") twice
// extends the same group rather than creating two). Path is the
// component tuple; Name joins it with "/" for display and for keying
// Graph.groups, since reopening with an identical path must resolve to
// the same Group.
type Group struct {
	path    []string
	members []uuid.UUID
}

// Name returns the group's path joined with "/".
func (gr *Group) Name() string { return strings.Join(gr.path, "/") }

// Path returns the group's name components in order.
func (gr *Group) Path() []string { return append([]string(nil), gr.path...) }

// Members returns the identities of every task added while this group
// was the active group.
func (gr *Group) Members() []uuid.UUID {
	return append([]uuid.UUID(nil), gr.members...)
}

// OpenGroup starts a group named by the given path components: every
// task subsequently registered into g (until CloseGroup) is recorded as
// a member, in addition to being a normal graph node. Reopening the same
// path extends the existing group rather than starting a new one.
// Opening a second group before closing the first is rejected with a
// GroupError, and so is an empty path.
func (g *Graph) OpenGroup(path ...string) (*Group, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(path) == 0 || (len(path) == 1 && path[0] == "") {
		return nil, newGroupError("group path must not be empty")
	}
	if g.activeGroup != nil {
		return nil, newGroupError("group %q is already open; groups do not nest", g.activeGroup.Name())
	}
	key := strings.Join(path, "/")
	gr, exists := g.groups[key]
	if !exists {
		gr = &Group{path: append([]string(nil), path...)}
		g.groups[key] = gr
	}
	g.activeGroup = gr
	return gr, nil
}

// CloseGroup closes whichever group is currently open.
func (g *Graph) CloseGroup() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.activeGroup = nil
}

// Group returns a previously opened group by its path.
func (g *Graph) Group(path ...string) (*Group, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	gr, ok := g.groups[strings.Join(path, "/")]
	return gr, ok
}

// WithGroup opens path, runs fn, and always closes the group afterward,
// even if fn panics or returns an error.
func (g *Graph) WithGroup(fn func() error, path ...string) error {
	gr, err := g.OpenGroup(path...)
	if err != nil {
		return err
	}
	_ = gr
	defer g.CloseGroup()
	return fn()
}
