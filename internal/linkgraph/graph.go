// Package linkgraph computes reference structure over the pages of one web.
//
// A Graph is built from a snapshot of every page's outgoing links and is never
// mutated afterwards; callers rebuild it whenever they need fresh answers.
package linkgraph

import (
	"fmt"
	"sort"
)

// Policy selects how orphaned pages are identified.
type Policy string

const (
	// PolicyReferenced treats a page as orphaned when no other existing page
	// links to it. Removing orphans can leave new orphans behind, which are
	// only found by the next computation.
	PolicyReferenced Policy = "referenced"
	// PolicyReachable treats a page as orphaned when it cannot be reached
	// from the root by following links between existing pages.
	PolicyReachable Policy = "reachable"
)

// ParsePolicy validates a policy name. The empty string selects PolicyReferenced.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyReferenced:
		return PolicyReferenced, nil
	case PolicyReachable:
		return PolicyReachable, nil
	}
	return "", fmt.Errorf("linkgraph: unknown orphan policy %q", s)
}

// Wanted is a page name that is linked to but does not exist.
type Wanted struct {
	Name         string   `json:"name"`
	ReferencedBy []string `json:"referenced_by"`
}

// Graph maps each existing page to the page names it links to.
type Graph struct {
	pages []string
	out   map[string][]string
	in    map[string]map[string]struct{}
}

// Build creates a graph from page name to outgoing link names. Links to names
// outside the map are kept as dangling references (see Wanted).
func Build(links map[string][]string) *Graph {
	g := &Graph{
		pages: make([]string, 0, len(links)),
		out:   make(map[string][]string, len(links)),
		in:    make(map[string]map[string]struct{}),
	}
	for name, targets := range links {
		g.pages = append(g.pages, name)
		g.out[name] = append([]string(nil), targets...)
		for _, t := range targets {
			if t == name {
				continue
			}
			src, ok := g.in[t]
			if !ok {
				src = make(map[string]struct{})
				g.in[t] = src
			}
			src[name] = struct{}{}
		}
	}
	sort.Strings(g.pages)
	return g
}

// Pages returns every page name in the graph, sorted.
func (g *Graph) Pages() []string {
	return append([]string(nil), g.pages...)
}

// Has reports whether name is an existing page.
func (g *Graph) Has(name string) bool {
	_, ok := g.out[name]
	return ok
}

// Outgoing returns the names page links to, in first-reference order.
func (g *Graph) Outgoing(page string) []string {
	return append([]string(nil), g.out[page]...)
}

// Backlinks returns the existing pages other than name that link to name, sorted.
func (g *Graph) Backlinks(name string) []string {
	out := make([]string, 0, len(g.in[name]))
	for src := range g.in[name] {
		out = append(out, src)
	}
	sort.Strings(out)
	return out
}

// Reachable returns the closure of pages reachable from root, root included.
// A root that is not an existing page yields an empty set.
func (g *Graph) Reachable(root string) map[string]struct{} {
	seen := make(map[string]struct{})
	if !g.Has(root) {
		return seen
	}
	seen[root] = struct{}{}
	queue := []string{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.out[cur] {
			if !g.Has(next) {
				continue
			}
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return seen
}

// Unreferenced returns the existing pages no other existing page links to, sorted.
func (g *Graph) Unreferenced() []string {
	var out []string
	for _, p := range g.pages {
		if len(g.in[p]) == 0 {
			out = append(out, p)
		}
	}
	return out
}

// Orphans returns the pages the policy considers orphaned, sorted. The root
// and every name in immune are never returned.
func (g *Graph) Orphans(root string, policy Policy, immune map[string]struct{}) []string {
	var candidates []string
	switch policy {
	case PolicyReachable:
		reach := g.Reachable(root)
		for _, p := range g.pages {
			if _, ok := reach[p]; !ok {
				candidates = append(candidates, p)
			}
		}
	default:
		candidates = g.Unreferenced()
	}

	out := candidates[:0]
	for _, p := range candidates {
		if p == root {
			continue
		}
		if _, ok := immune[p]; ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Wanted returns names that are linked to but missing, sorted by name.
func (g *Graph) Wanted() []Wanted {
	var out []Wanted
	for name := range g.in {
		if g.Has(name) {
			continue
		}
		out = append(out, Wanted{Name: name, ReferencedBy: g.Backlinks(name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
