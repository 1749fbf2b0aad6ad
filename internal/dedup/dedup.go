// Package dedup tracks which cached file owns each event identity when
// overlapping source files claim the same event.
package dedup

import "sort"

// Index maps event identities to the set of file paths claiming them.
// The owner of an identity is its lexicographically least claimant, so
// ownership is deterministic regardless of the order files were scanned
// or changed.
type Index struct {
	claims map[string][]string
}

// NewIndex returns an empty claim index.
func NewIndex() *Index {
	return &Index{claims: make(map[string][]string)}
}

// Claim records that path contributes the identity id. It returns the
// owning path before and after the claim; a claim already present
// leaves ownership untouched.
func (x *Index) Claim(id, path string) (prev, next string) {
	set := x.claims[id]
	if len(set) > 0 {
		prev = set[0]
	}
	i := sort.SearchStrings(set, path)
	if i < len(set) && set[i] == path {
		return prev, prev
	}
	set = append(set, "")
	copy(set[i+1:], set[i:])
	set[i] = path
	x.claims[id] = set
	return prev, set[0]
}

// Release withdraws path's claim on id. It returns the owning path
// before and after; next is empty when no claimant remains.
func (x *Index) Release(id, path string) (prev, next string) {
	set := x.claims[id]
	if len(set) == 0 {
		return "", ""
	}
	prev = set[0]
	i := sort.SearchStrings(set, path)
	if i >= len(set) || set[i] != path {
		return prev, prev
	}
	set = append(set[:i], set[i+1:]...)
	if len(set) == 0 {
		delete(x.claims, id)
		return prev, ""
	}
	x.claims[id] = set
	return prev, set[0]
}

// Owner returns the path currently owning id, or "".
func (x *Index) Owner(id string) string {
	if set := x.claims[id]; len(set) > 0 {
		return set[0]
	}
	return ""
}

// Claimants returns a copy of the paths claiming id, owner first.
func (x *Index) Claimants(id string) []string {
	set := x.claims[id]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, len(set))
	copy(out, set)
	return out
}

// Len returns the number of distinct identities with at least one
// claimant.
func (x *Index) Len() int {
	return len(x.claims)
}
