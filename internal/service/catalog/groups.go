package catalog

import (
	"strings"

	"github.com/Domenick1991/smartaccess/internal/domain"
)

// Group is the facilities of one category.
type Group struct {
	Key        string
	Facilities []domain.Facility
}

// Label is the category key as shown to users.
func (g Group) Label() string {
	return strings.ReplaceAll(g.Key, "_", " ")
}

// Groups is an ordered association of category to facilities. Categories keep
// the order in which they were first encountered.
type Groups struct {
	groups []Group
	index  map[string]int
}

func GroupByType(facilities []domain.Facility) Groups {
	g := Groups{index: make(map[string]int)}
	for _, f := range facilities {
		g.add(f)
	}
	return g
}

func (g *Groups) add(f domain.Facility) {
	i, ok := g.index[f.Type]
	if !ok {
		i = len(g.groups)
		g.index[f.Type] = i
		g.groups = append(g.groups, Group{Key: f.Type})
	}
	g.groups[i].Facilities = append(g.groups[i].Facilities, f)
}

func (g Groups) Keys() []string {
	keys := make([]string, 0, len(g.groups))
	for _, group := range g.groups {
		keys = append(keys, group.Key)
	}
	return keys
}

func (g Groups) Get(key string) ([]domain.Facility, bool) {
	i, ok := g.index[key]
	if !ok {
		return nil, false
	}
	return g.groups[i].Facilities, true
}

func (g Groups) All() []Group {
	return g.groups
}

func (g Groups) Len() int {
	return len(g.groups)
}
