package query

import (
	"strings"
	"time"
)

// Path addresses an entity attribute, possibly through a relation
// ("country", "id").
type Path []string

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Predicate is a node of the compiled filter tree.
type Predicate interface {
	isPredicate()
}

// Leaf is a predicate over a single attribute.
type Leaf interface {
	Predicate
	Target() Path
}

type Equals struct {
	Field Path
	Value any
}

// Like is a case-insensitive substring match.
type Like struct {
	Field     Path
	Substring string
}

type In struct {
	Field  Path
	Values []any
}

// Between holds inclusive bounds; a nil bound is not compared.
type Between struct {
	Field Path
	Min   any
	Max   any
}

// DateComponentEquals matches month and day, ignoring the year.
type DateComponentEquals struct {
	Field Path
	Month time.Month
	Day   int
}

// And is satisfied when every child is. An empty And matches everything.
type And struct {
	Children []Predicate
}

func (Equals) isPredicate()              {}
func (Like) isPredicate()                {}
func (In) isPredicate()                  {}
func (Between) isPredicate()             {}
func (DateComponentEquals) isPredicate() {}
func (And) isPredicate()                 {}

func (p Equals) Target() Path              { return p.Field }
func (p Like) Target() Path                { return p.Field }
func (p In) Target() Path                  { return p.Field }
func (p Between) Target() Path             { return p.Field }
func (p DateComponentEquals) Target() Path { return p.Field }

// Leaves returns every leaf of p in tree order.
func Leaves(p Predicate) []Leaf {
	var out []Leaf
	var walk func(Predicate)
	walk = func(n Predicate) {
		switch t := n.(type) {
		case And:
			for _, c := range t.Children {
				walk(c)
			}
		case Leaf:
			out = append(out, t)
		}
	}
	if p != nil {
		walk(p)
	}
	return out
}
