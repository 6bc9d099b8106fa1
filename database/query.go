package database

import (
	"strings"

	"github.com/sfallmann/conf-central/model"
)

// Operator is a filter comparison.
type Operator string

const (
	Equal          Operator = "="
	GreaterThan    Operator = ">"
	GreaterOrEqual Operator = ">="
	LessThan       Operator = "<"
	LessOrEqual    Operator = "<="
	NotEqual       Operator = "!="
)

// Inequality reports whether the operator restricts a range rather than a value.
func (o Operator) Inequality() bool {
	return o != Equal
}

type Filter struct {
	Field string
	Op    Operator
	Value any
}

type Order struct {
	Field      string
	Descending bool
}

// Query describes a kind query. Builder methods return modified copies, so a
// Query can be shared and run any number of times.
type Query struct {
	kind       string
	ancestor   *model.Key
	filters    []Filter
	orders     []Order
	projection []string
	limit      int
}

func NewQuery(kind string) *Query {
	return &Query{kind: kind}
}

func (q *Query) clone() *Query {
	c := *q
	c.filters = append([]Filter(nil), q.filters...)
	c.orders = append([]Order(nil), q.orders...)
	c.projection = append([]string(nil), q.projection...)
	return &c
}

// Ancestor restricts results to entities under key (including key itself).
func (q *Query) Ancestor(key *model.Key) *Query {
	c := q.clone()
	c.ancestor = key
	return c
}

func (q *Query) Filter(field string, op Operator, value any) *Query {
	c := q.clone()
	c.filters = append(c.filters, Filter{Field: field, Op: op, Value: normalize(value)})
	return c
}

// Order appends a sort order. A "-" prefix sorts descending.
func (q *Query) Order(field string) *Query {
	c := q.clone()
	o := Order{Field: field}
	if strings.HasPrefix(field, "-") {
		o = Order{Field: field[1:], Descending: true}
	}
	c.orders = append(c.orders, o)
	return c
}

// Project asks the backend to load only the named fields. Backends that
// cannot project return whole entities.
func (q *Query) Project(fields ...string) *Query {
	c := q.clone()
	c.projection = append(c.projection, fields...)
	return c
}

func (q *Query) Limit(n int) *Query {
	c := q.clone()
	c.limit = n
	return c
}

func (q *Query) Kind() string { return q.kind }
func (q *Query) AncestorKey() *model.Key { return q.ancestor }
func (q *Query) Filters() []Filter { return append([]Filter(nil), q.filters...) }
func (q *Query) Orders() []Order { return append([]Order(nil), q.orders...) }
func (q *Query) Projection() []string { return append([]string(nil), q.projection...) }
func (q *Query) LimitValue() int { return q.limit }
