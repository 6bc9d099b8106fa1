package database

import (
	"strings"
	"time"

	"golang.org/x/exp/slices"

	"github.com/sfallmann/conf-central/model"
)

// candidate is a stored entity being evaluated by an in-process query.
type candidate struct {
	key   *model.Key
	props model.Properties
	load  func(dst Entity) error
}

// selectCandidates applies the ancestor, filters, orders and limit of q to
// entities of q's kind. Entities missing a sort property are dropped, the
// same way an index without the property would not contain them.
func selectCandidates(q *Query, all []candidate) []candidate {
	var out []candidate
	for _, c := range all {
		if c.key.Kind != q.kind {
			continue
		}
		if q.ancestor != nil && !c.key.HasAncestor(q.ancestor) {
			continue
		}
		if !matchesAll(c.props, q.filters) {
			continue
		}
		if !hasAll(c.props, q.orders) {
			continue
		}
		out = append(out, c)
	}

	slices.SortStableFunc(out, func(a, b candidate) int {
		for _, o := range q.orders {
			cmp := compareForOrder(a.props[o.Field], b.props[o.Field], o.Descending)
			if cmp == 0 {
				continue
			}
			if o.Descending {
				return -cmp
			}
			return cmp
		}
		return strings.Compare(a.key.Encode(), b.key.Encode())
	})

	if q.limit > 0 && len(out) > q.limit {
		out = out[:q.limit]
	}
	return out
}

func hasAll(props model.Properties, orders []Order) bool {
	for _, o := range orders {
		if _, ok := props[o.Field]; !ok {
			return false
		}
	}
	return true
}

func matchesAll(props model.Properties, filters []Filter) bool {
	for _, f := range filters {
		if !matches(props, f) {
			return false
		}
	}
	return true
}

// matches evaluates one filter. List properties match when any element does.
func matches(props model.Properties, f Filter) bool {
	v, ok := props[f.Field]
	if !ok {
		return false
	}
	if list, ok := v.([]string); ok {
		for _, elem := range list {
			if compareOp(elem, f.Op, f.Value) {
				return true
			}
		}
		return false
	}
	return compareOp(v, f.Op, f.Value)
}

func compareOp(a any, op Operator, b any) bool {
	cmp, ok := compareValues(a, b)
	if !ok {
		return false
	}
	switch op {
	case Equal:
		return cmp == 0
	case NotEqual:
		return cmp != 0
	case GreaterThan:
		return cmp > 0
	case GreaterOrEqual:
		return cmp >= 0
	case LessThan:
		return cmp < 0
	case LessOrEqual:
		return cmp <= 0
	}
	return false
}

// compareValues orders two property values of the same type.
func compareValues(a, b any) (int, bool) {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case int64:
		y, ok := b.(int64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	}
	return 0, false
}

// compareForOrder compares sort values. A list sorts by its smallest element
// ascending and by its largest descending.
func compareForOrder(a, b any, descending bool) int {
	a, b = sortValue(a, descending), sortValue(b, descending)
	cmp, _ := compareValues(a, b)
	return cmp
}

func sortValue(v any, descending bool) any {
	list, ok := v.([]string)
	if !ok {
		return v
	}
	if len(list) == 0 {
		return ""
	}
	pick := list[0]
	for _, s := range list[1:] {
		if (descending && s > pick) || (!descending && s < pick) {
			pick = s
		}
	}
	return pick
}
