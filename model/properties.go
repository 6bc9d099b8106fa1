package model

// Properties are the indexed values of an entity keyed by stored field name.
// Values are string, int64, []string or time.Time; unset dates are omitted.
type Properties map[string]any
