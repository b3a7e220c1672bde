package vectorstore

import "fmt"

// Condition matches records whose metadata value under Key equals one of Values.
type Condition struct {
	Key    string
	Values []string
}

// Eq matches key == value.
func Eq(key, value string) Condition {
	return Condition{Key: key, Values: []string{value}}
}

// In matches key ∈ values.
func In(key string, values ...string) Condition {
	return Condition{Key: key, Values: values}
}

func (c Condition) matches(md Metadata) bool {
	v, ok := md[c.Key]
	if !ok || v == nil {
		return false
	}
	s, isString := v.(string)
	if !isString {
		s = fmt.Sprint(v)
	}
	for _, want := range c.Values {
		if s == want {
			return true
		}
	}
	return false
}

// Filter restricts a query to records matching every Must condition and,
// when Should is non-empty, at least one Should condition.
type Filter struct {
	Must   []Condition
	Should []Condition
}

// Empty reports whether f imposes no restriction.
func (f *Filter) Empty() bool {
	return f == nil || (len(f.Must) == 0 && len(f.Should) == 0)
}

// Matches evaluates f against md. A nil filter matches everything.
func (f *Filter) Matches(md Metadata) bool {
	if f.Empty() {
		return true
	}
	for _, c := range f.Must {
		if !c.matches(md) {
			return false
		}
	}
	if len(f.Should) == 0 {
		return true
	}
	for _, c := range f.Should {
		if c.matches(md) {
			return true
		}
	}
	return false
}
