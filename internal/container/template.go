// Package container implements the schema-validated nested structure used
// throughout chronicle to hold records, merge-rule trees, and materialized
// database state.
package container

// Kind discriminates the shape a Template node describes.
type Kind int

const (
	// KindAny matches any value, including null.
	KindAny Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	// KindChoice restricts a scalar leaf to one of a fixed set of literal
	// values.
	KindChoice
	// KindList describes a homogeneous list; Elem is the item template.
	KindList
	// KindDict describes a mapping with a fixed, named set of fields.
	KindDict
	// KindAnyKeysDict describes a mapping with arbitrary keys, all of the
	// same Elem template. This is the "keyed by the empty string" case
	// from the data model (§3).
	KindAnyKeysDict
)

// Template is a tagged-variant tree. It is the statically-typed analogue of
// the original system's JSON-literal template grammar: a list template with
// zero items means "list of KindAny", one item means "list of that item's
// template", and more than one item (only reachable via Choice below) means
// a scalar restricted to a fixed set of values.
type Template struct {
	Kind Kind

	// Elem is the item template for KindList and KindAnyKeysDict.
	Elem *Template

	// Fields is the named field set for KindDict. FieldOrder records
	// declaration order since Go maps do not preserve one; it drives the
	// stable key ordering documents are written in (§6).
	Fields     map[string]*Template
	FieldOrder []string

	// Choices lists the literal scalar values a KindChoice leaf may take.
	Choices []*Value
}

// Any is the template that matches every value, used for untyped leaves.
var Any = &Template{Kind: KindAny}

// Dict builds a KindDict template preserving field declaration order.
func Dict(order []string, fields map[string]*Template) *Template {
	return &Template{Kind: KindDict, Fields: fields, FieldOrder: order}
}

// AnyKeysDict builds a KindAnyKeysDict template ("mapping with arbitrary
// keys, all values of the given subtype" per §3).
func AnyKeysDict(elem *Template) *Template {
	return &Template{Kind: KindAnyKeysDict, Elem: elem}
}

// List builds a KindList template.
func List(elem *Template) *Template {
	return &Template{Kind: KindList, Elem: elem}
}

// ChoiceOf builds a KindChoice template restricting a leaf to a fixed set of
// literal scalar values (e.g. merge-rule tokens).
func ChoiceOf(values ...*Value) *Template {
	return &Template{Kind: KindChoice, Choices: values}
}

// fieldTemplate looks up a dict template's field template, honoring
// KindAnyKeysDict. Returns nil if name is not a declared field of a fixed
// KindDict template.
func (t *Template) fieldTemplate(name string) *Template {
	if t == nil {
		return Any
	}
	switch t.Kind {
	case KindAnyKeysDict:
		return t.Elem
	case KindDict:
		if f, ok := t.Fields[name]; ok {
			return f
		}
		return nil
	}
	return nil
}
