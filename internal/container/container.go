package container

import "fmt"

// Container is a structurally-typed, template-validated wrapper around a
// Value tree (§4.2). Construction validates eagerly; assignment validates
// against the target location's template; reads return child Containers
// that share the underlying Value storage, so mutations through a child
// are visible through the parent.
type Container struct {
	name     string
	tmpl     *Template
	value    *Value
	callback func()
	static   bool
}

// New constructs a Container, validating data against tmpl eagerly.
func New(name string, tmpl *Template, data *Value) (*Container, error) {
	if data == nil {
		data = Null()
	}
	if err := typeCheck(name, data, tmpl); err != nil {
		return nil, err
	}
	return &Container{name: name, tmpl: tmpl, value: data}, nil
}

// WithCallback returns a copy of c whose mutating operations invoke fn
// afterward. An optional callback fires on any mutation through the value.
func (c *Container) WithCallback(fn func()) *Container {
	clone := *c
	clone.callback = fn
	return &clone
}

// MakeStatic marks c so that all mutating operations fail with ErrStatic.
func (c *Container) MakeStatic() { c.static = true }

// MakeMutable clears the static flag.
func (c *Container) MakeMutable() { c.static = false }

// IsStatic reports whether c is in static (read-only) mode.
func (c *Container) IsStatic() bool { return c.static }

// Value exposes the backing Value tree for use by delta/patch/merge, which
// operate structurally rather than through the validated accessor API.
func (c *Container) Value() *Value { return c.value }

// Template exposes the container's template.
func (c *Container) Template() *Template { return c.tmpl }

// Name exposes the container's type name, used in error messages.
func (c *Container) Name() string { return c.name }

// Keys returns the dict's keys in iteration order. Non-dict containers
// return nil.
func (c *Container) Keys() []string {
	return c.value.Keys()
}

// Get returns the child container at name, sharing the parent's storage.
// Returns ErrNotDict if c does not wrap a dict, ErrUnknownField if the
// template does not declare name for a fixed KindDict.
func (c *Container) Get(name string) (*Container, error) {
	if c.value.Kind != KindValueDict {
		return nil, fmt.Errorf("%s: %w", c.name, ErrNotDict)
	}
	fieldTmpl := c.tmpl.fieldTemplate(name)
	if fieldTmpl == nil && c.tmpl != nil && c.tmpl.Kind == KindDict {
		return nil, fmt.Errorf("%s.%s: %w", c.name, name, ErrUnknownField)
	}
	child := c.value.Get(name)
	if child == nil {
		child = Null()
	}
	return &Container{name: c.name + "." + name, tmpl: fieldTmpl, value: child, callback: c.callback, static: c.static}, nil
}

// Set validates v against the target field's template and assigns it,
// firing the callback and failing with ErrStatic if c is static.
func (c *Container) Set(name string, v *Value) error {
	if c.static {
		return fmt.Errorf("%s: %w", c.name, ErrStatic)
	}
	if c.value.Kind != KindValueDict {
		return fmt.Errorf("%s: %w", c.name, ErrNotDict)
	}
	fieldTmpl := c.tmpl.fieldTemplate(name)
	if fieldTmpl == nil && c.tmpl != nil && c.tmpl.Kind == KindDict {
		return fmt.Errorf("%s.%s: %w", c.name, name, ErrUnknownField)
	}
	if err := typeCheck(c.name+"."+name, v, fieldTmpl); err != nil {
		return err
	}
	c.value.Set(name, v)
	if c.callback != nil {
		c.callback()
	}
	return nil
}

// Delete removes name from a dict container.
func (c *Container) Delete(name string) error {
	if c.static {
		return fmt.Errorf("%s: %w", c.name, ErrStatic)
	}
	if c.value.Kind != KindValueDict {
		return fmt.Errorf("%s: %w", c.name, ErrNotDict)
	}
	c.value.Delete(name)
	if c.callback != nil {
		c.callback()
	}
	return nil
}

// Clone performs a deep copy, independent of the original's storage. The
// clone is not static, regardless of the original's mode.
func (c *Container) Clone() *Container {
	return &Container{name: c.name, tmpl: c.tmpl, value: c.value.Clone()}
}

// New returns a fresh, empty, mutable Container of the same type and
// template as c — used by the merge engine and the state evaluator to
// build an output record map from scratch.
func (c *Container) New() *Container {
	var v *Value
	if c.tmpl != nil && (c.tmpl.Kind == KindDict || c.tmpl.Kind == KindAnyKeysDict) {
		v = NewDict()
	} else if c.tmpl != nil && c.tmpl.Kind == KindList {
		v = NewList()
	} else {
		v = NewDict()
	}
	return &Container{name: c.name, tmpl: c.tmpl, value: v}
}

// Equal performs a deep structural comparison of two containers' data.
func (c *Container) Equal(other *Container) bool {
	if other == nil {
		return false
	}
	return Equal(c.value, other.value)
}

// SameType reports whether c and other share a type name and template,
// the precondition delta/patch enforce before operating on two containers.
func (c *Container) SameType(other *Container) bool {
	return c.name == other.name && templatesEqual(c.tmpl, other.tmpl)
}

func templatesEqual(a, b *Template) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindList, KindAnyKeysDict:
		return templatesEqual(a.Elem, b.Elem)
	case KindDict:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for k, at := range a.Fields {
			bt, ok := b.Fields[k]
			if !ok || !templatesEqual(at, bt) {
				return false
			}
		}
		return true
	case KindChoice:
		if len(a.Choices) != len(b.Choices) {
			return false
		}
		for i := range a.Choices {
			if !Equal(a.Choices[i], b.Choices[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
