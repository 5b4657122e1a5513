package container

import "errors"

var (
	// ErrTypeMismatch indicates a value's shape does not match its template.
	ErrTypeMismatch = errors.New("container: type error")
	// ErrUnknownField indicates an assignment or read targeted a field the
	// template does not declare.
	ErrUnknownField = errors.New("container: unknown field")
	// ErrStatic indicates a mutating operation was attempted on a container
	// marked static.
	ErrStatic = errors.New("container: value is static")
	// ErrIncompatible indicates delta/patch was attempted across containers
	// of different type name or template.
	ErrIncompatible = errors.New("container: incompatible types")
	// ErrNotDict indicates a dict-only operation was attempted on a
	// non-dict container.
	ErrNotDict = errors.New("container: not a dict")
)
