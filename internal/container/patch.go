package container

// Patch applies delta to old to produce new, such that
// Delta(old, Patch(old, delta)) == delta and Patch(old, Delta(old, new)) ==
// new for every compatible pair (§3's round-trip law, tested as invariant 6
// in §8) in which new has no null-valued keys: a null delta entry deletes
// its key, so a key set to null in new is removed rather than kept.
func Patch(old, delta *Container) (*Container, error) {
	if old.name != delta.name || !templatesEqual(old.tmpl, delta.tmpl) {
		return nil, ErrIncompatible
	}
	out := old.value.Clone()
	patchValue(out, delta.value, old.tmpl)
	return &Container{name: old.name, tmpl: old.tmpl, value: out}, nil
}

// patchValue mutates out in place, applying delta's entries. Whether a
// dict-valued delta entry is a nested structural delta (recurse) or a
// wholesale added value (assign) is decided by whether out already held a
// dict at that key before the patch — exactly mirroring the presence test
// delta computation itself used to decide between the two forms.
func patchValue(out, delta *Value, tmpl *Template) {
	for _, name := range delta.Keys() {
		dv := delta.Get(name)

		if dv.IsNull() {
			out.Delete(name)
			continue
		}

		existing := out.Get(name)
		if dv.Kind == KindValueDict && existing != nil && existing.Kind == KindValueDict {
			patchValue(existing, dv, tmpl.fieldTemplate(name))
			continue
		}

		out.Set(name, dv.Clone())
	}
}
