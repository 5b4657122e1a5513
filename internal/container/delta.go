package container

// Delta computes a Container describing every key whose value differs
// between old and new (§3, §4.2). Unchanged keys are absent from the
// result; deleted keys map to the null sentinel; added keys carry the new
// value; nested dict differences recur; list differences do not (lists
// replace wholesale, preserving the round-trip law per §9's note (b)).
func Delta(old, new *Container) (*Container, error) {
	if !old.SameType(new) {
		return nil, ErrIncompatible
	}
	dv, err := deltaValue(old.value, new.value, old.tmpl)
	if err != nil {
		return nil, err
	}
	return &Container{name: old.name, tmpl: old.tmpl, value: dv}, nil
}

func deltaValue(oldV, newV *Value, tmpl *Template) (*Value, error) {
	out := NewDict()

	order := append([]string(nil), oldV.Keys()...)
	for _, k := range newV.Keys() {
		if !containsKey(order, k) {
			order = append(order, k)
		}
	}

	for _, name := range order {
		oldPresent := oldV.Has(name)
		newPresent := newV.Has(name)

		switch {
		case oldPresent && newPresent:
			ov := oldV.Get(name)
			nv := newV.Get(name)
			if ov.Kind == KindValueDict && nv.Kind == KindValueDict {
				if !Equal(ov, nv) {
					sub, err := deltaValue(ov, nv, tmpl.fieldTemplate(name))
					if err != nil {
						return nil, err
					}
					out.Set(name, sub)
				}
			} else if !Equal(ov, nv) {
				out.Set(name, nv.Clone())
			}
		case oldPresent:
			out.Set(name, Null())
		case newPresent:
			out.Set(name, newV.Get(name).Clone())
		}
	}

	return out, nil
}

func containsKey(list []string, k string) bool {
	for _, x := range list {
		if x == k {
			return true
		}
	}
	return false
}
