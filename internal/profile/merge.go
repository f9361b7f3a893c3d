package profile

// Merge combines profile lists into one list keyed by Name, keeping the
// order in which each name first appears. When a name repeats, non-empty
// fields of the later profile override the earlier ones.
func Merge(lists ...[]Profile) []Profile {
	index := make(map[string]int)
	var out []Profile
	for _, list := range lists {
		for _, p := range list {
			if p.Name == "" {
				continue
			}
			i, ok := index[p.Name]
			if !ok {
				index[p.Name] = len(out)
				out = append(out, p.Clone())
				continue
			}
			out[i] = overlay(out[i], p)
		}
	}
	if out == nil {
		out = []Profile{}
	}
	return out
}

// overlay returns base with every non-empty field of top applied.
func overlay(base, top Profile) Profile {
	if len(top.Strengths) > 0 {
		base.Strengths = copyStrings(top.Strengths)
	}
	if len(top.Weaknesses) > 0 {
		base.Weaknesses = copyStrings(top.Weaknesses)
	}
	for _, f := range categoricalFields {
		if v := *f.ptr(&top); v != "" {
			*f.ptr(&base) = v
		}
	}
	return base
}
