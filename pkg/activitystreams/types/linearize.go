package types

// chain gathers t and its ancestors depth first, visiting parents in the order
// they were declared. A type reachable through more than one path keeps the
// position where it was first visited.
func chain(t *ASType) []*ASType {
	family := []*ASType{}
	seen := map[string]bool{}

	var traverse func(*ASType)
	traverse = func(current *ASType) {
		if seen[current.id] {
			return
		}

		seen[current.id] = true
		family = append(family, current)

		for _, parent := range current.parents {
			traverse(parent)
		}
	}

	traverse(t)

	return family
}

// walk appends every node reached depth first from t to family, including the
// nodes that are reached more than once
func walk(t *ASType, family []*ASType) []*ASType {
	family = append(family, t)
	for _, parent := range t.parents {
		family = walk(parent, family)
	}
	return family
}

// Linearize returns the ordering used when dispatching on an object that
// declares the given types.
//
// A single type yields its Chain. For several types the depth first walks of
// all of them are concatenated in declaration order and only the last
// occurrence of a shared ancestor is kept, so that common roots such as Object
// end up after every more specific type.
func Linearize(ts ...*ASType) []*ASType {
	seeds := make([]*ASType, 0, len(ts))
	for _, t := range ts {
		if t != nil {
			seeds = append(seeds, t)
		}
	}

	if len(seeds) == 0 {
		return []*ASType{}
	}

	if len(seeds) == 1 {
		return seeds[0].Chain()
	}

	family := []*ASType{}
	for _, t := range seeds {
		family = walk(t, family)
	}

	seen := map[string]bool{}
	reversed := make([]*ASType, 0, len(family))

	for i := len(family) - 1; i >= 0; i-- {
		if seen[family[i].id] {
			continue
		}
		seen[family[i].id] = true
		reversed = append(reversed, family[i])
	}

	result := make([]*ASType, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		result = append(result, reversed[i])
	}

	return result
}

// Positions maps the id of every type in a linearization to its index
func Positions(linearization []*ASType) map[string]int {
	positions := make(map[string]int, len(linearization))
	for i, t := range linearization {
		if _, ok := positions[t.id]; !ok {
			positions[t.id] = i
		}
	}
	return positions
}
