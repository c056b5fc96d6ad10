package features

import (
	"math/rand"
	"sort"
)

// UnderSample balances items by class. Every class is cut down to the size
// of the smallest one by sampling without replacement, then the result is
// shuffled. The same seed always yields the same selection and order.
func UnderSample[T any](items []T, label func(T) string, seed int64) []T {
	byClass := make(map[string][]int)
	for i, item := range items {
		l := label(item)
		byClass[l] = append(byClass[l], i)
	}
	if len(byClass) < 2 {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}

	classes := make([]string, 0, len(byClass))
	minority := len(items)
	for l, members := range byClass {
		classes = append(classes, l)
		minority = min(minority, len(members))
	}
	sort.Strings(classes)

	rng := rand.New(rand.NewSource(seed))
	out := make([]T, 0, minority*len(classes))
	for _, l := range classes {
		members := byClass[l]
		if len(members) == minority {
			for _, i := range members {
				out = append(out, items[i])
			}
			continue
		}
		picked := rng.Perm(len(members))[:minority]
		sort.Ints(picked)
		for _, p := range picked {
			out = append(out, items[members[p]])
		}
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
