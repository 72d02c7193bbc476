package generator

import (
	"math/rand"
	"slices"
)

// shuffler derives one file order per epoch. The seed of epoch k is k
// (starting at 1), so a run always sees the same sequence of orders while
// consecutive epochs differ. Each generator owns its shuffler.
type shuffler struct {
	seed int64
}

func newShuffler() *shuffler {
	return &shuffler{seed: 1}
}

// next returns a permutation of files and advances the seed.
func (s *shuffler) next(files []string) []string {
	out := slices.Clone(files)
	rng := rand.New(rand.NewSource(s.seed))
	s.seed++
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
