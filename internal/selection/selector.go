package selection

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strconv"

	"github.com/pauljones0/rin-throwback/internal/models"
	"github.com/pauljones0/rin-throwback/internal/util"
)

// NewRand returns the generator threaded through selection. An empty seed
// gives a randomly seeded generator; any other seed is reproducible.
// Integer seeds are used as-is, other strings are hashed.
func NewRand(seed string) *rand.Rand {
	if seed == "" {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	n, err := strconv.ParseUint(seed, 10, 64)
	if err != nil {
		h := fnv.New64a()
		h.Write([]byte(seed))
		n = h.Sum64()
	}
	return rand.New(rand.NewPCG(n, n^0x9e3779b97f4a7c15))
}

// Choose picks one entry uniformly from eligible using rng.
func Choose(eligible []models.ManifestEntry, rng *rand.Rand) (models.ManifestEntry, error) {
	if len(eligible) == 0 {
		return models.ManifestEntry{}, models.ErrNoEligibleEntries
	}
	return eligible[rng.IntN(len(eligible))], nil
}

// ChooseByName finds entries whose set name matches name ignoring case,
// quote style and HTML entities. Manifest names are already normalized, so
// only name is normalized here. It returns the first match in manifest order
// and the total number of matches.
func ChooseByName(manifest []models.ManifestEntry, name string) (models.ManifestEntry, int, error) {
	target := util.MatchKey(name)

	var first models.ManifestEntry
	matches := 0
	for _, e := range manifest {
		if util.FoldKey(e.SetName) != target {
			continue
		}
		if matches == 0 {
			first = e
		}
		matches++
	}
	if matches == 0 {
		return models.ManifestEntry{}, 0, fmt.Errorf("%w: %s", models.ErrNoSuchSetName, name)
	}
	return first, matches, nil
}
