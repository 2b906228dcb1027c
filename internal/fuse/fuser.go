// Package fuse merges per-lane results into a single ranked evidence list:
// cross-lane dedup by source, per-lane score normalization, class-weighted
// scoring, and a deterministic total order.
package fuse

import (
	"sort"

	"github.com/samber/lo"

	"github.com/fathomsearch/fathom/internal/lane"
)

// Weights maps lane → fusion weight for one query class. Lanes absent
// from the map weigh 1.0 (neutral).
type Weights map[lane.ID]float64

// DefaultWeights returns the built-in per-class weight sets. Technical
// and research queries favor the dense and knowledge-graph lanes; simple
// and multimedia queries favor web retrieval.
func DefaultWeights() map[lane.QueryClass]Weights {
	return map[lane.QueryClass]Weights{
		lane.ClassSimple: {
			lane.Web: 1.0, lane.Keyword: 0.8, lane.Vector: 0.7,
			lane.News: 0.6, lane.KG: 0.6, lane.Markets: 0.3,
		},
		lane.ClassTechnical: {
			lane.Vector: 1.0, lane.KG: 0.9, lane.Keyword: 0.8,
			lane.Web: 0.7, lane.News: 0.3, lane.Markets: 0.2,
		},
		lane.ClassResearch: {
			lane.Vector: 1.0, lane.KG: 1.0, lane.Web: 0.8,
			lane.News: 0.7, lane.Keyword: 0.7, lane.Markets: 0.4,
		},
		lane.ClassMultimedia: {
			lane.Web: 1.0, lane.News: 0.8, lane.Vector: 0.6,
			lane.Keyword: 0.6, lane.KG: 0.4, lane.Markets: 0.2,
		},
	}
}

// candidate accumulates one deduplicated source across lanes.
type candidate struct {
	evidence lane.Evidence
	// normalized holds per-lane normalized scores for this source.
	normalized map[lane.ID]float64
}

// Fuse merges successful lane results into a ranked evidence list capped
// at cap items. Non-success results contribute nothing. Fusion is
// deterministic: identical inputs and weights produce identical output.
func Fuse(results map[lane.ID]lane.Result, weights Weights, cap int) []lane.Evidence {
	successes := lo.PickBy(results, func(_ lane.ID, r lane.Result) bool {
		return r.Status == lane.StatusSuccess && len(r.Items) > 0
	})
	if len(successes) == 0 {
		return []lane.Evidence{}
	}

	// Per-lane max for normalization onto [0,1]. A lane whose best score
	// is 0 contributes 0 for all its items.
	laneMax := make(map[lane.ID]float64, len(successes))
	for id, r := range successes {
		m := lo.MaxBy(r.Items, func(a, b lane.Evidence) bool { return a.Score > b.Score })
		laneMax[id] = m.Score
	}

	candidates := make(map[string]*candidate)
	for id, r := range successes {
		for _, ev := range r.Items {
			norm := 0.0
			if laneMax[id] > 0 {
				norm = ev.Score / laneMax[id]
			}
			c, ok := candidates[ev.SourceID]
			if !ok {
				c = &candidate{evidence: ev, normalized: make(map[lane.ID]float64, 2)}
				candidates[ev.SourceID] = c
			} else if ev.Score > c.evidence.Score {
				// Collision across lanes: keep the item with the higher
				// lane-local score as the representative.
				c.evidence = ev
			}
			if norm > c.normalized[id] {
				c.normalized[id] = norm
			}
		}
	}

	type scored struct {
		c     *candidate
		fused float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		// Accumulate in fixed lane order: float addition is not
		// associative, and map iteration order would make the sum (and
		// near-tie rankings) vary across identical calls.
		var fused float64
		for _, id := range lane.All() {
			if norm, ok := c.normalized[id]; ok {
				fused += weightFor(weights, id) * norm
			}
		}
		ranked = append(ranked, scored{c: c, fused: fused})
	}

	// Ties break by contributing-lane count, then earliest fetch, then
	// source ID; the final key makes the order total and byte-stable.
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.fused != b.fused {
			return a.fused > b.fused
		}
		if len(a.c.normalized) != len(b.c.normalized) {
			return len(a.c.normalized) > len(b.c.normalized)
		}
		if !a.c.evidence.FetchedAt.Equal(b.c.evidence.FetchedAt) {
			return a.c.evidence.FetchedAt.Before(b.c.evidence.FetchedAt)
		}
		return a.c.evidence.SourceID < b.c.evidence.SourceID
	})

	if cap > 0 && len(ranked) > cap {
		ranked = ranked[:cap]
	}
	out := make([]lane.Evidence, len(ranked))
	for i, s := range ranked {
		out[i] = s.c.evidence
	}
	return out
}

func weightFor(weights Weights, id lane.ID) float64 {
	if w, ok := weights[id]; ok {
		return w
	}
	return 1.0
}

// WeightsFromFile overlays config-file weights onto the defaults.
// Unknown classes or lanes are ignored rather than rejected; weights are
// advisory tuning, not lane definitions.
func WeightsFromFile(raw map[string]map[string]float64) map[lane.QueryClass]Weights {
	out := DefaultWeights()
	for className, lanes := range raw {
		class := lane.QueryClass(className)
		if !class.IsValid() {
			continue
		}
		w, ok := out[class]
		if !ok {
			w = Weights{}
			out[class] = w
		}
		for laneName, weight := range lanes {
			id, err := lane.ParseID(laneName)
			if err != nil {
				continue
			}
			w[id] = weight
		}
	}
	return out
}
