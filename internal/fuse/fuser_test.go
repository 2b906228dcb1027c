package fuse

import (
	"reflect"
	"testing"
	"time"

	"github.com/fathomsearch/fathom/internal/lane"
)

var t0 = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func ev(id lane.ID, source string, score float64, fetchedAt time.Time) lane.Evidence {
	return lane.Evidence{
		Lane:      id,
		SourceID:  source,
		Title:     "title " + source,
		Snippet:   "snippet " + source,
		Score:     score,
		FetchedAt: fetchedAt,
	}
}

func TestFuse_EmptyOnNoSuccess(t *testing.T) {
	results := map[lane.ID]lane.Result{
		lane.Web:    lane.Timeout(lane.Web, 1000),
		lane.Vector: lane.Failure(lane.Vector, lane.ErrorTransport, 80),
	}
	got := Fuse(results, DefaultWeights()[lane.ClassSimple], 20)
	if len(got) != 0 {
		t.Fatalf("expected empty evidence, got %d items", len(got))
	}
}

func TestFuse_SingleLanePreservesScoreOrder(t *testing.T) {
	results := map[lane.ID]lane.Result{
		lane.Web: lane.Success(lane.Web, []lane.Evidence{
			ev(lane.Web, "a", 0.9, t0),
			ev(lane.Web, "b", 0.7, t0),
			ev(lane.Web, "c", 0.4, t0),
		}, 120),
	}
	got := Fuse(results, DefaultWeights()[lane.ClassSimple], 20)
	wantOrder := []string{"a", "b", "c"}
	for i, w := range wantOrder {
		if got[i].SourceID != w {
			t.Fatalf("position %d = %s, want %s", i, got[i].SourceID, w)
		}
	}
}

func TestFuse_DedupKeepsHigherScore(t *testing.T) {
	results := map[lane.ID]lane.Result{
		lane.Web:    lane.Success(lane.Web, []lane.Evidence{ev(lane.Web, "shared", 0.5, t0)}, 100),
		lane.Vector: lane.Success(lane.Vector, []lane.Evidence{ev(lane.Vector, "shared", 0.8, t0)}, 100),
	}
	got := Fuse(results, Weights{lane.Web: 1, lane.Vector: 1}, 20)
	if len(got) != 1 {
		t.Fatalf("expected 1 deduplicated item, got %d", len(got))
	}
	if got[0].Lane != lane.Vector || got[0].Score != 0.8 {
		t.Fatalf("dedup kept %+v, want the higher-scored vector item", got[0])
	}
}

func TestFuse_NormalizationPreventsScaleDomination(t *testing.T) {
	// Vector's raw scores are tiny but its best item should still rank
	// at parity after per-lane normalization.
	results := map[lane.ID]lane.Result{
		lane.Web:    lane.Success(lane.Web, []lane.Evidence{ev(lane.Web, "w", 0.95, t0)}, 100),
		lane.Vector: lane.Success(lane.Vector, []lane.Evidence{ev(lane.Vector, "v", 0.02, t0)}, 100),
	}
	got := Fuse(results, Weights{lane.Web: 1, lane.Vector: 1}, 20)
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	// Both normalize to 1.0 with equal weights; ties break on source ID
	// after lane count and fetch time.
	if got[0].SourceID != "v" || got[1].SourceID != "w" {
		t.Fatalf("tie-break order wrong: %s, %s", got[0].SourceID, got[1].SourceID)
	}
}

func TestFuse_WeightsShiftRanking(t *testing.T) {
	results := map[lane.ID]lane.Result{
		lane.Web:    lane.Success(lane.Web, []lane.Evidence{ev(lane.Web, "w", 1.0, t0)}, 100),
		lane.Vector: lane.Success(lane.Vector, []lane.Evidence{ev(lane.Vector, "v", 1.0, t0)}, 100),
	}
	got := Fuse(results, Weights{lane.Web: 0.5, lane.Vector: 1.0}, 20)
	if got[0].SourceID != "v" {
		t.Fatalf("vector-weighted fusion should rank v first, got %s", got[0].SourceID)
	}
}

func TestFuse_MultiLaneContributionOutranksSingle(t *testing.T) {
	results := map[lane.ID]lane.Result{
		lane.Web: lane.Success(lane.Web, []lane.Evidence{
			ev(lane.Web, "both", 0.8, t0),
			ev(lane.Web, "only-web", 1.0, t0),
		}, 100),
		lane.Keyword: lane.Success(lane.Keyword, []lane.Evidence{
			ev(lane.Keyword, "both", 1.0, t0),
		}, 100),
	}
	got := Fuse(results, Weights{lane.Web: 1, lane.Keyword: 1}, 20)
	if got[0].SourceID != "both" {
		t.Fatalf("source in two lanes should outrank: got %s first", got[0].SourceID)
	}
}

func TestFuse_TruncatesToCap(t *testing.T) {
	items := make([]lane.Evidence, 30)
	for i := range items {
		items[i] = ev(lane.Web, string(rune('a'+i)), 1-float64(i)*0.01, t0)
	}
	results := map[lane.ID]lane.Result{lane.Web: lane.Success(lane.Web, items, 100)}
	got := Fuse(results, DefaultWeights()[lane.ClassSimple], 20)
	if len(got) != 20 {
		t.Fatalf("expected cap of 20, got %d", len(got))
	}
}

func TestFuse_Deterministic(t *testing.T) {
	results := map[lane.ID]lane.Result{
		lane.Web: lane.Success(lane.Web, []lane.Evidence{
			ev(lane.Web, "a", 0.9, t0),
			ev(lane.Web, "b", 0.9, t0),
			ev(lane.Web, "shared", 0.9, t0.Add(time.Minute)),
		}, 100),
		lane.Vector: lane.Success(lane.Vector, []lane.Evidence{
			ev(lane.Vector, "shared", 0.7, t0),
			ev(lane.Vector, "c", 0.7, t0),
		}, 100),
		lane.News: lane.Timeout(lane.News, 1000),
	}
	weights := DefaultWeights()[lane.ClassResearch]

	first := Fuse(results, weights, 20)
	for i := 0; i < 50; i++ {
		if again := Fuse(results, weights, 20); !reflect.DeepEqual(first, again) {
			t.Fatalf("fusion not deterministic on iteration %d:\n%v\nvs\n%v", i, first, again)
		}
	}
}

func TestFuse_StableRanksUnderFloatNearTies(t *testing.T) {
	// A source contributed by three lanes whose weighted sum lands one
	// ULP below 1.0, against a single-lane source fused at exactly 1.0.
	// Summing contributions in a varying order would flip this near-tie
	// between identical calls.
	results := map[lane.ID]lane.Result{
		lane.Web:    lane.Success(lane.Web, []lane.Evidence{ev(lane.Web, "tri", 1.0, t0)}, 100),
		lane.News:   lane.Success(lane.News, []lane.Evidence{ev(lane.News, "tri", 1.0, t0)}, 100),
		lane.Vector: lane.Success(lane.Vector, []lane.Evidence{ev(lane.Vector, "tri", 1.0, t0)}, 100),
		lane.KG:     lane.Success(lane.KG, []lane.Evidence{ev(lane.KG, "solo", 1.0, t0)}, 100),
	}
	weights := Weights{lane.Web: 0.1, lane.News: 0.2, lane.Vector: 0.7, lane.KG: 1.0}

	first := Fuse(results, weights, 20)
	if len(first) != 2 {
		t.Fatalf("expected 2 items, got %d", len(first))
	}
	for i := 0; i < 500; i++ {
		again := Fuse(results, weights, 20)
		for p := range first {
			if again[p].SourceID != first[p].SourceID {
				t.Fatalf("iteration %d: rank %d flipped from %s to %s",
					i, p, first[p].SourceID, again[p].SourceID)
			}
		}
	}
}

func TestWeightsFromFile_Overlay(t *testing.T) {
	w := WeightsFromFile(map[string]map[string]float64{
		"technical": {"web": 0.1, "bogus": 9},
		"warpspeed": {"web": 1},
	})
	if w[lane.ClassTechnical][lane.Web] != 0.1 {
		t.Error("file override not applied")
	}
	if w[lane.ClassTechnical][lane.Vector] != 1.0 {
		t.Error("defaults should survive partial overrides")
	}
	if _, ok := w[lane.QueryClass("warpspeed")]; ok {
		t.Error("unknown class should be ignored")
	}
}
