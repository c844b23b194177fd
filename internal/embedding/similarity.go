package embedding

import (
	"math"
	"sort"
)

// CosineSimilarity returns the similarity of two vectors mapped into [0,1]:
// raw cosine in [-1,1] is rescaled via (cos+1)/2. This is the single
// canonical similarity scale of the system; thresholds and reported scores
// all use it. Mismatched lengths or a zero-magnitude vector yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}

	cos := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	scaled := (cos + 1) / 2
	return math.Max(0, math.Min(1, scaled))
}

// Candidate pairs an identifier with its vector for TopK selection.
type Candidate[ID comparable] struct {
	ID     ID
	Vector []float32
}

// Score is a ranked TopK result.
type Score[ID comparable] struct {
	ID    ID
	Score float64
}

// TopK scores every candidate against query with CosineSimilarity, sorts
// descending, and returns the first k. k larger than the candidate set
// returns everything ranked.
func TopK[ID comparable](query []float32, candidates []Candidate[ID], k int) []Score[ID] {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	scores := make([]Score[ID], len(candidates))
	for i, c := range candidates {
		scores[i] = Score[ID]{ID: c.ID, Score: CosineSimilarity(query, c.Vector)}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k]
}
