package inference

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestSoftmaxSumsToOne(t *testing.T) {
	probs := Softmax([]float32{1000, 999, -1000, 0})
	var sum float64
	for _, p := range probs {
		if p < 0 || p > 1 || math.IsNaN(p) {
			t.Fatalf("probability out of range: %v", p)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("expected sum 1, got %v", sum)
	}
	if Softmax(nil) != nil {
		t.Fatal("expected nil for empty logits")
	}
}

func TestTopIndicesBreaksTiesByIndex(t *testing.T) {
	probs := []float64{0.1, 0.3, 0.3, 0.3}
	got := TopIndices(probs, 3)
	want := []int{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestRankProperties(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	labels := make([]string, 50)
	for i := range labels {
		labels[i] = string(rune('a'+i%26)) + string(rune('A'+i/26))
	}
	for range 200 {
		logits := make([]float32, len(labels))
		for i := range logits {
			logits[i] = float32(rng.NormFloat64() * 5)
		}
		result := Rank(logits, labels)
		if len(result) != TopK {
			t.Fatalf("expected %d predictions, got %d", TopK, len(result))
		}
		for i, p := range result {
			if p.Score < 0 || p.Score > 1 {
				t.Fatalf("score out of range: %v", p.Score)
			}
			if i > 0 && p.Score > result[i-1].Score {
				t.Fatalf("scores not descending: %+v", result)
			}
		}
	}
}

func TestRankUniformLogits(t *testing.T) {
	result := Rank([]float32{2, 2, 2, 2}, []string{"w", "x", "y", "z"})
	if result[0].Label != "w" || result[1].Label != "x" || result[2].Label != "y" {
		t.Fatalf("expected index order on ties, got %+v", result)
	}
	if result[0].Score != 0.25 {
		t.Fatalf("expected 0.25, got %v", result[0].Score)
	}
}

func TestRound4(t *testing.T) {
	tests := map[float64]float64{
		0.123449:  0.1234,
		0.123451:  0.1235,
		1:         1,
		0.0000499: 0,
	}
	for in, want := range tests {
		if got := Round4(in); got != want {
			t.Errorf("Round4(%v) = %v, want %v", in, got, want)
		}
	}
}
