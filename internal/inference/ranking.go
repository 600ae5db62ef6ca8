package inference

import (
	"math"
	"slices"
)

// TopK is the number of predictions returned per frame.
const TopK = 3

// Prediction is one ranked label.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Result holds exactly TopK predictions in descending score order.
type Result []Prediction

// Softmax converts logits into a probability distribution. The maximum logit
// is subtracted first so large values do not overflow.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	peak := float64(slices.Max(logits))
	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v) - peak)
		probs[i] = e
		sum += e
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// TopIndices returns the indices of the k largest probabilities. Equal
// probabilities keep ascending index order.
func TopIndices(probs []float64, k int) []int {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		switch {
		case probs[a] > probs[b]:
			return -1
		case probs[a] < probs[b]:
			return 1
		default:
			return 0
		}
	})
	return idx[:min(k, len(idx))]
}

// Round4 rounds to four decimal places.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Rank maps logits to the top predictions using labels for names.
func Rank(logits []float32, labels []string) Result {
	probs := Softmax(logits)
	top := TopIndices(probs, TopK)
	result := make(Result, 0, len(top))
	for _, i := range top {
		result = append(result, Prediction{Label: labels[i], Score: Round4(probs[i])})
	}
	return result
}
