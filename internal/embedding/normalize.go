package embedding

import (
	"fmt"
	"math"

	"github.com/hyperjump/researchpilot/internal/models"
)

// toUnit scales vec in place to unit length. Collections compare by cosine, so a
// vector with no direction, or one carrying NaN or Inf, is rejected.
func toUnit(vec []float32) error {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return fmt.Errorf("model returned a vector with norm %v: %w", math.Sqrt(sum), models.ErrEmbedding)
	}
	scale := 1 / math.Sqrt(sum)
	for i, v := range vec {
		vec[i] = float32(float64(v) * scale)
	}
	return nil
}
