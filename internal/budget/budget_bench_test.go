package budget

import (
	"fmt"
	"strings"
	"testing"
)

func BenchmarkEstimateTokens(b *testing.B) {
	sizes := []int{16, 128, 1024, 8192}
	for _, n := range sizes {
		text := strings.Repeat("word ", n)
		b.Run(fmt.Sprintf("words=%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = EstimateTokens(text)
			}
		})
	}
}

func BenchmarkTargetTokens(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = TargetTokens(1024, 50)
	}
}
