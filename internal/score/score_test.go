package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		keywords  []string
		want      map[string]int
		wantTotal int
	}{
		{
			name:      "hyphenated keyword matches whole words",
			text:      "GPT-4 is here. GPT-4 rocks.",
			keywords:  []string{"GPT-4"},
			want:      map[string]int{"GPT-4": 2},
			wantTotal: 2,
		},
		{
			name:      "case insensitive",
			text:      "Quantum computing and QUANTUM physics",
			keywords:  []string{"quantum"},
			want:      map[string]int{"quantum": 2},
			wantTotal: 2,
		},
		{
			name:      "no partial word matches",
			text:      "catalog cats category cat",
			keywords:  []string{"cat"},
			want:      map[string]int{"cat": 1},
			wantTotal: 1,
		},
		{
			name:      "absent keyword is zero not error",
			text:      "nothing relevant here",
			keywords:  []string{"blockchain"},
			want:      map[string]int{"blockchain": 0},
			wantTotal: 0,
		},
		{
			name:      "empty keyword list",
			text:      "some text",
			keywords:  nil,
			want:      map[string]int{},
			wantTotal: 0,
		},
		{
			name:      "total sums across keywords",
			text:      "go is fast, go is simple, rust is safe",
			keywords:  []string{"go", "rust"},
			want:      map[string]int{"go": 2, "rust": 1},
			wantTotal: 3,
		},
		{
			name:      "accented keyword respects word boundaries",
			text:      "Le café est ouvert. Les cafés ferment. CAFÉ!",
			keywords:  []string{"café"},
			want:      map[string]int{"café": 2},
			wantTotal: 2,
		},
		{
			name:      "keyword ending in symbol",
			text:      "We ship C++ services. c++ everywhere.",
			keywords:  []string{"C++"},
			want:      map[string]int{"C++": 2},
			wantTotal: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			counts, total := Keywords(tt.text, tt.keywords)
			assert.Equal(t, tt.want, counts)
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}

func TestKeywordsIdempotent(t *testing.T) {
	t.Parallel()

	text := "GPT-4 is here. GPT-4 rocks."
	first, firstTotal := Keywords(text, []string{"GPT-4"})
	second, secondTotal := Keywords(text, []string{"GPT-4"})
	require.Equal(t, first, second)
	require.Equal(t, firstTotal, secondTotal)
}
