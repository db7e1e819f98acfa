// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package stats derives rating summaries from a set of reviews.
package stats

import (
	"math"
)

// Rating bounds covered by the distribution.
const (
	MinRating = 1
	MaxRating = 5
)

// Summary aggregates ratings. Distribution always holds every rating
// from MinRating to MaxRating, zero when absent.
type Summary struct {
	Distribution map[int]int `json:"distribution"`
	Average      float64     `json:"average"`
	Total        int         `json:"total"`
}

// Compute summarizes ratings. Out-of-range values are ignored. The
// average is rounded to one decimal and is 0 for an empty set.
func Compute(ratings []int) Summary {
	s := Summary{Distribution: make(map[int]int, MaxRating-MinRating+1)}
	for r := MinRating; r <= MaxRating; r++ {
		s.Distribution[r] = 0
	}

	sum := 0
	for _, r := range ratings {
		if r < MinRating || r > MaxRating {
			continue
		}
		s.Distribution[r]++
		s.Total++
		sum += r
	}

	if s.Total > 0 {
		s.Average = math.Round(float64(sum)/float64(s.Total)*10) / 10
	}
	return s
}
