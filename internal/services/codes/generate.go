// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package codes

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"codeberg.org/procclean/reviewgate/internal/apperr"
	"codeberg.org/procclean/reviewgate/internal/metrics"
	"codeberg.org/procclean/reviewgate/internal/repository"
)

const (
	// SuffixLength is the number of random characters after the prefix.
	SuffixLength = 6
	// MaxPrefixLength keeps prefix plus suffix within the code length limit.
	MaxPrefixLength = 10
	// MaxGenerateCount bounds a single generation request.
	MaxGenerateCount = 50
	// MaxGenerateAttempts bounds the candidates tried per request.
	MaxGenerateAttempts = 100
)

// alphabet for generated suffixes (uppercase + digits).
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// unbiased is the largest multiple of len(alphabet) that fits in a byte.
const unbiased = 256 - 256%len(alphabet)

var prefixRe = regexp.MustCompile(`^[A-Z0-9]*$`)

// GenerateResult reports which codes were created. Created may be
// shorter than Requested when attempts ran out.
type GenerateResult struct {
	Created   []string `json:"created"`
	Requested int      `json:"requested"`
}

// Partial reports whether fewer codes than requested were created.
func (r *GenerateResult) Partial() bool {
	return len(r.Created) < r.Requested
}

// Generate creates count codes of the form prefix + 6 random characters.
// Existing codes are read once; each insert is still guarded by the
// unique constraint.
func (s *Service) Generate(ctx context.Context, count int, prefix, clientLabel string) (*GenerateResult, error) {
	prefix = Normalize(prefix)
	if len(prefix) > MaxPrefixLength || !prefixRe.MatchString(prefix) {
		return nil, apperr.InvalidFormat(fmt.Sprintf("prefix must be at most %d letters or digits", MaxPrefixLength))
	}
	if count < 1 || count > MaxGenerateCount {
		return nil, apperr.Validation(map[string]string{
			"count": fmt.Sprintf("must be between 1 and %d", MaxGenerateCount),
		})
	}

	values, err := s.repo.ListCodeValues(ctx)
	if err != nil {
		return nil, apperr.StoreOp("list codes", err)
	}
	existing := make(map[string]struct{}, len(values)+count)
	for _, v := range values {
		existing[v] = struct{}{}
	}

	result := &GenerateResult{Created: []string{}, Requested: count}
	for attempt := 0; attempt < MaxGenerateAttempts && len(result.Created) < count; attempt++ {
		suffix, err := generateSuffix(SuffixLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}
		candidate := prefix + suffix
		if _, taken := existing[candidate]; taken {
			continue
		}
		existing[candidate] = struct{}{}

		if err := s.repo.InsertCode(ctx, s.newCode(candidate, clientLabel, nil)); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				continue
			}
			return result, apperr.StoreOp("insert code", err)
		}
		result.Created = append(result.Created, candidate)
	}

	metrics.CodesTotal.WithLabelValues("generated").Add(float64(len(result.Created)))
	if result.Partial() {
		slog.Warn("code_generation_partial", "prefix", prefix, "requested", count, "created", len(result.Created))
	} else {
		slog.Info("codes_generated", "prefix", prefix, "count", count)
	}
	return result, nil
}

// RandomCode returns prefix followed by SuffixLength random characters.
// It does not check the store.
func RandomCode(prefix string) (string, error) {
	suffix, err := generateSuffix(SuffixLength)
	if err != nil {
		return "", err
	}
	return prefix + suffix, nil
}

// generateSuffix returns n random characters from alphabet. Bytes at or
// above unbiased are redrawn so every character is equally likely.
func generateSuffix(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= unbiased {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
