// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

// WithCost returns a copy hashing with the given bcrypt cost.
func (s *Service) WithCost(cost int) *Service {
	cp := *s
	cp.cost = cost
	return &cp
}
