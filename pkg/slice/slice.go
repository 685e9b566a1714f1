// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package slice holds generic helpers the standard [slices] package lacks.
package slice

// Map converts every element of input with transform. A nil input stays nil,
// so optional filters keep their "not provided" meaning.
func Map[T any, U any](input []T, transform func(T) U) []U {
	if input == nil {
		return nil
	}

	result := make([]U, len(input))
	for i, v := range input {
		result[i] = transform(v)
	}
	return result
}
