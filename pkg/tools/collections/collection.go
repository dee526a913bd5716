package collections

import (
	"cmp"
	"slices"
)

func Keys[K comparable, V any](m map[K]V) []K {
	result := make([]K, 0, len(m))
	for k := range m {
		result = append(result, k)
	}
	return result
}

// SortedKeys returns the keys of m in ascending order, for deterministic iteration.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	result := Keys(m)
	slices.Sort(result)
	return result
}

func Contains[T comparable](list []T, t T) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

func ContainsAny[T comparable](list []T, values ...T) bool {
	f := func(list []T, values ...T) bool {
		for _, v := range list {
			if Contains(values, v) {
				return true
			}
		}
		return false
	}
	if len(list) > len(values) {
		return f(values, list...)
	}
	return f(list, values...)
}

func Filter[T any](list []T, keep func(T) bool) []T {
	var result []T
	for _, v := range list {
		if keep(v) {
			result = append(result, v)
		}
	}
	return result
}

// Uniq keeps the first occurrence of every element, preserving order.
func Uniq[T comparable](list []T) []T {
	seen := make(map[T]struct{}, len(list))
	result := make([]T, 0, len(list))
	for _, v := range list {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
