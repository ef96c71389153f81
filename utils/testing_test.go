package utils

import (
	"errors"
	"fmt"
	"testing"
)

func TestTesting_CompareArrays(t *testing.T) {
	Assert(t, CompareArrays([]byte("abc"), []byte("abc")), "Arrays are not equal")
	Assert(t, !CompareArrays([]byte("abc"), []byte("abd")), "Arrays are equal")
	Assert(t, !CompareArrays([]byte("abc"), []byte("ab")), "Arrays are equal")
}

func TestTesting_CompareArraysUnordered(t *testing.T) {
	a := []int{1, 2, 3, 4, 5}
	b := []int{5, 4, 3, 2, 1}
	Assert(t, CompareArraysUnordered(a, b), "Arrays are not equal")
}

func TestTesting_CompareArraysUnordered_Duplicates(t *testing.T) {
	a := []int{1, 2, 3, 3, 5}
	b := []int{5, 3, 3, 2, 1}
	Assert(t, CompareArraysUnordered(a, b), "Arrays are not equal")
}

func TestTesting_CompareArraysUnordered_DifferentLengths(t *testing.T) {
	a := []int{1, 2, 3, 4, 5}
	b := []int{5, 4, 3, 2}
	Assert(t, !CompareArraysUnordered(a, b), "Arrays are equal")
}

func TestTesting_AssertErrorIs(t *testing.T) {
	sentinel := errors.New("sentinel")
	AssertErrorIs(t, fmt.Errorf("wrapped: %w", sentinel), sentinel)
}
