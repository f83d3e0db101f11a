package models

import (
	"math"
	"testing"
)

func TestNextOrderVariabilityFirstOrderIsZero(t *testing.T) {
	if got := NextOrderVariability(0, 0, 0, 7); got != 0 {
		t.Fatalf("variability of the first order should be 0; got %f", got)
	}
	if got := NextOrderVariability(0, 1, 4, 4); got != 0 {
		t.Fatalf("variability with a single prior order should be 0; got %f", got)
	}
}

func TestNextOrderVariabilityConstantStream(t *testing.T) {
	// A player who always orders the same quantity accumulates no spread.
	variability := 0.0
	for n := 2; n <= 10; n++ {
		variability = NextOrderVariability(variability, n, 4, 4)
		if variability != 0 {
			t.Fatalf("constant orders should keep variability 0; got %f at n=%d", variability, n)
		}
	}
}

func TestNextOrderVariabilityGrowsWithSpread(t *testing.T) {
	steady := NextOrderVariability(0, 4, 4, 5)
	jumpy := NextOrderVariability(0, 4, 4, 20)
	if !(jumpy > steady) {
		t.Fatalf("a larger jump should produce larger variability: jumpy=%f steady=%f", jumpy, steady)
	}
	if math.IsNaN(steady) || math.IsNaN(jumpy) {
		t.Fatalf("variability must never be NaN: steady=%f jumpy=%f", steady, jumpy)
	}
}
