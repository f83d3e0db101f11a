package models

import "testing"

func TestStepDemand(t *testing.T) {
	cases := []struct {
		name       string
		week       int
		baseValue  int
		stepWeek   int
		stepAmount int
		want       int
	}{
		{"before step", 4, 4, 5, 4, 4},
		{"at step week", 5, 4, 5, 4, 8},
		{"after step", 20, 4, 5, 4, 8},
		{"week one", 1, 4, 5, 4, 4},
		{"negative step shrinks demand", 6, 10, 5, -4, 6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := StepDemand(tc.week, tc.baseValue, tc.stepWeek, tc.stepAmount)
			if got != tc.want {
				t.Fatalf("StepDemand(%d, %d, %d, %d) = %d, want %d",
					tc.week, tc.baseValue, tc.stepWeek, tc.stepAmount, got, tc.want)
			}
		})
	}
}

func TestNormalRandomDemandNeverNegative(t *testing.T) {
	// Mean far below zero forces the clamp on nearly every draw.
	for i := 0; i < 1000; i++ {
		if got := NormalRandomDemand(-50, 4); got != 0 {
			t.Fatalf("expected clamp to 0 for strongly negative mean; got %d", got)
		}
	}
	for i := 0; i < 1000; i++ {
		if got := NormalRandomDemand(8, 4); got < 0 {
			t.Fatalf("negative demand drawn: %d", got)
		}
	}
}

func TestNormalRandomDemandZeroVarianceIsMean(t *testing.T) {
	for i := 0; i < 100; i++ {
		if got := NormalRandomDemand(8, 0); got != 8 {
			t.Fatalf("zero variance should always return the mean; got %d", got)
		}
	}
}

func TestPoissonRandomDemand(t *testing.T) {
	if got := PoissonRandomDemand(0); got != 0 {
		t.Fatalf("lambda=0 should yield 0; got %d", got)
	}
	if got := PoissonRandomDemand(-3); got != 0 {
		t.Fatalf("negative lambda should yield 0; got %d", got)
	}
	total := 0
	n := 5000
	for i := 0; i < n; i++ {
		d := PoissonRandomDemand(8)
		if d < 0 {
			t.Fatalf("negative poisson draw: %d", d)
		}
		total += d
	}
	mean := float64(total) / float64(n)
	if mean < 7 || mean > 9 {
		t.Fatalf("poisson(8) sample mean far off: %.2f", mean)
	}
}

func TestNextDemandFixedPattern(t *testing.T) {
	game := &Game{DemandPattern: DemandPatternFixed, FixedDemand: 4}
	for week := 1; week <= 10; week++ {
		if got := NextDemand(game, week); got != 4 {
			t.Fatalf("week %d: fixed demand = %d, want 4", week, got)
		}
	}
}

func TestNextDemandStepPattern(t *testing.T) {
	game := &Game{
		DemandPattern: DemandPatternStep,
		FixedDemand:   4,
		StepWeek:      5,
		StepAmount:    4,
	}
	if got := NextDemand(game, 4); got != 4 {
		t.Fatalf("week 4 = %d, want 4", got)
	}
	if got := NextDemand(game, 5); got != 8 {
		t.Fatalf("week 5 = %d, want 8", got)
	}
}
