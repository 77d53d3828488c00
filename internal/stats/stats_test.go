package stats

import (
	"math"
	"sync"
	"testing"
)

func batchMeanVariance(sizes []float64) (mean, variance float64) {
	if len(sizes) == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range sizes {
		sum += s
	}
	mean = sum / float64(len(sizes))
	var sq float64
	for _, s := range sizes {
		d := s - mean
		sq += d * d
	}
	return mean, sq / float64(len(sizes))
}

func TestObserveMatchesBatchRecomputation(t *testing.T) {
	tests := []struct {
		name  string
		sizes []float64
	}{
		{"constant", []float64{100, 100, 100, 100}},
		{"increasing", []float64{10, 20, 30, 40, 50, 60}},
		{"single", []float64{42}},
		{"spiky", []float64{50, 55, 48, 52, 51, 49, 35000}},
		{"small values", []float64{0.5, 1.5, 2.5, 0.1, 9.9, 3.3, 7.7}},
		{"wide range", []float64{1, 1000000, 5, 250000, 33, 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			var last Snapshot
			for _, size := range tt.sizes {
				_, last = store.Observe("m1", size)
			}

			wantMean, wantVar := batchMeanVariance(tt.sizes)

			if last.Count != int64(len(tt.sizes)) {
				t.Fatalf("count = %d, want %d", last.Count, len(tt.sizes))
			}
			if math.Abs(last.Mean-wantMean) > 1e-6*math.Max(1, math.Abs(wantMean)) {
				t.Errorf("mean = %v, want %v", last.Mean, wantMean)
			}
			if math.Abs(last.Variance()-wantVar) > 1e-6*math.Max(1, wantVar) {
				t.Errorf("variance = %v, want %v", last.Variance(), wantVar)
			}
		})
	}
}

func TestObserveReturnsPreUpdateSnapshot(t *testing.T) {
	store := NewStore()
	pre, post := store.Observe("m1", 100)
	if pre.Count != 0 || pre.Mean != 0 {
		t.Errorf("first pre-update snapshot = %+v, want zero value", pre)
	}
	if post.Count != 1 || post.Mean != 100 {
		t.Errorf("first post-update snapshot = %+v", post)
	}

	pre, _ = store.Observe("m1", 200)
	if pre.Count != 1 || pre.Mean != 100 {
		t.Errorf("second pre-update snapshot = %+v, want count=1 mean=100", pre)
	}
}

func TestObserveConcurrentSingleMarket(t *testing.T) {
	// 200 identical observations from 8 goroutines: if the per-market lock
	// is broken the mean drifts or M2 goes negative.
	store := NewStore()

	const goroutines = 8
	const perGoroutine = 25

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				store.Observe("m1", 500)
			}
		}()
	}
	wg.Wait()

	snap := store.Snapshot("m1")
	if snap.Count != goroutines*perGoroutine {
		t.Fatalf("count = %d, want %d", snap.Count, goroutines*perGoroutine)
	}
	if math.Abs(snap.Mean-500) > 1e-9 {
		t.Errorf("mean = %v, want 500", snap.Mean)
	}
	if snap.M2 < 0 || snap.M2 > 1e-3 {
		t.Errorf("M2 = %v, want ~0", snap.M2)
	}
}

func TestZScoreColdStart(t *testing.T) {
	// Fewer than ColdStartMinSamples observations: the fixed reference
	// spread applies, not the (explosive) sample estimate.
	pre := Snapshot{Count: 2, Mean: 10, M2: 2}
	z := ZScore(3500, pre, 500, 1500)
	want := (3500.0 - 500.0) / 1500.0
	if math.Abs(z-want) > 1e-9 {
		t.Errorf("cold-start z = %v, want %v", z, want)
	}
}

func TestZScoreWarm(t *testing.T) {
	store := NewStore()
	sizes := []float64{40, 50, 60, 50, 45, 55}
	var last Snapshot
	for _, s := range sizes {
		_, last = store.Observe("m1", s)
	}

	z := ZScore(last.Mean+2*last.StdDev(), last, 500, 1500)
	if math.Abs(z-2) > 1e-9 {
		t.Errorf("z = %v, want 2", z)
	}
}

func TestZScoreZeroSpreadFallsBackToReference(t *testing.T) {
	store := NewStore()
	for i := 0; i < 10; i++ {
		store.Observe("m1", 100)
	}
	snap := store.Snapshot("m1")
	z := ZScore(1600, snap, 500, 1500)
	want := (1600.0 - 100.0) / 1500.0
	if math.Abs(z-want) > 1e-9 {
		t.Errorf("zero-spread z = %v, want %v", z, want)
	}
}
