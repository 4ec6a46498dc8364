package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detect(t *testing.T, tbl *Table, thr float64) *OutlierResult {
	t.Helper()
	res, err := DetectOutliers(tbl, DetectOptions{ThresholdPct: thr})
	require.NoError(t, err)
	return res
}

func TestDetectOutliersTwoDeviceScenario(t *testing.T) {
	// Medians 75 and 70; cutoffs at 15% are 63.75 and 59.5.
	tbl := mustTable(t,
		s("hdd", "A", 1, 1000, 100),
		s("hdd", "B", 1, 1000, 50),
		s("hdd", "A", 2, 1000, 100),
		s("hdd", "B", 2, 1000, 40),
	)
	res := detect(t, tbl, 15)
	assert.Equal(t, map[string][]string{"hdd": {"B"}}, res.ByClass)
	assert.Equal(t, 2, res.TotalRuns)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, Finding{DeviceClass: "hdd", OSDID: "B", UnderperformingRuns: 2, ParticipatedRuns: 2, TotalRuns: 2}, res.Findings[0])
	assert.Equal(t, []string{"hdd"}, res.Classes())
}

// majorityTable builds a 3-device class over 4 runs where "slow" underperforms
// (iops 10 against a median of 100) in the first `bad` runs only.
func majorityTable(t *testing.T, bad int) *Table {
	t.Helper()
	var rows []Sample
	for run := 1; run <= 4; run++ {
		slow := 100.0
		if run <= bad {
			slow = 10
		}
		rows = append(rows,
			s("hdd", "fast1", run, 1000, 100),
			s("hdd", "fast2", run, 1000, 100),
			s("hdd", "slow", run, 1000, slow),
		)
	}
	return mustTable(t, rows...)
}

func TestDetectOutliersMajorityBoundary(t *testing.T) {
	assert.True(t, detect(t, majorityTable(t, 2), 15).Empty(), "2 of 4 runs is not a strict majority")

	res := detect(t, majorityTable(t, 3), 15)
	assert.Equal(t, map[string][]string{"hdd": {"slow"}}, res.ByClass)
	assert.Equal(t, 3, res.Findings[0].UnderperformingRuns)
}

func TestDetectOutliersEitherMetricTriggers(t *testing.T) {
	var rows []Sample
	for run := 1; run <= 3; run++ {
		rows = append(rows,
			s("ssd", "a", run, 5000, 1000),
			s("ssd", "b", run, 5000, 1000),
			// bandwidth above median, iops far below
			s("ssd", "c", run, 9000, 100),
		)
	}
	res := detect(t, mustTable(t, rows...), 15)
	assert.Equal(t, map[string][]string{"ssd": {"c"}}, res.ByClass)
}

func TestDetectOutliersBandwidthAloneTriggers(t *testing.T) {
	var rows []Sample
	for run := 1; run <= 3; run++ {
		rows = append(rows,
			s("ssd", "a", run, 5000, 1000),
			s("ssd", "b", run, 5000, 1000),
			s("ssd", "c", run, 100, 5000),
		)
	}
	res := detect(t, mustTable(t, rows...), 15)
	assert.Equal(t, map[string][]string{"ssd": {"c"}}, res.ByClass)
}

func TestDetectOutliersSingleDeviceClassNeverFlagged(t *testing.T) {
	tbl := mustTable(t,
		s("nvme", "solo", 1, 1, 1),
		s("nvme", "solo", 2, 1, 1),
		s("nvme", "solo", 3, 1, 1),
	)
	res := detect(t, tbl, 0)
	assert.True(t, res.Empty())
	assert.NotContains(t, res.ByClass, "nvme")
}

func TestDetectOutliersAbsentRunTolerance(t *testing.T) {
	// 5 global runs; "slow" is missing from run 5 and underperforms in 3 of the other 4.
	var rows []Sample
	for run := 1; run <= 5; run++ {
		rows = append(rows,
			s("hdd", "p1", run, 1000, 100),
			s("hdd", "p2", run, 1000, 100),
		)
		switch {
		case run <= 3:
			rows = append(rows, s("hdd", "slow", run, 1000, 10))
		case run == 4:
			rows = append(rows, s("hdd", "slow", run, 1000, 100))
		}
	}
	res := detect(t, mustTable(t, rows...), 15)
	assert.Equal(t, map[string][]string{"hdd": {"slow"}}, res.ByClass)
	f := res.Findings[0]
	assert.Equal(t, 3, f.UnderperformingRuns)
	assert.Equal(t, 4, f.ParticipatedRuns)
	assert.Equal(t, 5, f.TotalRuns)
}

func TestDetectOutliersGlobalRunDenominator(t *testing.T) {
	// ssd only takes part in run 1 of 3 global runs: 1 > 1.5 is false.
	tbl := mustTable(t,
		s("hdd", "h1", 1, 1, 1),
		s("hdd", "h1", 2, 1, 1),
		s("hdd", "h1", 3, 1, 1),
		s("ssd", "a", 1, 1000, 100),
		s("ssd", "b", 1, 1000, 100),
		s("ssd", "c", 1, 10, 1),
	)
	assert.True(t, detect(t, tbl, 15).Empty())
}

func TestDetectOutliersCutoffIsStrict(t *testing.T) {
	// median 100, threshold 20% => cutoff 80; a value of exactly 80 is not below.
	var rows []Sample
	for run := 1; run <= 2; run++ {
		rows = append(rows,
			s("hdd", "a", run, 1000, 100),
			s("hdd", "b", run, 1000, 100),
			s("hdd", "c", run, 1000, 80),
		)
	}
	assert.True(t, detect(t, mustTable(t, rows...), 20).Empty())
	assert.False(t, detect(t, mustTable(t, rows...), 19).Empty())
}

func TestDetectOutliersOrderingAcrossClasses(t *testing.T) {
	var rows []Sample
	for run := 1; run <= 2; run++ {
		rows = append(rows,
			s("ssd", "s-ok1", run, 1000, 100),
			s("ssd", "s-bad2", run, 1000, 1),
			s("ssd", "s-ok2", run, 1000, 100),
			s("ssd", "s-bad1", run, 1000, 1),
			s("ssd", "s-ok3", run, 1000, 100),
			s("hdd", "h-ok1", run, 1000, 100),
			s("hdd", "h-ok2", run, 1000, 100),
			s("hdd", "h-bad", run, 1, 100),
			s("nvme", "n1", run, 1000, 100),
		)
	}
	res := detect(t, mustTable(t, rows...), 15)
	assert.Equal(t, []string{"s-bad2", "s-bad1"}, res.ByClass["ssd"])
	assert.Equal(t, []string{"h-bad"}, res.ByClass["hdd"])
	assert.Equal(t, []string{"ssd", "hdd"}, res.Classes())
	assert.NotContains(t, res.ByClass, "nvme")
}

func TestDetectOutliersParallelMatchesSerial(t *testing.T) {
	var rows []Sample
	for c := 0; c < 6; c++ {
		class := fmt.Sprintf("class%d", c)
		for run := 1; run <= 5; run++ {
			for d := 0; d < 5; d++ {
				iops := 100.0
				if d == c%5 && run%2 == 1 {
					iops = 20
				}
				rows = append(rows, s(class, fmt.Sprintf("%s-osd%d", class, d), run, 1000, iops))
			}
		}
	}
	tbl := mustTable(t, rows...)
	serial, err := DetectOutliers(tbl, DetectOptions{ThresholdPct: 15})
	require.NoError(t, err)
	parallel, err := DetectOutliers(tbl, DetectOptions{ThresholdPct: 15, Parallel: true})
	require.NoError(t, err)
	assert.Equal(t, serial.ByClass, parallel.ByClass)
	assert.Equal(t, serial.Findings, parallel.Findings)
	assert.Len(t, serial.ByClass, 6)
}

func TestDetectOutliersContextCanceled(t *testing.T) {
	tbl := mustTable(t,
		s("hdd", "0", 1, 1000, 100), s("hdd", "1", 1, 1000, 20),
		s("ssd", "2", 1, 1000, 100), s("ssd", "3", 1, 1000, 100),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, parallel := range []bool{false, true} {
		res, err := DetectOutliersContext(ctx, tbl, DetectOptions{ThresholdPct: 15, Parallel: parallel})
		require.Error(t, err, "parallel=%v", parallel)
		assert.True(t, errors.Is(err, context.Canceled), "parallel=%v: %v", parallel, err)
		assert.Nil(t, res)
	}

	res, err := DetectOutliersContext(context.Background(), tbl, DetectOptions{ThresholdPct: 15, Parallel: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, res.ByClass["hdd"])
}

func TestDetectOutliersDeterministic(t *testing.T) {
	tbl := majorityTable(t, 3)
	a := detect(t, tbl, 15)
	b := detect(t, tbl, 15)
	assert.Equal(t, a.ByClass, b.ByClass)
	assert.Equal(t, a.Findings, b.Findings)
}

func TestDetectOutliersErrors(t *testing.T) {
	_, err := DetectOutliers(mustTable(t), DetectOptions{ThresholdPct: 15})
	assert.True(t, errors.Is(err, ErrEmptyDataset))

	tbl := majorityTable(t, 3)
	for _, thr := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := DetectOutliers(tbl, DetectOptions{ThresholdPct: thr})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidThreshold), "threshold %v", thr)
		var te *ThresholdError
		assert.True(t, errors.As(err, &te))
	}
}

func TestDetectOutliersThresholdAboveHundred(t *testing.T) {
	// 150% makes every cutoff negative: nothing can be below it.
	assert.True(t, detect(t, majorityTable(t, 4), 150).Empty())
}
