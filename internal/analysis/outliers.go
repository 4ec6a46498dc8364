package analysis

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
)

// DefaultThresholdPct is how far below the peer median (in percent) a run must
// fall to count as underperforming.
const DefaultThresholdPct = 15.0

// DetectOptions controls DetectOutliers.
type DetectOptions struct {
	// ThresholdPct is a percentage; 15 means "more than 15% below the peer median".
	ThresholdPct float64
	// Parallel evaluates device classes concurrently. Results are identical.
	Parallel bool
}

// Finding describes one flagged OSD.
type Finding struct {
	DeviceClass         string
	OSDID               string
	UnderperformingRuns int
	// ParticipatedRuns counts runs with both a sample and a class median.
	ParticipatedRuns int
	TotalRuns        int
}

// OutlierResult is the outcome of one detection call.
type OutlierResult struct {
	// ByClass maps device class to flagged OSD ids in first-seen order.
	// Classes without flagged devices are absent.
	ByClass      map[string][]string
	Findings     []Finding
	TotalRuns    int
	ThresholdPct float64

	classOrder []string
}

// Classes returns the classes present in ByClass, in table first-seen order.
func (r *OutlierResult) Classes() []string {
	out := make([]string, 0, len(r.ByClass))
	for _, c := range r.classOrder {
		if _, ok := r.ByClass[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Empty reports whether no device was flagged.
func (r *OutlierResult) Empty() bool { return len(r.ByClass) == 0 }

// peerMedian is the per-run class median of both metrics.
type peerMedian struct {
	iops float64
	bw   float64
}

// DetectOutliers flags OSDs that fall more than ThresholdPct below their class's
// per-run median, on iops or bytes_per_sec, in a strict majority of the runs seen
// anywhere in the table. The denominator is the global run count, not the runs
// the OSD took part in, so sparsely sampled OSDs are harder to flag.
func DetectOutliers(t *Table, opt DetectOptions) (*OutlierResult, error) {
	return DetectOutliersContext(context.Background(), t, opt)
}

// DetectOutliersContext is DetectOutliers with cancellation checked between
// device classes.
func DetectOutliersContext(ctx context.Context, t *Table, opt DetectOptions) (*OutlierResult, error) {
	thr := opt.ThresholdPct
	if math.IsNaN(thr) || math.IsInf(thr, 0) || thr < 0 {
		return nil, &ThresholdError{Value: thr}
	}
	if t.Len() == 0 {
		return nil, ErrEmptyDataset
	}

	runs := t.RunNumbers()
	classes := t.DeviceClasses()
	factor := 1 - thr/100

	perClass := make([][]Finding, len(classes))
	if opt.Parallel && len(classes) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for i, class := range classes {
			i, class := i, class
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				perClass[i] = detectClass(t.ByClass(class), class, runs, factor)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, class := range classes {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			perClass[i] = detectClass(t.ByClass(class), class, runs, factor)
		}
	}

	res := &OutlierResult{
		ByClass:      map[string][]string{},
		TotalRuns:    len(runs),
		ThresholdPct: thr,
		classOrder:   classes,
	}
	for i, class := range classes {
		for _, f := range perClass[i] {
			res.ByClass[class] = append(res.ByClass[class], f.OSDID)
			res.Findings = append(res.Findings, f)
		}
	}
	return res, nil
}

func detectClass(ct *Table, class string, runs []int, factor float64) []Finding {
	medians := classMedians(ct)

	type runVal struct {
		iops float64
		bw   float64
	}
	byOSD := make(map[string]map[int]runVal)
	for _, s := range ct.rows {
		m := byOSD[s.OSDID]
		if m == nil {
			m = make(map[int]runVal)
			byOSD[s.OSDID] = m
		}
		m[s.RunNumber] = runVal{iops: s.IOPS, bw: s.BytesPerSec}
	}

	totalRuns := len(runs)
	var flagged []Finding
	for _, osd := range ct.OSDs() {
		var under, participated int
		for _, run := range runs {
			v, ok := byOSD[osd][run]
			if !ok {
				continue
			}
			med, ok := medians[run]
			if !ok {
				continue
			}
			participated++
			if v.iops < med.iops*factor || v.bw < med.bw*factor {
				under++
			}
		}
		if float64(under) > float64(totalRuns)/2 {
			flagged = append(flagged, Finding{
				DeviceClass:         class,
				OSDID:               osd,
				UnderperformingRuns: under,
				ParticipatedRuns:    participated,
				TotalRuns:           totalRuns,
			})
		}
	}
	return flagged
}

// classMedians computes the per-run medians of a single class's samples.
// Runs without samples have no entry.
func classMedians(ct *Table) map[int]peerMedian {
	iops := make(map[int][]float64)
	bw := make(map[int][]float64)
	for _, s := range ct.rows {
		iops[s.RunNumber] = append(iops[s.RunNumber], s.IOPS)
		bw[s.RunNumber] = append(bw[s.RunNumber], s.BytesPerSec)
	}
	out := make(map[int]peerMedian, len(iops))
	for run := range iops {
		out[run] = peerMedian{iops: median(iops[run]), bw: median(bw[run])}
	}
	return out
}
