// Package resample downsamples a bar series into coarser fixed-size buckets.
// Aggregate is pure: same input, same output, no clock reads, which keeps it
// testable with literal fixtures.
package resample

import "charting-systemv1/internal/model"

// Aggregate partitions bars into left-aligned buckets of bucketSeconds and
// rolls each bucket up: open from the first bar, close from the last, high
// and low from the extremes, volume summed. Session and IsExtended are
// carried from the first bar of the bucket; buckets are assumed not to
// straddle a session change in practice. Buckets are emitted in input order
// and a partially-filled trailing bucket is emitted as-is; callers needing
// only complete buckets filter externally. bucketSeconds <= 1 returns the
// input unchanged.
func Aggregate(bars []model.Bar, bucketSeconds int64) []model.Bar {
	if bucketSeconds <= 1 || len(bars) == 0 {
		return bars
	}

	out := make([]model.Bar, 0, len(bars)/2+1)
	idx := make(map[int64]int, len(bars)/2+1)

	for i := range bars {
		src := &bars[i]
		bucket := model.BucketStart(src.Time, bucketSeconds)

		j, ok := idx[bucket]
		if !ok {
			// First bar of the bucket seeds everything, metadata included.
			idx[bucket] = len(out)
			out = append(out, model.Bar{
				Time:       bucket,
				Open:       src.Open,
				High:       src.High,
				Low:        src.Low,
				Close:      src.Close,
				Volume:     src.Volume,
				Session:    src.Session,
				IsExtended: src.IsExtended,
			})
			continue
		}

		dst := &out[j]
		if src.High > dst.High {
			dst.High = src.High
		}
		if src.Low < dst.Low {
			dst.Low = src.Low
		}
		dst.Close = src.Close
		dst.Volume += src.Volume
	}

	return out
}
