package metrics

// DurationBuckets defines default latency buckets shared by the engine's
// duration histograms (poll ticks, webhook handling, execution runs).
var DurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
