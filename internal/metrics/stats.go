package metrics

import (
	"math"
	"sort"
	"time"

	"meshctl/internal/model"
)

// Summary is a per-flow statistics snapshot.
type Summary struct {
	Flow          model.FlowID
	Count         int
	From          time.Time
	To            time.Time
	AvgLatency    float64
	P95Latency    float64
	MaxLatency    float64
	AvgThroughput float64
	LastBytes     uint64
}

// Summarize groups samples at or after since by flow, ordered by flow id.
func Summarize(items []model.FlowSample, since time.Time) []Summary {
	byFlow := map[model.FlowID][]model.FlowSample{}
	for _, s := range items {
		if s.Timestamp.Before(since) {
			continue
		}
		byFlow[s.Flow] = append(byFlow[s.Flow], s)
	}

	out := make([]Summary, 0, len(byFlow))
	for flow, samples := range byFlow {
		out = append(out, summarizeFlow(flow, samples))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Flow < out[j].Flow })
	return out
}

func summarizeFlow(flow model.FlowID, samples []model.FlowSample) Summary {
	values := make([]float64, 0, len(samples))
	var sumLatency, sumThroughput float64
	maxLatency := 0.0
	from := samples[0].Timestamp
	to := samples[0].Timestamp
	last := samples[0]

	for _, s := range samples {
		values = append(values, s.Latency)
		sumLatency += s.Latency
		sumThroughput += s.Throughput
		if s.Latency > maxLatency {
			maxLatency = s.Latency
		}
		if s.Timestamp.Before(from) {
			from = s.Timestamp
		}
		if !s.Timestamp.Before(to) {
			to = s.Timestamp
			last = s
		}
	}

	sort.Float64s(values)
	count := float64(len(samples))

	return Summary{
		Flow:          flow,
		Count:         len(samples),
		From:          from,
		To:            to,
		AvgLatency:    sumLatency / count,
		P95Latency:    percentile(values, 0.95),
		MaxLatency:    maxLatency,
		AvgThroughput: sumThroughput / count,
		LastBytes:     last.Bytes,
	}
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return values[0]
	}
	if p >= 1 {
		return values[len(values)-1]
	}
	idx := int(math.Ceil(p*float64(len(values)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}
