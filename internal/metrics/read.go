package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"meshctl/internal/model"
)

// ReadCSV loads flow samples from a CSV file.
func ReadCSV(path string) ([]model.FlowSample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return readCSV(file)
}

func readCSV(r io.Reader) ([]model.FlowSample, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	start := 0
	if len(records[0]) > 0 && records[0][0] == "timestamp" {
		start = 1
	}

	items := make([]model.FlowSample, 0, len(records)-start)
	for i := start; i < len(records); i++ {
		rec := records[i]
		if len(rec) < len(header) {
			return nil, fmt.Errorf("invalid record at line %d", i+1)
		}
		ts, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp at line %d: %w", i+1, err)
		}
		reporter, _ := strconv.ParseUint(rec[1], 10, 32)
		flow, _ := strconv.ParseUint(rec[2], 10, 32)
		src, _ := strconv.ParseUint(rec[3], 10, 32)
		dest, _ := strconv.ParseUint(rec[4], 10, 32)
		window, _ := strconv.ParseFloat(rec[5], 64)
		latency, _ := strconv.ParseFloat(rec[6], 64)
		throughput, _ := strconv.ParseFloat(rec[7], 64)
		bytes, _ := strconv.ParseUint(rec[8], 10, 64)
		items = append(items, model.FlowSample{
			Timestamp:  ts,
			Reporter:   model.NodeID(reporter),
			Flow:       model.FlowID(flow),
			Src:        model.NodeID(src),
			Dest:       model.NodeID(dest),
			Window:     window,
			Latency:    latency,
			Throughput: throughput,
			Bytes:      bytes,
		})
	}

	return items, nil
}
