package metrics

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"meshctl/internal/model"
)

var header = []string{
	"timestamp",
	"reporter",
	"flow",
	"src",
	"dest",
	"window",
	"latency",
	"throughput",
	"bytes",
}

// WriteCSV writes samples to CSV with a fixed column order.
func WriteCSV(w io.Writer, items []model.FlowSample) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writeRecords(writer, items); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// AppendCSV appends samples to path, writing the header only when the file
// is new or empty.
func AppendCSV(path string, items []model.FlowSample) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(header); err != nil {
			return err
		}
	}
	if err := writeRecords(writer, items); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func writeRecords(writer *csv.Writer, items []model.FlowSample) error {
	for _, s := range items {
		record := []string{
			s.Timestamp.UTC().Format(time.RFC3339Nano),
			strconv.FormatUint(uint64(s.Reporter), 10),
			strconv.FormatUint(uint64(s.Flow), 10),
			strconv.FormatUint(uint64(s.Src), 10),
			strconv.FormatUint(uint64(s.Dest), 10),
			strconv.FormatFloat(s.Window, 'f', -1, 64),
			strconv.FormatFloat(s.Latency, 'f', -1, 64),
			strconv.FormatFloat(s.Throughput, 'f', -1, 64),
			strconv.FormatUint(s.Bytes, 10),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// CSVRecorder appends samples to a CSV file.
type CSVRecorder struct {
	Path string
}

// Record appends items to r.Path.
func (r CSVRecorder) Record(items []model.FlowSample) error {
	if r.Path == "" || len(items) == 0 {
		return nil
	}
	return AppendCSV(r.Path, items)
}
