package asc

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// some CAN traces carry very long comment lines
const scanBufferCapacity = 1024 * 1024

// Sample is one decoded trace line.
type Sample struct {
	Timestamp float64           `json:"timestamp"`
	Fields    map[string]uint64 `json:"fields"`
}

// DecodeLines decodes every line containing the layout marker and returns the
// samples in input order together with the number of marker lines that were skipped
// as malformed.
func DecodeLines(lines []string, layout Layout) ([]Sample, int) {
	var (
		samples []Sample
		skipped int
	)
	for _, line := range lines {
		if !strings.Contains(line, layout.Marker) {
			continue
		}
		s, ok := decodeLine(line, layout)
		if !ok {
			skipped++
			continue
		}
		samples = append(samples, s)
	}
	return samples, skipped
}

// Decode is DecodeLines over a reader. An error is returned only when reading fails;
// malformed lines are counted, never fatal.
func Decode(r io.Reader, layout Layout) ([]Sample, int, error) {
	var (
		samples []Sample
		skipped int
	)
	scn := bufio.NewScanner(r)
	buf := make([]byte, 64*1024)
	scn.Buffer(buf, scanBufferCapacity)
	for scn.Scan() {
		line := scn.Text()
		if !strings.Contains(line, layout.Marker) {
			continue
		}
		s, ok := decodeLine(line, layout)
		if !ok {
			skipped++
			continue
		}
		samples = append(samples, s)
	}
	if err := scn.Err(); err != nil {
		return samples, skipped, fmt.Errorf("failed to read trace: %w", err)
	}
	return samples, skipped, nil
}

func decodeLine(line string, layout Layout) (Sample, bool) {
	parts := strings.Fields(line)
	if len(parts) <= layout.maxToken() {
		return Sample{}, false
	}
	ts, err := strconv.ParseFloat(parts[0], 64)
	if err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return Sample{}, false
	}
	fields := make(map[string]uint64, len(layout.Fields))
	for _, fp := range layout.Fields {
		raw, err := strconv.ParseUint(parts[fp.Token], 16, 64)
		if err != nil {
			return Sample{}, false
		}
		fields[fp.Name] = fp.extract(raw)
	}
	return Sample{Timestamp: ts, Fields: fields}, true
}
