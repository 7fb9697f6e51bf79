package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/alertbell/internal/models"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CSV reads histories from <dir>/<symbol>.csv. The first column holds the
// timestamp, the remaining columns hold one metric each.
type CSV struct {
	dir    string
	metric string
}

// NewCSV returns a provider over dir. When metric is non-empty only that
// column is returned and rows where it is blank are dropped; otherwise every
// metric column is returned.
func NewCSV(dir, metric string) *CSV {
	return &CSV{dir: dir, metric: metric}
}

func (c *CSV) History(ctx context.Context, symbol models.Symbol) (*models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := symbol.Name()
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid symbol name %q", name)
	}

	f, err := os.Open(filepath.Join(c.dir, name+".csv"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history for %s: %w", name, err)
	}
	defer f.Close()

	frame, err := c.parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse history for %s: %w", name, err)
	}
	return frame, nil
}

func (c *CSV) parse(r io.Reader) (*models.Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("header needs a timestamp and at least one metric column")
	}

	columns := header[1:]
	indexes := make([]int, len(columns))
	for i := range columns {
		indexes[i] = i + 1
	}
	if c.metric != "" {
		idx := slices.Index(columns, c.metric)
		if idx < 0 {
			return nil, fmt.Errorf("metric column %q not found", c.metric)
		}
		columns = []string{c.metric}
		indexes = []int{idx + 1}
	}

	frame := &models.Frame{Columns: columns}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := parseTimestamp(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row := models.FrameRow{Timestamp: ts, Values: make([]float64, 0, len(indexes))}
		blank := false
		for _, idx := range indexes {
			cell := strings.TrimSpace(record[idx])
			if cell == "" {
				blank = true
				row.Values = append(row.Values, math.NaN())
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid value %q: %w", line, cell, err)
			}
			row.Values = append(row.Values, v)
		}
		if blank && c.metric != "" {
			continue
		}
		frame.Rows = append(frame.Rows, row)
	}

	slices.SortStableFunc(frame.Rows, func(a, b models.FrameRow) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return frame, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
