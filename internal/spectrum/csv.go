package spectrum

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/RMahshie/panda/pkg/panda"
)

var csvColumns = []string{
	"order",
	"current_magnitude",
	"current_phase",
	"voltage_magnitude",
	"voltage_phase",
}

// ReadCSV reads a table with one row per harmonic order. The header must name the
// columns order, current_magnitude, current_phase, voltage_magnitude and
// voltage_phase in any order; other columns are ignored. Lines starting with '#'
// are comments.
func ReadCSV(ctx context.Context, r io.Reader, _ Options) (*Measurement, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, malformed("empty CSV input")
	}
	if err != nil {
		return nil, malformed("failed to read CSV header: %v", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	cols := make([]int, len(csvColumns))
	for i, name := range csvColumns {
		c, ok := index[name]
		if !ok {
			return nil, malformed("CSV header is missing column %q", name)
		}
		cols[i] = c
	}

	m := &Measurement{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed("failed to read CSV row: %v", err)
		}

		line, _ := cr.FieldPos(0)
		var v [5]float64
		for i, c := range cols {
			if c >= len(record) {
				return nil, malformed("line %d: missing %s", line, csvColumns[i])
			}
			v[i], err = strconv.ParseFloat(strings.TrimSpace(record[c]), 64)
			if err != nil {
				return nil, malformed("line %d: %s: %v", line, csvColumns[i], err)
			}
		}

		m.Current = append(m.Current, panda.Harmonic{Order: v[0], Magnitude: v[1], Phase: v[2]})
		m.Voltage = append(m.Voltage, panda.Harmonic{Order: v[0], Magnitude: v[3], Phase: v[4]})
	}

	if len(m.Current) == 0 {
		return nil, malformed("CSV input has no harmonic rows")
	}
	m.Current = sortByOrder(m.Current)
	m.Voltage = sortByOrder(m.Voltage)
	return m, nil
}
