// Package dataset loads the HR attrition CSV into preprocessing rows.
package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/YuminosukeSato/wagewizard/pkg/errors"
	"github.com/YuminosukeSato/wagewizard/pkg/log"
	"github.com/YuminosukeSato/wagewizard/preprocessing"
)

// LoadCSV reads the dataset at path. See ReadCSV.
func LoadCSV(path string, schema preprocessing.Schema) ([]preprocessing.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()

	start := time.Now()
	rows, err := ReadCSV(f, path, schema)
	if err != nil {
		return nil, err
	}
	log.GetLoggerWithName("dataset").Info("Dataset loaded",
		log.PathKey, path,
		log.SamplesKey, len(rows),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return rows, nil
}

// ReadCSV parses a headered CSV. The header must name every feature of
// schema and the target; other columns, including the dropped ones, are
// ignored. Any malformed row aborts the read with a DatasetError carrying
// the CSV line and column. name is only used in error messages.
func ReadCSV(r io.Reader, name string, schema preprocessing.Schema) ([]preprocessing.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewDatasetError(name, 1, "", "empty file")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read header of %s", name)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		// Excel exports prepend a BOM to the first column name.
		index[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}

	type column struct {
		name        string
		pos         int
		categorical bool
	}
	required := make([]column, 0, len(schema.Features)+1)
	for _, f := range schema.Features {
		required = append(required, column{name: f.Name, categorical: f.Categorical})
	}
	required = append(required, column{name: schema.Target})
	for i := range required {
		pos, ok := index[required[i].name]
		if !ok {
			return nil, errors.NewDatasetError(name, 0, required[i].name, "missing required column")
		}
		required[i].pos = pos
	}

	var rows []preprocessing.Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", name)
		}
		line, _ := reader.FieldPos(0)

		row := preprocessing.Row{Line: line}
		for _, col := range required {
			if col.pos >= len(record) {
				return nil, errors.NewDatasetError(name, line, col.name,
					"row has "+strconv.Itoa(len(record))+" fields, header has "+strconv.Itoa(len(header)))
			}
			cell := strings.TrimSpace(record[col.pos])
			if cell == "" {
				return nil, errors.NewDatasetError(name, line, col.name, "empty value")
			}

			if col.categorical {
				row.SetCategorical(col.name, cell)
				continue
			}
			v, err := strconv.Atoi(cell)
			if err != nil {
				return nil, errors.NewDatasetError(name, line, col.name, "not an integer: "+strconv.Quote(cell))
			}
			if col.name == schema.Target {
				row.MonthlyIncome = v
				continue
			}
			row.SetNumeric(col.name, v)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, errors.NewModelError("dataset.ReadCSV", "no data rows in "+name, errors.ErrEmptyData)
	}
	return rows, nil
}
