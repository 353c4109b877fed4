package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/medscreen/diabrisk/pkg/errors"
)

// Load reads the diabetes CSV at path into a Table. Files ending in ".xz"
// are decompressed transparently. The header must match Columns exactly;
// the three flag columns and the label are validated to be 0/1.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "open xz stream %s", path)
		}
		r = xr
	}

	return Read(r)
}

// Read parses the diabetes CSV from r.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	for i, name := range Columns {
		if strings.TrimSpace(header[i]) != name {
			return nil, errors.NewValidationError(
				"header",
				fmt.Sprintf("expected column %q at position %d", name, i),
				header[i],
			)
		}
	}

	t := NewTable(1024)
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read row %d", line)
		}
		line++

		row, err := parseRow(record, line)
		if err != nil {
			return nil, err
		}
		t.Gender = append(t.Gender, row.gender)
		t.Age = append(t.Age, row.age)
		t.Hypertension = append(t.Hypertension, row.hypertension)
		t.HeartDisease = append(t.HeartDisease, row.heartDisease)
		t.Smoking = append(t.Smoking, row.smoking)
		t.BMI = append(t.BMI, row.bmi)
		t.HbA1c = append(t.HbA1c, row.hba1c)
		t.Glucose = append(t.Glucose, row.glucose)
		t.Diabetes = append(t.Diabetes, row.diabetes)
	}

	if t.Len() == 0 {
		return nil, errors.NewModelError("dataset.Read", "no data rows", errors.ErrEmptyData)
	}
	return t, nil
}

type parsedRow struct {
	gender       string
	age          float64
	hypertension float64
	heartDisease float64
	smoking      string
	bmi          float64
	hba1c        float64
	glucose      float64
	diabetes     float64
}

func parseRow(record []string, line int) (parsedRow, error) {
	var row parsedRow
	var err error

	row.gender = strings.TrimSpace(record[0])
	row.smoking = strings.TrimSpace(record[4])

	if row.age, err = parseFloat(record[1], "age", line); err != nil {
		return row, err
	}
	if row.hypertension, err = parseFlag(record[2], "hypertension", line); err != nil {
		return row, err
	}
	if row.heartDisease, err = parseFlag(record[3], "heart_disease", line); err != nil {
		return row, err
	}
	if row.bmi, err = parseFloat(record[5], "bmi", line); err != nil {
		return row, err
	}
	if row.hba1c, err = parseFloat(record[6], "HbA1c_level", line); err != nil {
		return row, err
	}
	if row.glucose, err = parseFloat(record[7], "blood_glucose_level", line); err != nil {
		return row, err
	}
	if row.diabetes, err = parseFlag(record[8], "diabetes", line); err != nil {
		return row, err
	}
	return row, nil
}

func parseFloat(s, column string, line int) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.NewValidationError(
			column,
			fmt.Sprintf("not a number at line %d", line),
			s,
		)
	}
	return v, nil
}

func parseFlag(s, column string, line int) (float64, error) {
	v, err := parseFloat(s, column, line)
	if err != nil {
		return 0, err
	}
	if v != 0 && v != 1 {
		return 0, errors.NewValidationError(
			column,
			fmt.Sprintf("must be 0 or 1 at line %d", line),
			v,
		)
	}
	return v, nil
}
