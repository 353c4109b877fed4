// Package dataset loads and prepares the diabetes screening table: one row
// per patient, eight predictors and a binary diabetes label.
//
// The table is column-oriented. Partitions (train/test, CV folds) are
// expressed as row index sets and materialized with Select, so the cleaned
// table itself is never mutated after loading.
package dataset

import (
	"gonum.org/v1/gonum/mat"

	"github.com/medscreen/diabrisk/pkg/errors"
)

// Column names of the input CSV, in order.
var Columns = []string{
	"gender",
	"age",
	"hypertension",
	"heart_disease",
	"smoking_history",
	"bmi",
	"HbA1c_level",
	"blood_glucose_level",
	"diabetes",
}

// NumericFeatureNames are the columns carried into the numeric design
// matrix, in NumericMatrix column order.
var NumericFeatureNames = []string{
	"age", "hypertension", "heart_disease", "bmi", "HbA1c_level", "blood_glucose_level",
}

// CategoricalFeatureNames are the string-valued predictor columns, in
// Categorical column order.
var CategoricalFeatureNames = []string{"gender", "smoking_history"}

// Table is the in-memory diabetes dataset. All column slices have equal
// length. Hypertension, HeartDisease and Diabetes hold 0/1 values.
type Table struct {
	Gender       []string
	Age          []float64
	Hypertension []float64
	HeartDisease []float64
	Smoking      []string
	BMI          []float64
	HbA1c        []float64
	Glucose      []float64
	Diabetes     []float64
}

// NewTable returns an empty table with capacity for n rows.
func NewTable(n int) *Table {
	return &Table{
		Gender:       make([]string, 0, n),
		Age:          make([]float64, 0, n),
		Hypertension: make([]float64, 0, n),
		HeartDisease: make([]float64, 0, n),
		Smoking:      make([]string, 0, n),
		BMI:          make([]float64, 0, n),
		HbA1c:        make([]float64, 0, n),
		Glucose:      make([]float64, 0, n),
		Diabetes:     make([]float64, 0, n),
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Diabetes)
}

// appendFrom copies row i of src onto t.
func (t *Table) appendFrom(src *Table, i int) {
	t.Gender = append(t.Gender, src.Gender[i])
	t.Age = append(t.Age, src.Age[i])
	t.Hypertension = append(t.Hypertension, src.Hypertension[i])
	t.HeartDisease = append(t.HeartDisease, src.HeartDisease[i])
	t.Smoking = append(t.Smoking, src.Smoking[i])
	t.BMI = append(t.BMI, src.BMI[i])
	t.HbA1c = append(t.HbA1c, src.HbA1c[i])
	t.Glucose = append(t.Glucose, src.Glucose[i])
	t.Diabetes = append(t.Diabetes, src.Diabetes[i])
}

// Select materializes a new table holding the given rows, in order. Indices
// may repeat (oversampling relies on this).
func (t *Table) Select(indices []int) (*Table, error) {
	out := NewTable(len(indices))
	n := t.Len()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, errors.NewValidationError("indices", "row index out of range", idx)
		}
		out.appendFrom(t, idx)
	}
	return out, nil
}

// Labels returns the diabetes column as a column vector.
func (t *Table) Labels() *mat.VecDense {
	return mat.NewVecDense(t.Len(), append([]float64(nil), t.Diabetes...))
}

// LabelMatrix returns the diabetes column as an n x 1 matrix, the shape the
// classifiers' Fit expects.
func (t *Table) LabelMatrix() *mat.Dense {
	n := t.Len()
	m := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		m.Set(i, 0, t.Diabetes[i])
	}
	return m
}

// NumericMatrix returns the numeric predictors as an n x 6 matrix in
// NumericFeatureNames order. The 0/1 flag columns ride along as numerics.
func (t *Table) NumericMatrix() *mat.Dense {
	n := t.Len()
	m := mat.NewDense(n, len(NumericFeatureNames), nil)
	for i := 0; i < n; i++ {
		m.Set(i, 0, t.Age[i])
		m.Set(i, 1, t.Hypertension[i])
		m.Set(i, 2, t.HeartDisease[i])
		m.Set(i, 3, t.BMI[i])
		m.Set(i, 4, t.HbA1c[i])
		m.Set(i, 5, t.Glucose[i])
	}
	return m
}

// Categorical returns the string predictors row-wise in
// CategoricalFeatureNames order, the shape OneHotEncoder consumes.
func (t *Table) Categorical() [][]string {
	n := t.Len()
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		rows[i] = []string{t.Gender[i], t.Smoking[i]}
	}
	return rows
}

// PositiveCount returns the number of diabetes=1 rows.
func (t *Table) PositiveCount() int {
	count := 0
	for _, v := range t.Diabetes {
		if v == 1 {
			count++
		}
	}
	return count
}

// DropSmokingCategory returns a new table without the rows whose smoking
// history equals the sentinel category. The receiver is unchanged.
func (t *Table) DropSmokingCategory(sentinel string) *Table {
	out := NewTable(t.Len())
	for i := 0; i < t.Len(); i++ {
		if t.Smoking[i] == sentinel {
			continue
		}
		out.appendFrom(t, i)
	}
	return out
}
