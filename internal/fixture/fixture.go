// Package fixture writes synthetic HR datasets for tests.
package fixture

import (
	"encoding/csv"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/YuminosukeSato/wagewizard/preprocessing"
)

// Employees returns n synthetic rows whose income is a noisy linear
// function of JobLevel and TotalWorkingYears. Every categorical value
// belongs to the default schema, and TotalWorkingYears stays within 0..35
// so a few rows fall outside the default filter.
func Employees(n int, seed uint64) []preprocessing.Row {
	r := rand.New(rand.NewPCG(seed, seed^0x5eed))
	schema := preprocessing.DefaultSchema()
	pick := func(attr string) string {
		vals := schema.Categories[attr].Values
		return vals[r.IntN(len(vals))]
	}

	rows := make([]preprocessing.Row, n)
	for i := range rows {
		years := r.IntN(36)
		level := 1 + r.IntN(5)
		atCompany := r.IntN(years + 1)
		e := preprocessing.Employee{
			Age:                      18 + years + r.IntN(10),
			Attrition:                pick("Attrition"),
			BusinessTravel:           pick("BusinessTravel"),
			Department:               pick("Department"),
			Education:                1 + r.IntN(5),
			EducationField:           pick("EducationField"),
			Gender:                   pick("Gender"),
			JobInvolvement:           1 + r.IntN(4),
			JobLevel:                 level,
			JobRole:                  pick("JobRole"),
			JobSatisfaction:          1 + r.IntN(4),
			MaritalStatus:            pick("MaritalStatus"),
			NumCompaniesWorked:       r.IntN(10),
			OverTime:                 pick("OverTime"),
			PercentSalaryHike:        11 + r.IntN(15),
			PerformanceRating:        3 + r.IntN(2),
			RelationshipSatisfaction: 1 + r.IntN(4),
			StandardHours:            80,
			TotalWorkingYears:        years,
			TrainingTimesLastYear:    r.IntN(7),
			WorkLifeBalance:          1 + r.IntN(4),
			YearsAtCompany:           atCompany,
			YearsInCurrentRole:       r.IntN(atCompany + 1),
			YearsSinceLastPromotion:  r.IntN(atCompany + 1),
			YearsWithCurrManager:     r.IntN(atCompany + 1),
		}
		rows[i] = preprocessing.Row{
			Employee:      e,
			MonthlyIncome: 1000 + 3000*level + 80*years + r.IntN(500),
			Line:          i + 2,
		}
	}
	return rows
}

// WriteCSV writes rows as a headered CSV in dir and returns its path.
// The header holds the schema features followed by the target.
func WriteCSV(dir string, rows []preprocessing.Row) (path string, err error) {
	schema := preprocessing.DefaultSchema()
	header := append(schema.FeatureNames(), schema.Target)

	path = filepath.Join(dir, "hr.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return "", err
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for j, feat := range schema.Features {
			if feat.Categorical {
				record[j], _ = row.CategoricalValue(feat.Name)
			} else {
				v, _ := row.NumericValue(feat.Name)
				record[j] = strconv.Itoa(v)
			}
		}
		record[len(record)-1] = strconv.Itoa(row.MonthlyIncome)
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	return path, w.Error()
}

// WriteDataset writes n synthetic rows to dir and returns the CSV path.
func WriteDataset(t testing.TB, dir string, n int, seed uint64) string {
	t.Helper()
	path, err := WriteCSV(dir, Employees(n, seed))
	if err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}
