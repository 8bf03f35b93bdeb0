package server

import (
	"encoding/json"
	"io"

	"github.com/go-playground/validator/v10"

	"github.com/YuminosukeSato/wagewizard/pkg/errors"
	"github.com/YuminosukeSato/wagewizard/preprocessing"
)

// PredictRequest is the body of POST /predict. Every attribute is required.
// Numeric fields are pointers so that an explicit 0 passes the required check.
type PredictRequest struct {
	Age                      *int   `json:"Age" binding:"required"`
	Attrition                string `json:"Attrition" binding:"required"`
	BusinessTravel           string `json:"BusinessTravel" binding:"required"`
	Department               string `json:"Department" binding:"required"`
	Education                *int   `json:"Education" binding:"required"`
	EducationField           string `json:"EducationField" binding:"required"`
	Gender                   string `json:"Gender" binding:"required"`
	JobInvolvement           *int   `json:"JobInvolvement" binding:"required"`
	JobLevel                 *int   `json:"JobLevel" binding:"required"`
	JobRole                  string `json:"JobRole" binding:"required"`
	JobSatisfaction          *int   `json:"JobSatisfaction" binding:"required"`
	MaritalStatus            string `json:"MaritalStatus" binding:"required"`
	NumCompaniesWorked       *int   `json:"NumCompaniesWorked" binding:"required"`
	OverTime                 string `json:"OverTime" binding:"required"`
	PercentSalaryHike        *int   `json:"PercentSalaryHike" binding:"required"`
	PerformanceRating        *int   `json:"PerformanceRating" binding:"required"`
	RelationshipSatisfaction *int   `json:"RelationshipSatisfaction" binding:"required"`
	StandardHours            *int   `json:"StandardHours" binding:"required"`
	TotalWorkingYears        *int   `json:"TotalWorkingYears" binding:"required"`
	TrainingTimesLastYear    *int   `json:"TrainingTimesLastYear" binding:"required"`
	WorkLifeBalance          *int   `json:"WorkLifeBalance" binding:"required"`
	YearsAtCompany           *int   `json:"YearsAtCompany" binding:"required"`
	YearsInCurrentRole       *int   `json:"YearsInCurrentRole" binding:"required"`
	YearsSinceLastPromotion  *int   `json:"YearsSinceLastPromotion" binding:"required"`
	YearsWithCurrManager     *int   `json:"YearsWithCurrManager" binding:"required"`
}

// Employee converts a validated request. It must only be called after
// binding succeeded, since required numeric fields are dereferenced.
func (r *PredictRequest) Employee() preprocessing.Employee {
	return preprocessing.Employee{
		Age:                      *r.Age,
		Attrition:                r.Attrition,
		BusinessTravel:           r.BusinessTravel,
		Department:               r.Department,
		Education:                *r.Education,
		EducationField:           r.EducationField,
		Gender:                   r.Gender,
		JobInvolvement:           *r.JobInvolvement,
		JobLevel:                 *r.JobLevel,
		JobRole:                  r.JobRole,
		JobSatisfaction:          *r.JobSatisfaction,
		MaritalStatus:            r.MaritalStatus,
		NumCompaniesWorked:       *r.NumCompaniesWorked,
		OverTime:                 r.OverTime,
		PercentSalaryHike:        *r.PercentSalaryHike,
		PerformanceRating:        *r.PerformanceRating,
		RelationshipSatisfaction: *r.RelationshipSatisfaction,
		StandardHours:            *r.StandardHours,
		TotalWorkingYears:        *r.TotalWorkingYears,
		TrainingTimesLastYear:    *r.TrainingTimesLastYear,
		WorkLifeBalance:          *r.WorkLifeBalance,
		YearsAtCompany:           *r.YearsAtCompany,
		YearsInCurrentRole:       *r.YearsInCurrentRole,
		YearsSinceLastPromotion:  *r.YearsSinceLastPromotion,
		YearsWithCurrManager:     *r.YearsWithCurrManager,
	}
}

// PredictResponse is the body of a successful POST /predict.
type PredictResponse struct {
	PredictedSalary float64 `json:"predicted_salary"`
}

// FieldError describes one rejected request field. Loc is the path to the
// field starting at "body".
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationResponse is the 422 body.
type ValidationResponse struct {
	Detail []FieldError `json:"detail"`
}

// ErrorResponse is the body of every other error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// describeBindError turns a binding failure into per-field details.
func describeBindError(err error) []FieldError {
	var (
		verrs   validator.ValidationErrors
		typeErr *json.UnmarshalTypeError
		synErr  *json.SyntaxError
	)
	switch {
	case errors.As(err, &verrs):
		details := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, FieldError{
				Loc:  []string{"body", fe.Field()},
				Msg:  "field required",
				Type: "missing",
			})
		}
		return details
	case errors.As(err, &typeErr):
		return []FieldError{{
			Loc:  []string{"body", typeErr.Field},
			Msg:  "expected " + typeErr.Type.String() + ", got " + typeErr.Value,
			Type: "type_error",
		}}
	case errors.Is(err, io.EOF):
		return []FieldError{{Loc: []string{"body"}, Msg: "field required", Type: "missing"}}
	case errors.As(err, &synErr):
		return []FieldError{{Loc: []string{"body"}, Msg: synErr.Error(), Type: "json_invalid"}}
	default:
		return []FieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
	}
}
