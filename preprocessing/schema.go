// Package preprocessing は学習と推論で共有する前処理の定義を提供します。
//
// 特徴量の順序、削除する列、カテゴリ値の符号化表、行フィルタ、スケーラーは
// 全てここで一度だけ定義され、学習パイプラインと推論サービスの両方が
// 同じ定義（と学習時に保存された成果物）を使います。
package preprocessing

// Employee は1人の従業員の属性（目的変数を除く25特徴量）
type Employee struct {
	Age                      int
	Attrition                string
	BusinessTravel           string
	Department               string
	Education                int
	EducationField           string
	Gender                   string
	JobInvolvement           int
	JobLevel                 int
	JobRole                  string
	JobSatisfaction          int
	MaritalStatus            string
	NumCompaniesWorked       int
	OverTime                 string
	PercentSalaryHike        int
	PerformanceRating        int
	RelationshipSatisfaction int
	StandardHours            int
	TotalWorkingYears        int
	TrainingTimesLastYear    int
	WorkLifeBalance          int
	YearsAtCompany           int
	YearsInCurrentRole       int
	YearsSinceLastPromotion  int
	YearsWithCurrManager     int
}

// Row はデータセットの1行（特徴量と目的変数）
type Row struct {
	Employee
	MonthlyIncome int

	// Line はCSV上の行番号（ヘッダーは1行目）。診断用
	Line int
}

// Feature は特徴量の定義
type Feature struct {
	Name        string
	Categorical bool
}

// Category はカテゴリ属性の閉じた値集合と、集合外の値に使うコード
// 値のコードは Values 内の位置
type Category struct {
	Values   []string
	Fallback int
}

// Schema は学習と推論で共有する宣言的な前処理定義
type Schema struct {
	Features   []Feature
	Dropped    []string
	Target     string
	Categories map[string]Category
}

// DefaultSchema はHRデータセットのスキーマを返す
func DefaultSchema() Schema {
	return Schema{
		Features: []Feature{
			{Name: "Age"},
			{Name: "Attrition", Categorical: true},
			{Name: "BusinessTravel", Categorical: true},
			{Name: "Department", Categorical: true},
			{Name: "Education"},
			{Name: "EducationField", Categorical: true},
			{Name: "Gender", Categorical: true},
			{Name: "JobInvolvement"},
			{Name: "JobLevel"},
			{Name: "JobRole", Categorical: true},
			{Name: "JobSatisfaction"},
			{Name: "MaritalStatus", Categorical: true},
			{Name: "NumCompaniesWorked"},
			{Name: "OverTime", Categorical: true},
			{Name: "PercentSalaryHike"},
			{Name: "PerformanceRating"},
			{Name: "RelationshipSatisfaction"},
			{Name: "StandardHours"},
			{Name: "TotalWorkingYears"},
			{Name: "TrainingTimesLastYear"},
			{Name: "WorkLifeBalance"},
			{Name: "YearsAtCompany"},
			{Name: "YearsInCurrentRole"},
			{Name: "YearsSinceLastPromotion"},
			{Name: "YearsWithCurrManager"},
		},
		Dropped: []string{
			"StockOptionLevel", "DailyRate", "HourlyRate", "EnvironmentSatisfaction",
			"Over18", "DistanceFromHome", "MonthlyRate", "EmployeeCount", "EmployeeNumber",
		},
		Target: "MonthlyIncome",
		Categories: map[string]Category{
			"Attrition":      {Values: []string{"No", "Yes"}},
			"Gender":         {Values: []string{"Female", "Male"}},
			"OverTime":       {Values: []string{"No", "Yes"}},
			"BusinessTravel": {Values: []string{"Non-Travel", "Travel_Rarely", "Travel_Frequently"}},
			"Department":     {Values: []string{"Sales", "Research & Development", "Human Resources"}},
			"EducationField": {
				Values: []string{
					"Life Sciences", "Medical", "Marketing", "Technical Degree", "Human Resources", "Other",
				},
				Fallback: 5,
			},
			"JobRole": {
				Values: []string{
					"Sales Executive", "Research Scientist", "Laboratory Technician",
					"Manufacturing Director", "Healthcare Representative", "Manager",
					"Sales Representative", "Research Director", "Human Resources",
				},
			},
			"MaritalStatus": {Values: []string{"Single", "Married", "Divorced"}},
		},
	}
}

// FeatureNames は特徴量名を順序どおりに返す
func (s Schema) FeatureNames() []string {
	names := make([]string, len(s.Features))
	for i, f := range s.Features {
		names[i] = f.Name
	}
	return names
}

// Categorical は特徴量がカテゴリ属性かどうかを返す
func (s Schema) Categorical(name string) bool {
	_, ok := s.Categories[name]
	return ok
}

// categorical returns the string attribute named name.
func (e *Employee) categorical(name string) (string, bool) {
	switch name {
	case "Attrition":
		return e.Attrition, true
	case "BusinessTravel":
		return e.BusinessTravel, true
	case "Department":
		return e.Department, true
	case "EducationField":
		return e.EducationField, true
	case "Gender":
		return e.Gender, true
	case "JobRole":
		return e.JobRole, true
	case "MaritalStatus":
		return e.MaritalStatus, true
	case "OverTime":
		return e.OverTime, true
	}
	return "", false
}

// numeric returns a pointer to the integer attribute named name.
func (e *Employee) numeric(name string) (*int, bool) {
	switch name {
	case "Age":
		return &e.Age, true
	case "Education":
		return &e.Education, true
	case "JobInvolvement":
		return &e.JobInvolvement, true
	case "JobLevel":
		return &e.JobLevel, true
	case "JobSatisfaction":
		return &e.JobSatisfaction, true
	case "NumCompaniesWorked":
		return &e.NumCompaniesWorked, true
	case "PercentSalaryHike":
		return &e.PercentSalaryHike, true
	case "PerformanceRating":
		return &e.PerformanceRating, true
	case "RelationshipSatisfaction":
		return &e.RelationshipSatisfaction, true
	case "StandardHours":
		return &e.StandardHours, true
	case "TotalWorkingYears":
		return &e.TotalWorkingYears, true
	case "TrainingTimesLastYear":
		return &e.TrainingTimesLastYear, true
	case "WorkLifeBalance":
		return &e.WorkLifeBalance, true
	case "YearsAtCompany":
		return &e.YearsAtCompany, true
	case "YearsInCurrentRole":
		return &e.YearsInCurrentRole, true
	case "YearsSinceLastPromotion":
		return &e.YearsSinceLastPromotion, true
	case "YearsWithCurrManager":
		return &e.YearsWithCurrManager, true
	}
	return nil, false
}

// SetCategorical はカテゴリ属性を名前で設定する
func (e *Employee) SetCategorical(name, value string) bool {
	switch name {
	case "Attrition":
		e.Attrition = value
	case "BusinessTravel":
		e.BusinessTravel = value
	case "Department":
		e.Department = value
	case "EducationField":
		e.EducationField = value
	case "Gender":
		e.Gender = value
	case "JobRole":
		e.JobRole = value
	case "MaritalStatus":
		e.MaritalStatus = value
	case "OverTime":
		e.OverTime = value
	default:
		return false
	}
	return true
}

// SetNumeric は整数属性を名前で設定する
func (e *Employee) SetNumeric(name string, value int) bool {
	p, ok := e.numeric(name)
	if !ok {
		return false
	}
	*p = value
	return true
}

// CategoricalValue はカテゴリ属性の値を名前で取得する
func (e *Employee) CategoricalValue(name string) (string, bool) {
	return e.categorical(name)
}

// NumericValue は整数属性の値を名前で取得する
func (e *Employee) NumericValue(name string) (int, bool) {
	p, ok := e.numeric(name)
	if !ok {
		return 0, false
	}
	return *p, true
}
