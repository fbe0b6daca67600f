package clinical

import "strings"

// PatientForm holds the raw strings a screen collects before they are
// validated into PatientDetails.
type PatientForm struct {
	Age          string `json:"age"`
	Weight       string `json:"weight"`
	WeightUnit   string `json:"weightUnit"`
	Condition    string `json:"condition"`
	Symptoms     string `json:"symptoms"`
	History      string `json:"history"`
	ExamFindings string `json:"examFindings"`
}

// Parse validates the form and converts the weight to kilograms. This is
// the only place unit conversion happens.
func (f PatientForm) Parse() (PatientDetails, error) {
	age, err := ParseAge(f.Age)
	if err != nil {
		return PatientDetails{}, err
	}
	weight, err := ParseWeight(f.Weight, f.WeightUnit)
	if err != nil {
		return PatientDetails{}, err
	}
	return PatientDetails{
		Age:          age,
		WeightKg:     weight,
		Condition:    strings.TrimSpace(f.Condition),
		Symptoms:     strings.TrimSpace(f.Symptoms),
		History:      strings.TrimSpace(f.History),
		ExamFindings: strings.TrimSpace(f.ExamFindings),
	}, nil
}
