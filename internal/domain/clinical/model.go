package clinical

// PatientDetails is the optional clinical context attached to a query or a
// dosage request. Nil or empty fields mean "unknown", never zero.
type PatientDetails struct {
	Age          *int     `json:"age,omitempty"`
	WeightKg     *float64 `json:"weight,omitempty"`
	Condition    string   `json:"condition,omitempty"`
	Symptoms     string   `json:"symptoms,omitempty"`
	History      string   `json:"history,omitempty"`
	ExamFindings string   `json:"examFindings,omitempty"`
}

// IsEmpty reports whether no detail is known.
func (p PatientDetails) IsEmpty() bool {
	return p.Age == nil && p.WeightKg == nil &&
		p.Condition == "" && p.Symptoms == "" && p.History == "" && p.ExamFindings == ""
}

// CalculationParameters tunes a dosage request. The zero value of a field
// means "not set" and is replaced by the default when merged.
type CalculationParameters struct {
	Formula   string `json:"formula"`
	Frequency int    `json:"frequency"`
}

const (
	DefaultFormula   = "mg/kg/day"
	DefaultFrequency = 2
)

// DefaultParameters returns the parameters used when the caller sets none.
func DefaultParameters() CalculationParameters {
	return CalculationParameters{Formula: DefaultFormula, Frequency: DefaultFrequency}
}

// Merge overlays the set fields of p onto the defaults.
func (p CalculationParameters) Merge() CalculationParameters {
	out := DefaultParameters()
	if p.Formula != "" {
		out.Formula = p.Formula
	}
	if p.Frequency > 0 {
		out.Frequency = p.Frequency
	}
	return out
}

// DosageRequest is a validated dosage calculation input. Weight is already
// in kilograms.
type DosageRequest struct {
	Medication string                `json:"medication"`
	Patient    PatientDetails        `json:"patient"`
	Parameters CalculationParameters `json:"parameters"`
}

// ClinicalQuery is a validated free-text question with optional patient
// context.
type ClinicalQuery struct {
	Query   string         `json:"query"`
	Patient PatientDetails `json:"patient"`
}
