package dosage

import (
	"strconv"
	"strings"

	"github.com/clinassist/clinassist/internal/domain/clinical"
)

// Form is the raw dosage calculator input. Medication and weight are
// required; everything else is optional.
type Form struct {
	Medication string               `json:"medication"`
	Patient    clinical.PatientForm `json:"patient"`
	Formula    string               `json:"formula"`
	Frequency  string               `json:"frequency"`
}

// Request validates the form and builds a DosageRequest with the weight in
// kilograms.
func (f Form) Request() (clinical.DosageRequest, error) {
	medication := strings.TrimSpace(f.Medication)
	if medication == "" {
		return clinical.DosageRequest{}, clinical.Invalid("medication", "is required")
	}
	if strings.TrimSpace(f.Patient.Weight) == "" {
		return clinical.DosageRequest{}, clinical.Invalid("weight", "is required")
	}
	patient, err := f.Patient.Parse()
	if err != nil {
		return clinical.DosageRequest{}, err
	}
	freq, err := parseFrequency(f.Frequency)
	if err != nil {
		return clinical.DosageRequest{}, err
	}
	return clinical.DosageRequest{
		Medication: medication,
		Patient:    patient,
		Parameters: clinical.CalculationParameters{
			Formula:   strings.TrimSpace(f.Formula),
			Frequency: freq,
		},
	}, nil
}

func parseFrequency(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, clinical.Invalid("frequency", "must be a whole number of doses per day")
	}
	if n <= 0 {
		return 0, clinical.Invalid("frequency", "must be at least 1")
	}
	return n, nil
}
