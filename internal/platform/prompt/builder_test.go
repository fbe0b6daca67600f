package prompt

import (
	"math"
	"strings"
	"testing"

	"github.com/clinassist/clinassist/internal/domain/clinical"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestBuildClinicalPrompt_EmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   \n"} {
		_, err := BuildClinicalPrompt(q, clinical.PatientDetails{})
		if !clinical.IsValidation(err) {
			t.Errorf("query %q: expected ValidationError, got %v", q, err)
		}
	}
}

func TestBuildClinicalPrompt_KeepsEveryKnownField(t *testing.T) {
	p := clinical.PatientDetails{
		Age:          intPtr(67),
		WeightKg:     floatPtr(82.5),
		Condition:    "CKD stage 3",
		Symptoms:     "fatigue",
		History:      "hypertension",
		ExamFindings: "pitting edema",
	}
	got, err := BuildClinicalPrompt("Is ibuprofen safe?", p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{`"age":67`, `"weight":82.5`, "CKD stage 3", "fatigue", "hypertension", "pitting edema", "Query: Is ibuprofen safe?"} {
		if !strings.Contains(got.User, want) {
			t.Errorf("expected user prompt to contain %q, got %q", want, got.User)
		}
	}
	if !strings.Contains(got.System, "clinical assistant") {
		t.Errorf("expected clinical persona in system prompt, got %q", got.System)
	}
}

func TestBuildClinicalPrompt_OmitsUnknownFields(t *testing.T) {
	got, err := BuildClinicalPrompt("fever in infants", clinical.PatientDetails{Condition: "sepsis"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(got.User, `"age"`) || strings.Contains(got.User, `"weight"`) {
		t.Errorf("expected unknown fields to be omitted, got %q", got.User)
	}
}

func TestBuildClinicalPrompt_Deterministic(t *testing.T) {
	p := clinical.PatientDetails{Age: intPtr(3), Symptoms: "rash"}
	a, _ := BuildClinicalPrompt("q", p)
	b, _ := BuildClinicalPrompt("q", p)
	if a != b {
		t.Error("expected identical prompts for identical inputs")
	}
}

func TestBuildDosagePrompt_EmptyMedication(t *testing.T) {
	_, err := BuildDosagePrompt(" ", clinical.PatientDetails{}, clinical.CalculationParameters{})
	if !clinical.IsValidation(err) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestBuildDosagePrompt_MergesParameters(t *testing.T) {
	got, err := BuildDosagePrompt("amoxicillin", clinical.PatientDetails{WeightKg: floatPtr(20)}, clinical.CalculationParameters{Frequency: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got.User, `{"formula":"mg/kg/day","frequency":4}`) {
		t.Errorf("expected merged parameters in prompt, got %q", got.User)
	}
	if !strings.Contains(got.User, "Medication: amoxicillin") {
		t.Errorf("expected medication in prompt, got %q", got.User)
	}
}

func TestMergeParameters(t *testing.T) {
	got := MergeParameters(clinical.CalculationParameters{Frequency: 4})
	if got.Formula != "mg/kg/day" || got.Frequency != 4 {
		t.Errorf("unexpected merge %+v", got)
	}
}

func TestBuildReformatPrompt(t *testing.T) {
	if _, err := BuildReformatPrompt(""); !clinical.IsValidation(err) {
		t.Errorf("expected ValidationError, got %v", err)
	}
	got, err := BuildReformatPrompt("pt c/o headache x3d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "markdown note") || !strings.Contains(got, "pt c/o headache x3d") {
		t.Errorf("unexpected reformat prompt %q", got)
	}
}

func TestPatientBlock_Empty(t *testing.T) {
	got, err := PatientBlock(clinical.PatientDetails{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "{}" {
		t.Errorf("expected {}, got %s", got)
	}
}

func TestPatientBlock_NonFiniteWeight(t *testing.T) {
	for _, w := range []float64{math.NaN(), math.Inf(1)} {
		_, err := PatientBlock(clinical.PatientDetails{Age: intPtr(40), WeightKg: floatPtr(w)})
		if !clinical.IsValidation(err) {
			t.Errorf("weight %v: expected ValidationError, got %v", w, err)
		}
	}
}

func TestBuildPrompts_NonFiniteWeightNeverEmptiesDetails(t *testing.T) {
	p := clinical.PatientDetails{Age: intPtr(40), WeightKg: floatPtr(math.NaN()), Condition: "renal failure"}
	if _, err := BuildClinicalPrompt("dose of gentamicin?", p); !clinical.IsValidation(err) {
		t.Errorf("clinical: expected ValidationError, got %v", err)
	}
	if _, err := BuildDosagePrompt("gentamicin", p, clinical.CalculationParameters{}); !clinical.IsValidation(err) {
		t.Errorf("dosage: expected ValidationError, got %v", err)
	}
}
