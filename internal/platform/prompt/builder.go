// Package prompt assembles the instruction and user-content strings sent to
// the language model. Every function here is pure: the same inputs always
// produce the same prompt.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clinassist/clinassist/internal/domain/clinical"
)

// Prompt is a system/user message pair for a chat completion.
type Prompt struct {
	System string
	User   string
}

const safetyNote = "Your output supports a licensed clinician and must be verified by one before it affects patient care. " +
	"If the information given is insufficient for a safe answer, say what is missing instead of guessing."

const clinicalPersona = "You are a clinical assistant with access to comprehensive medical references, including ICD codes, " +
	"drug databases, nursing protocols, and clinical best practices. Analyze the patient-specific details and query, " +
	"then provide relevant insights, including potential drug interactions, contraindications, and critical warnings " +
	"based on patient conditions (e.g., renal impairment, pediatric or geriatric care). " +
	"Ensure your response is concise, accurate, and actionable."

const dosagePersona = "You are a clinical assistant specializing in accurate medication dosing. Use established formulas " +
	"(e.g., mg/kg/day) and account for patient-specific factors such as weight, age, and health conditions. " +
	"Prioritize patient safety and efficiency, and ensure your calculations are clear, including dosage per " +
	"administration and total daily dosage. If applicable, highlight any critical considerations for the medication."

const reformatInstruction = "Reformat the following transcription into a structured and professional markdown note. " +
	"Include clear sections, headings, and bullet points for readability, ensuring proper medical terminology " +
	"and formatting suitable for patient records."

// BuildClinicalPrompt builds the clinical-reference prompt for query.
func BuildClinicalPrompt(query string, p clinical.PatientDetails) (Prompt, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Prompt{}, clinical.Invalid("query", "is required")
	}
	details, err := PatientBlock(p)
	if err != nil {
		return Prompt{}, err
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Patient details: %s\n", details)
	fmt.Fprintf(&user, "Query: %s", query)

	return Prompt{
		System: clinicalPersona + "\n" + safetyNote,
		User:   user.String(),
	}, nil
}

// BuildDosagePrompt builds the dosage-calculation prompt. params is merged
// over the defaults field by field before it is rendered.
func BuildDosagePrompt(medication string, p clinical.PatientDetails, params clinical.CalculationParameters) (Prompt, error) {
	medication = strings.TrimSpace(medication)
	if medication == "" {
		return Prompt{}, clinical.Invalid("medication", "is required")
	}
	merged := MergeParameters(params)
	details, err := PatientBlock(p)
	if err != nil {
		return Prompt{}, err
	}

	var user strings.Builder
	user.WriteString("Calculate the dosage for the following:\n")
	fmt.Fprintf(&user, "Medication: %s\n", medication)
	fmt.Fprintf(&user, "Patient Details: %s\n", details)
	fmt.Fprintf(&user, "Calculation Parameters: %s", parametersBlock(merged))

	return Prompt{
		System: dosagePersona + "\n" + safetyNote,
		User:   user.String(),
	}, nil
}

// BuildReformatPrompt wraps a raw transcription in formatting instructions.
func BuildReformatPrompt(transcription string) (string, error) {
	if strings.TrimSpace(transcription) == "" {
		return "", clinical.Invalid("transcription", "is empty")
	}
	return fmt.Sprintf("%s\n\nTranscription: %q", reformatInstruction, transcription), nil
}

// MergeParameters returns params with unset fields filled from the defaults.
func MergeParameters(params clinical.CalculationParameters) clinical.CalculationParameters {
	return params.Merge()
}

// PatientBlock renders the known patient details as a JSON object. Unknown
// fields are left out; an empty set renders as {}. A weight that cannot be
// encoded is a ValidationError rather than a silently emptied block.
func PatientBlock(p clinical.PatientDetails) (string, error) {
	if p.IsEmpty() {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", clinical.Invalid("weight", "must be a finite number")
	}
	return string(b), nil
}

func parametersBlock(params clinical.CalculationParameters) string {
	b, _ := json.Marshal(params)
	return string(b)
}
