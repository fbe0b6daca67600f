// Package mcptools exposes the assistant's operations as MCP tools over stdio.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/clinassist/clinassist/internal/domain/clinical"
	"github.com/clinassist/clinassist/internal/domain/dosage"
	"github.com/clinassist/clinassist/internal/domain/recording"
	"github.com/clinassist/clinassist/internal/domain/reference"
	"github.com/clinassist/clinassist/internal/platform/audio"
	"github.com/clinassist/clinassist/internal/platform/screen"
)

const (
	ServerName = "clinassist"

	ToolClinicalReference = "clinical_reference"
	ToolDosageCalculator  = "dosage_calculator"
	ToolTranscribeAudio   = "transcribe_audio"
	ToolReformatNote      = "reformat_note"
	ToolListRecordings    = "list_recordings"
)

// Tools binds the MCP tool handlers to the domain services.
type Tools struct {
	reference  *reference.Service
	dosage     *dosage.Service
	recordings *recording.Service
	logger     zerolog.Logger
}

func NewTools(ref *reference.Service, dose *dosage.Service, recs *recording.Service, logger zerolog.Logger) *Tools {
	return &Tools{reference: ref, dosage: dose, recordings: recs, logger: logger}
}

// NewServer builds an MCP server with every tool registered.
func NewServer(t *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer(ServerName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool(ToolClinicalReference,
		append([]mcp.ToolOption{
			mcp.WithDescription("Answer a clinical reference question, optionally using patient details."),
			mcp.WithString("query", mcp.Required(), mcp.Description("The clinical question")),
		}, withPatientArgs()...)...,
	), t.ClinicalReference)

	s.AddTool(mcp.NewTool(ToolDosageCalculator,
		append([]mcp.ToolOption{
			mcp.WithDescription("Calculate a medication dosage for a patient."),
			mcp.WithString("medication", mcp.Required(), mcp.Description("Medication name")),
			mcp.WithString("formula", mcp.Description("Dosing formula, default mg/kg/day")),
			mcp.WithString("frequency", mcp.Description("Doses per day, default 2")),
		}, withPatientArgs()...)...,
	), t.DosageCalculator)

	s.AddTool(mcp.NewTool(ToolTranscribeAudio,
		mcp.WithDescription("Transcribe a local audio file and save it as a new recording."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the audio file")),
	), t.TranscribeAudio)

	s.AddTool(mcp.NewTool(ToolReformatNote,
		mcp.WithDescription("Reformat a recording's transcription into structured markdown notes."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based recording index")),
	), t.ReformatNote)

	s.AddTool(mcp.NewTool(ToolListRecordings,
		mcp.WithDescription("List saved recordings."),
	), t.ListRecordings)

	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func withPatientArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("age", mcp.Description("Patient age in years")),
		mcp.WithString("weight", mcp.Description("Patient weight")),
		mcp.WithString("weight_unit", mcp.Description("kg or lb"), mcp.Enum("kg", "lb")),
		mcp.WithString("condition", mcp.Description("Known conditions")),
		mcp.WithString("symptoms", mcp.Description("Current symptoms")),
		mcp.WithString("history", mcp.Description("Relevant medical history")),
		mcp.WithString("exam_findings", mcp.Description("Examination findings")),
	}
}

func patientForm(req mcp.CallToolRequest) clinical.PatientForm {
	return clinical.PatientForm{
		Age:          req.GetString("age", ""),
		Weight:       req.GetString("weight", ""),
		WeightUnit:   req.GetString("weight_unit", ""),
		Condition:    req.GetString("condition", ""),
		Symptoms:     req.GetString("symptoms", ""),
		History:      req.GetString("history", ""),
		ExamFindings: req.GetString("exam_findings", ""),
	}
}

func (t *Tools) ClinicalReference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	patient, err := patientForm(req).Parse()
	if err != nil {
		return t.failure(ToolClinicalReference, err), nil
	}
	answer, err := t.reference.Query(ctx, clinical.ClinicalQuery{Query: query, Patient: patient})
	if err != nil {
		return t.failure(ToolClinicalReference, err), nil
	}
	return mcp.NewToolResultText(answer), nil
}

func (t *Tools) DosageCalculator(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	medication, err := req.RequireString("medication")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	form := dosage.Form{
		Medication: medication,
		Patient:    patientForm(req),
		Formula:    req.GetString("formula", ""),
		Frequency:  req.GetString("frequency", ""),
	}
	dr, err := form.Request()
	if err != nil {
		return t.failure(ToolDosageCalculator, err), nil
	}
	res, err := t.dosage.Calculate(ctx, dr)
	if err != nil {
		return t.failure(ToolDosageCalculator, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\n\nFormula: %s, frequency: %d per day",
		res.Dosage, res.Parameters.Formula, res.Parameters.Frequency)), nil
}

func (t *Tools) TranscribeAudio(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	abs, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return mcp.NewToolResultError("invalid path"), nil
	}
	rec, index, err := t.recordings.Transcribe(ctx, audio.FileURI(abs))
	if err != nil {
		return t.failure(ToolTranscribeAudio, err), nil
	}
	return jsonResult(struct {
		Index     int                 `json:"index"`
		Recording recording.Recording `json:"recording"`
	}{index, rec})
}

func (t *Tools) ReformatNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireFloat("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	index := int(raw)
	if float64(index) != raw {
		return mcp.NewToolResultError("index must be a whole number"), nil
	}
	res, err := t.recordings.Reformat(ctx, index)
	if err != nil {
		return t.failure(ToolReformatNote, err), nil
	}
	return mcp.NewToolResultText(res.Notes), nil
}

type recordingSummary struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
	Preview   string `json:"preview"`
}

const previewLen = 80

func (t *Tools) ListRecordings(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := t.recordings.List(ctx)
	if err != nil {
		return t.failure(ToolListRecordings, err), nil
	}
	out := make([]recordingSummary, len(list))
	for i, r := range list {
		out[i] = recordingSummary{Index: i, Title: r.Title, CreatedAt: r.CreatedAt, Preview: preview(r.Transcription)}
	}
	return jsonResult(out)
}

func preview(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= previewLen {
		return string(r)
	}
	return string(r[:previewLen]) + "…"
}

// failure logs err and returns the user-facing message as a tool error.
func (t *Tools) failure(tool string, err error) *mcp.CallToolResult {
	t.logger.Warn().Err(err).Str("tool", tool).Msg("mcp tool failed")
	return mcp.NewToolResultError(screen.MessageFor(err))
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
