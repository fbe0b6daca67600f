package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinassist/clinassist/internal/config"
	"github.com/clinassist/clinassist/internal/domain/clinical"
	"github.com/clinassist/clinassist/internal/domain/dosage"
	"github.com/clinassist/clinassist/internal/domain/recording"
	"github.com/clinassist/clinassist/internal/domain/reference"
	"github.com/clinassist/clinassist/internal/platform/audio"
	"github.com/clinassist/clinassist/internal/platform/auth"
	"github.com/clinassist/clinassist/internal/platform/db"
	"github.com/clinassist/clinassist/internal/platform/kv"
	"github.com/clinassist/clinassist/internal/platform/mcptools"
	"github.com/clinassist/clinassist/internal/platform/screen"
)

// withApp loads the app with logs on stderr and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := loadApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// userError replaces err with the message a clinician should see. The
// detail is kept in the debug log.
func userError(a *app, err error) error {
	if err == nil {
		return nil
	}
	a.logger.Debug().Err(err).Msg("command failed")
	return errors.New(screen.MessageFor(err))
}

func addPatientFlags(cmd *cobra.Command) {
	cmd.Flags().String("age", "", "Patient age in years")
	cmd.Flags().String("weight", "", "Patient weight")
	cmd.Flags().String("unit", string(clinical.Kilograms), "Weight unit (kg or lb)")
	cmd.Flags().String("condition", "", "Known conditions")
	cmd.Flags().String("symptoms", "", "Current symptoms")
	cmd.Flags().String("history", "", "Relevant medical history")
	cmd.Flags().String("exam", "", "Examination findings")
}

func patientFromFlags(cmd *cobra.Command) clinical.PatientForm {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return clinical.PatientForm{
		Age:          get("age"),
		Weight:       get("weight"),
		WeightUnit:   get("unit"),
		Condition:    get("condition"),
		Symptoms:     get("symptoms"),
		History:      get("history"),
		ExamFindings: get("exam"),
	}
}

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a clinical reference question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				s := reference.NewScreen(a.reference)
				defer s.Dispose()
				s.SetQuery(strings.Join(args, " "))
				s.SetPatient(patientFromFlags(cmd))

				answer, err := s.Search(ctx)
				if err != nil {
					return userError(a, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), answer)
				return nil
			})
		},
	}
	addPatientFlags(cmd)
	return cmd
}

func dosageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dosage <medication>",
		Short: "Calculate a medication dosage",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formula, _ := cmd.Flags().GetString("formula")
			frequency, _ := cmd.Flags().GetString("frequency")

			return withApp(cmd, func(ctx context.Context, a *app) error {
				s := dosage.NewScreen(a.dosage)
				defer s.Dispose()
				s.SetForm(dosage.Form{
					Medication: strings.Join(args, " "),
					Patient:    patientFromFlags(cmd),
					Formula:    formula,
					Frequency:  frequency,
				})

				res, err := s.Calculate(ctx)
				if err != nil {
					return userError(a, err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, res.Dosage)
				fmt.Fprintf(out, "\nFormula: %s, frequency: %d per day\n", res.Parameters.Formula, res.Parameters.Frequency)
				return nil
			})
		},
	}
	addPatientFlags(cmd)
	cmd.Flags().String("formula", "", "Dosing formula (default mg/kg/day)")
	cmd.Flags().String("frequency", "", "Doses per day (default 2)")
	return cmd
}

func transcribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file and save it as a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("audio file: %w", err)
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				s := recording.NewListScreen(a.recordings)
				defer s.Dispose()

				rec, err := s.StopAndTranscribe(ctx, audio.FileURI(path))
				if err != nil {
					return userError(a, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n\n%s\n", rec.Title, rec.CreatedAt, rec.Transcription)
				return nil
			})
		},
	}
}

func notesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Manage saved recordings",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				s := recording.NewListScreen(a.recordings)
				defer s.Dispose()
				if err := s.Load(ctx); err != nil {
					return userError(a, err)
				}
				return printRecordings(cmd.OutOrStdout(), s.Items(), asJSON)
			})
		},
	}
	listCmd.Flags().Bool("json", false, "Print as JSON")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <index>",
		Short: "Print a recording's notes, or its transcription if it has none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				d := recording.NewDetailScreen(a.recordings, index)
				defer d.Dispose()
				if err := d.Open(ctx); err != nil {
					return userError(a, err)
				}
				rec := d.Recording()
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n\n%s\n", rec.Title, rec.CreatedAt, d.CopyText())
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reformat <index>",
		Short: "Reformat a recording into structured notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				d := recording.NewDetailScreen(a.recordings, index)
				defer d.Dispose()
				if err := d.Open(ctx); err != nil {
					return userError(a, err)
				}
				res, err := d.Reformat(ctx)
				// Notes that failed to save are still shown.
				if res.Notes != "" {
					fmt.Fprintln(cmd.OutOrStdout(), res.Notes)
				}
				return userError(a, err)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <index>",
		Short: "Delete a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				s := recording.NewListScreen(a.recordings)
				defer s.Dispose()
				if err := s.Delete(ctx, index); err != nil {
					return userError(a, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted recording %d. %d remaining.\n", index, len(s.Items()))
				return nil
			})
		},
	})

	orphans := &cobra.Command{
		Use:   "orphans",
		Short: "List formatted notes whose recording was deleted",
		RunE: func(cmd *cobra.Command, args []string) error {
			prune, _ := cmd.Flags().GetBool("prune")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				list := a.recordings.Orphans
				if prune {
					list = a.recordings.PruneOrphans
				}
				titles, err := list(ctx)
				if err != nil {
					return userError(a, err)
				}
				for _, t := range titles {
					fmt.Fprintln(cmd.OutOrStdout(), t)
				}
				return nil
			})
		},
	}
	orphans.Flags().Bool("prune", false, "Delete the listed notes entries")
	cmd.AddCommand(orphans)

	return cmd
}

func parseIndex(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("index must be a non-negative whole number, got %q", raw)
	}
	return n, nil
}

func printRecordings(out io.Writer, list recording.List, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No recordings.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tTITLE\tCREATED\tNOTES")
	for i, r := range list {
		notes := "no"
		if r.HasNotes() {
			notes = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, r.Title, r.CreatedAt, notes)
	}
	return tw.Flush()
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the assistant tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol; logs must go to stderr.
			return withApp(cmd, func(ctx context.Context, a *app) error {
				tools := mcptools.NewTools(a.reference, a.dosage, a.recordings, a.logger)
				a.logger.Info().Msg("serving MCP tools on stdio")
				return mcptools.Serve(mcptools.NewServer(tools, version))
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres key-value table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := kv.EnsureSchema(ctx, pool); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			roles, _ := cmd.Flags().GetStringSlice("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if strings.TrimSpace(subject) == "" {
				return fmt.Errorf("--subject is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.AuthSigningKey == "" {
				return fmt.Errorf("AUTH_SIGNING_KEY is not set")
			}
			token, err := auth.IssueToken([]byte(cfg.AuthSigningKey), cfg.AuthIssuer, subject, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("subject", "", "Token subject (user id)")
	cmd.Flags().StringSlice("role", []string{auth.RoleClinician}, "Roles to grant")
	cmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	return cmd
}
