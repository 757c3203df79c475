package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"calscan/internal/capture"
	"calscan/internal/config"
	"calscan/internal/grid"
	"calscan/internal/ics"
	appLog "calscan/internal/log"
	"calscan/internal/mcpserver"
	"calscan/internal/model"
	"calscan/internal/ocr/tesseract"
	"calscan/internal/pipeline"
	"calscan/internal/schedule"
	"calscan/internal/scheduler"
	"calscan/internal/source"
	"calscan/internal/store"
	"calscan/internal/web"
)

// app holds the values shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "calscan",
		Short:         "Extract school calendar events from scans, screenshots and text",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "/etc/calscan/config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info or error (overrides config)")

	rootCmd.AddCommand(
		a.serveCommand(),
		a.extractCommand(),
		a.gridCommand(),
		a.syncCommand(),
		a.calendarsCommand(),
		a.mcpCommand(),
	)
	return rootCmd
}

// loadConfig reads the config file. A file that cannot be written on first
// run still yields the defaults.
func (a *app) loadConfig() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		if cfg == nil {
			return err
		}
		appLog.Error("could not write default config; continuing with defaults", err, "config_path", a.configPath)
	}
	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(level))
	a.cfg = cfg
	return nil
}

func (a *app) location() *time.Location {
	loc, err := a.cfg.Location()
	if err != nil {
		appLog.Error("invalid timezone; using UTC", err, "timezone", a.cfg.Timezone)
		return time.UTC
	}
	return loc
}

func (a *app) newSyncer(cmd *cobra.Command, calendarID string) (*schedule.Syncer, error) {
	if a.cfg.Google == nil {
		return nil, errors.New("google sync is not configured (set google.credentials_file)")
	}
	if calendarID == "" {
		calendarID = a.cfg.Google.CalendarID
	}
	return schedule.NewSyncer(cmd.Context(), schedule.Options{
		CredentialsFile: a.cfg.Google.CredentialsFile,
		CalendarID:      calendarID,
		Location:        a.location(),
	})
}

func (a *app) serveCommand() *cobra.Command {
	var listen string
	var debug bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the source refresh schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if listen != "" {
				a.cfg.Listen = listen
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			appLog.Info("calscan starting", "version", version)
			appLog.Info("effective config",
				"listen", a.cfg.Listen,
				"timezone", a.cfg.Timezone,
				"academic_year_start", a.cfg.AcademicYearStart,
				"sources", len(a.cfg.Sources),
				"storage", a.cfg.Storage.Path,
				"google_sync", a.cfg.Google != nil,
			)

			st, err := store.Open(a.cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			engine := tesseract.New()
			runner := &scheduler.Runner{
				Config:  a.cfg,
				Fetcher: source.NewFetcher(a.cfg.Storage.CacheDir),
				Browser: capture.Chromium{},
				Engine:  engine,
				Store:   st,
			}
			sched, err := scheduler.New(runner, a.location())
			if err != nil {
				return err
			}

			opts := []web.Option{web.WithStore(st), web.WithEngine(engine), web.WithRefresher(runner)}
			if a.cfg.Google != nil {
				syncer, err := a.newSyncer(cmd, "")
				if err != nil {
					return err
				}
				opts = append(opts, web.WithSyncer(syncer))
			}

			sched.Start(ctx)
			err = web.NewServer(a.cfg, debug, opts...).ListenAndServe(ctx)
			appLog.Info("calscan exiting")
			return err
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Log every HTTP request")
	return cmd
}

type extractFlags struct {
	mode      string
	yearStart int
	year      int
	month     int
	format    string
	text      bool
	save      bool
}

func (a *app) extractCommand() *cobra.Command {
	var f extractFlags
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract events from an image or text file (\"-\" reads text from stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExtract(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.mode, "mode", "listing", "listing, grid or bulk")
	cmd.Flags().IntVar(&f.yearStart, "academic-year-start", 0, "Year the school year starts in August (default from config)")
	cmd.Flags().IntVar(&f.year, "year", 0, "Calendar year shown, for grid and bulk modes")
	cmd.Flags().IntVar(&f.month, "month", 0, "Month number shown, for grid and bulk modes")
	cmd.Flags().StringVar(&f.format, "format", "json", "Output format: json or ics")
	cmd.Flags().BoolVar(&f.text, "text", false, "Treat the file as already recognized text")
	cmd.Flags().BoolVar(&f.save, "save", false, "Store the result as a run")
	return cmd
}

func (a *app) runExtract(cmd *cobra.Command, path string, f extractFlags) error {
	mode, err := pipeline.ParseMode(f.mode)
	if err != nil {
		return err
	}
	req, err := pipeline.RequestFromConfig(a.cfg, pipeline.Params{
		Mode:              mode,
		AcademicYearStart: f.yearStart,
		Year:              f.year,
		Month:             time.Month(f.month),
	})
	if err != nil {
		return err
	}

	var res pipeline.Result
	if f.text || path == "-" || strings.EqualFold(filepath.Ext(path), ".txt") {
		data, err := readInput(cmd.InOrStdin(), path)
		if err != nil {
			return err
		}
		res, err = pipeline.ExtractText(string(data), req.Mode, req)
		if err != nil {
			return err
		}
	} else {
		if err := source.CheckName(path); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		pages, err := source.DecodeDocument(data)
		if err != nil {
			return err
		}
		res, err = pipeline.ExtractPages(cmd.Context(), pages, tesseract.New(), req)
		if err != nil {
			return err
		}
	}
	appLog.Info("extract done", "file", path, "mode", res.Mode, "events", len(res.Events))

	if f.save {
		st, err := store.Open(a.cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		run := &store.Run{
			Filename:          filepath.Base(path),
			Mode:              string(res.Mode),
			AcademicYearStart: req.AcademicYearStart,
			Timezone:          a.cfg.Timezone,
			RawText:           res.RawText,
			Events:            res.Events,
		}
		if err := st.SaveRun(cmd.Context(), run); err != nil {
			return err
		}
		appLog.Info("run saved", "run", run.ID)
	}
	return writeEvents(cmd.OutOrStdout(), f.format, res.Events, a.location())
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func writeEvents(w io.Writer, format string, events []model.Event, loc *time.Location) error {
	switch format {
	case "ics":
		_, err := io.WriteString(w, ics.Encode(events, ics.EncodeOptions{Location: loc}))
		return err
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(model.Records(events))
	default:
		return fmt.Errorf("unknown format %q (want json or ics)", format)
	}
}

func (a *app) gridCommand() *cobra.Command {
	var overlay string
	var cols, rows int
	cmd := &cobra.Command{
		Use:   "grid <image>",
		Short: "Detect the day cells of a month-grid image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			pages, err := source.DecodeDocument(data)
			if err != nil {
				return err
			}
			// Grid detection reads the first page of a PDF.
			img := pages[0]
			if cols == 0 {
				cols = a.cfg.Grid.Cols
			}
			if rows == 0 {
				rows = a.cfg.Grid.Rows
			}
			cells, err := grid.NewDetector(cols, rows).Detect(img)
			if err != nil {
				return err
			}
			appLog.Info("grid detected", "file", args[0], "cells", len(cells))

			if overlay != "" {
				out, err := os.Create(overlay)
				if err != nil {
					return err
				}
				if err := png.Encode(out, grid.Overlay(img, cells)); err != nil {
					out.Close()
					return err
				}
				if err := out.Close(); err != nil {
					return err
				}
				appLog.Info("overlay written", "path", overlay)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cells)
		},
	}
	cmd.Flags().StringVar(&overlay, "overlay", "", "Write a PNG with the detected cells drawn over the image")
	cmd.Flags().IntVar(&cols, "cols", 0, "Grid columns (default from config)")
	cmd.Flags().IntVar(&rows, "rows", 0, "Grid rows (default from config)")
	return cmd
}

func (a *app) syncCommand() *cobra.Command {
	var calendarID string
	cmd := &cobra.Command{
		Use:   "sync <calendar.ics>",
		Short: "Push the events of an iCalendar file to Google Calendar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			loc := a.location()
			events, err := ics.Decode(body, loc)
			if err != nil {
				return err
			}
			syncer, err := a.newSyncer(cmd, calendarID)
			if err != nil {
				return err
			}
			res, err := syncer.Sync(cmd.Context(), events, loc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, existing %d, failed %d\n", res.Created, res.Existing, len(res.Failed))
			for _, f := range res.Failed {
				fmt.Fprintf(cmd.OutOrStdout(), "  #%d %s: %s\n", f.Index, f.Title, f.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&calendarID, "calendar", "", "Calendar ID (default from config)")
	return cmd
}

func (a *app) calendarsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "calendars",
		Short: "List the Google calendars the credentials can see",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer, err := a.newSyncer(cmd, "")
			if err != nil {
				return err
			}
			cals, err := syncer.Calendars(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range cals {
				mark := " "
				if c.Primary {
					mark = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-40s %s (%s)\n", mark, c.ID, c.Summary, c.AccessRole)
			}
			return nil
		},
	}
}

func (a *app) mcpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the extraction tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tools := &mcpserver.Tools{Config: a.cfg, Engine: tesseract.New(), Version: version}
			st, err := store.Open(a.cfg.Storage.Path)
			if err != nil {
				appLog.Error("run store unavailable; run tools disabled", err, "path", a.cfg.Storage.Path)
			} else {
				defer st.Close()
				tools.Store = st
			}
			return tools.ServeStdio()
		},
	}
}
