// Package mcpserver exposes extraction and stored runs as MCP tools over
// stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"calscan/internal/config"
	"calscan/internal/ics"
	appLog "calscan/internal/log"
	"calscan/internal/model"
	"calscan/internal/ocr"
	"calscan/internal/pipeline"
	"calscan/internal/source"
	"calscan/internal/store"
)

// Tools is the tool server state. Engine and Store may be nil; the tools
// that need them then report an error result.
type Tools struct {
	Config  *config.Config
	Engine  ocr.Engine
	Store   *store.Store
	Version string
}

// Server builds the MCP server with every tool registered.
func (t *Tools) Server() *server.MCPServer {
	s := server.NewMCPServer("calscan", t.Version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("extract_text",
		mcp.WithDescription("Extract dated events from calendar text (one \"date description\" entry per line)."),
		mcp.WithString("text", mcp.Required(), mcp.Description("OCR or copied calendar text")),
		mcp.WithNumber("academic_year_start", mcp.Description("Year the school year starts in August; defaults to the configured year")),
		mcp.WithString("mode", mcp.Enum("listing", "bulk"), mcp.Description("listing (default) or bulk day-marked cell text")),
		mcp.WithNumber("month", mcp.Description("Month number for bulk mode")),
		mcp.WithNumber("year", mcp.Description("Calendar year for bulk mode")),
	), t.extractText)

	s.AddTool(mcp.NewTool("extract_image",
		mcp.WithDescription("OCR a calendar image or scanned PDF file and extract its events."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to a PNG, JPEG, BMP, TIFF, WebP or GIF image")),
		mcp.WithString("mode", mcp.Enum("listing", "grid", "bulk"), mcp.Description("How to read the image")),
		mcp.WithNumber("academic_year_start", mcp.Description("Year the school year starts in August")),
		mcp.WithNumber("month", mcp.Description("Month shown, for grid and bulk modes")),
		mcp.WithNumber("year", mcp.Description("Calendar year shown, for grid and bulk modes")),
	), t.extractImage)

	s.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List stored extraction runs, newest first."),
		mcp.WithNumber("limit", mcp.DefaultNumber(store.DefaultListLimit), mcp.Description("Maximum runs to return")),
	), t.listRuns)

	s.AddTool(mcp.NewTool("get_run",
		mcp.WithDescription("Get a stored run with its events."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Run id")),
	), t.getRun)

	s.AddTool(mcp.NewTool("get_run_ics",
		mcp.WithDescription("Export a stored run as an iCalendar document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Run id")),
	), t.getRunICS)

	return s
}

// ServeStdio serves the tools on stdin/stdout until the client disconnects.
func (t *Tools) ServeStdio() error {
	appLog.Info("mcp server starting", "transport", "stdio")
	return server.ServeStdio(t.Server())
}

type extractResult struct {
	Mode    string         `json:"mode"`
	Count   int            `json:"count"`
	Events  []model.Record `json:"events"`
	RunID   string         `json:"run_id,omitempty"`
	RawText string         `json:"raw_text,omitempty"`
}

func (t *Tools) params(req mcp.CallToolRequest) (pipeline.Request, error) {
	mode, err := pipeline.ParseMode(req.GetString("mode", ""))
	if err != nil {
		return pipeline.Request{}, err
	}
	return pipeline.RequestFromConfig(t.Config, pipeline.Params{
		Mode:              mode,
		AcademicYearStart: req.GetInt("academic_year_start", 0),
		Year:              req.GetInt("year", 0),
		Month:             time.Month(req.GetInt("month", 0)),
	})
}

func (t *Tools) extractText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	preq, err := t.params(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := pipeline.ExtractText(text, preq.Mode, preq)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return t.finish(ctx, "", preq, res)
}

func (t *Tools) extractImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.Engine == nil {
		return mcp.NewToolResultError("no OCR engine configured"), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := source.CheckName(path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("read image", err), nil
	}
	pages, err := source.DecodeDocument(data)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("decode image", err), nil
	}
	preq, err := t.params(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := pipeline.ExtractPages(ctx, pages, t.Engine, preq)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("extract", err), nil
	}
	return t.finish(ctx, path, preq, res)
}

// finish stores the run when a store is configured and renders the result.
func (t *Tools) finish(ctx context.Context, filename string, preq pipeline.Request, res pipeline.Result) (*mcp.CallToolResult, error) {
	out := extractResult{
		Mode:   string(res.Mode),
		Count:  len(res.Events),
		Events: model.Records(res.Events),
	}
	if t.Store != nil {
		run := &store.Run{
			Filename:          filename,
			Mode:              string(res.Mode),
			AcademicYearStart: preq.AcademicYearStart,
			Timezone:          t.Config.Timezone,
			RawText:           res.RawText,
			Events:            res.Events,
		}
		if err := t.Store.SaveRun(ctx, run); err != nil {
			appLog.Error("mcp: save run failed", err)
		} else {
			out.RunID = run.ID
		}
	}
	return jsonResult(out)
}

func (t *Tools) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.Store == nil {
		return mcp.NewToolResultError("no run store configured"), nil
	}
	runs, err := t.Store.ListRuns(ctx, req.GetInt("limit", store.DefaultListLimit))
	if err != nil {
		return mcp.NewToolResultErrorFromErr("list runs", err), nil
	}
	views := make([]store.RunView, 0, len(runs))
	for i := range runs {
		views = append(views, runs[i].View(false))
	}
	return jsonResult(views)
}

func (t *Tools) lookup(ctx context.Context, req mcp.CallToolRequest) (*store.Run, *mcp.CallToolResult) {
	if t.Store == nil {
		return nil, mcp.NewToolResultError("no run store configured")
	}
	id, err := req.RequireString("id")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	run, err := t.Store.Run(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, mcp.NewToolResultErrorf("run %s not found", id)
	}
	if err != nil {
		return nil, mcp.NewToolResultErrorFromErr("load run", err)
	}
	return run, nil
}

func (t *Tools) getRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	run, errRes := t.lookup(ctx, req)
	if errRes != nil {
		return errRes, nil
	}
	return jsonResult(run.View(true))
}

func (t *Tools) getRunICS(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	run, errRes := t.lookup(ctx, req)
	if errRes != nil {
		return errRes, nil
	}
	loc, err := time.LoadLocation(run.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return mcp.NewToolResultText(ics.Encode(run.Events, ics.EncodeOptions{Location: loc})), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
