package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"sheettrack/internal/analytics"
	"sheettrack/internal/sheet"
	"sheettrack/internal/tracker"
)

const (
	maxAddRows  = 50
	defaultList = 20
)

type AddRowsParams struct {
	Count int `json:"count,omitempty" mcp:"number of test rows to add (default: 1, max: 50)"`
}

type RunTrackerParams struct{}

type StatsParams struct {
	Format string `json:"format,omitempty" mcp:"'text' for a readable summary or 'json' for the raw stats object (default: text)"`
}

type ListRowsParams struct {
	View  string `json:"view,omitempty" mcp:"'all' for every row or 'new' for rows since the last run (default: all)"`
	Limit int    `json:"limit,omitempty" mcp:"maximum number of rows to return, newest last (default: 20)"`
}

// ToolServer exposes tracker actions as MCP tools.
type ToolServer struct {
	tracker *tracker.Tracker
	gen     *sheet.Generator
}

func NewToolServer(tr *tracker.Tracker, gen *sheet.Generator) *ToolServer {
	return &ToolServer{tracker: tr, gen: gen}
}

// NewServer builds an MCP server with every sheet tool registered.
func NewServer(ts *ToolServer, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "sheettrack-mcp-server",
		Version: version,
	}, nil)
	ts.Register(server)
	return server
}

func (s *ToolServer) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "sheet_add_rows",
		Description: "Appends generated test rows to the tracked sheet. New rows stay 'new' until the tracker runs.",
	}, s.AddRows)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sheet_run_tracker",
		Description: "Marks every row as processed and returns an AI summary of the rows that were new for this run",
	}, s.RunTracker)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sheet_stats",
		Description: "Returns totals, the processed index, gross volume and the status breakdown, as text or JSON",
	}, s.Stats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sheet_list_rows",
		Description: "Lists rows of the sheet, either all rows or only the rows added since the last run",
	}, s.ListRows)

	log.Printf("📋 Registered 4 SheetTrack MCP tools")
}

func (s *ToolServer) AddRows(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[AddRowsParams]) (*mcp.CallToolResultFor[any], error) {
	n := params.Arguments.Count
	if n <= 0 {
		n = 1
	}
	if n > maxAddRows {
		return errorResult(fmt.Sprintf("❌ count must be at most %d", maxAddRows)), nil
	}

	var st sheet.State
	for i := 0; i < n; i++ {
		var err error
		if st, err = s.tracker.AddRecord(s.gen.Next()); err != nil {
			log.Printf("⚠️ MCP: failed to persist added row: %v", err)
		}
	}
	log.Printf("➕ MCP: added %d test rows", n)

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("✅ Added %d rows. %d rows are waiting for the next run.", n, len(st.Log)-st.Watermark)},
		},
		Meta: map[string]interface{}{
			"total_records": len(st.Log),
			"new_records":   len(st.Log) - st.Watermark,
		},
	}, nil
}

func (s *ToolServer) RunTracker(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[RunTrackerParams]) (*mcp.CallToolResultFor[any], error) {
	// the summary must not be cut short when the tool call is cancelled
	run, err := s.tracker.Refresh(context.WithoutCancel(ctx))
	if errors.Is(err, tracker.ErrRefreshInProgress) {
		return errorResult("⏳ A tracker run is already in progress, try again shortly"), nil
	}
	if err != nil {
		return errorResult(fmt.Sprintf("❌ Tracker run failed: %v", err)), nil
	}

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Processed %d new rows (index %d → %d).\n\n%s",
				run.NewRecords, run.WatermarkBefore, run.WatermarkAfter, run.Insight)},
		},
		Meta: map[string]interface{}{
			"new_records": run.NewRecords,
			"watermark":   run.WatermarkAfter,
			"failed":      run.Failed,
		},
	}, nil
}

func (s *ToolServer) Stats(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[StatsParams]) (*mcp.CallToolResultFor[any], error) {
	v := s.tracker.Snapshot()
	stats := analytics.Compute(v.Log, v.Watermark)

	switch strings.ToLower(strings.TrimSpace(params.Arguments.Format)) {
	case "", "text":
	case "json":
		js, err := stats.ToJSON()
		if err != nil {
			return errorResult(fmt.Sprintf("❌ Failed to encode stats: %v", err)), nil
		}
		return &mcp.CallToolResultFor[any]{
			Content: []mcp.Content{&mcp.TextContent{Text: js}},
		}, nil
	default:
		return errorResult("❌ format must be 'text' or 'json'"), nil
	}

	text := stats.Summary()
	if v.Insight != "" {
		text += "\nLast insight:\n" + v.Insight
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil
}

func (s *ToolServer) ListRows(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[ListRowsParams]) (*mcp.CallToolResultFor[any], error) {
	view := strings.ToLower(strings.TrimSpace(params.Arguments.View))
	if view != "" && view != "all" && view != "new" {
		return errorResult("❌ view must be 'all' or 'new'"), nil
	}
	limit := params.Arguments.Limit
	if limit <= 0 {
		limit = defaultList
	}

	v := s.tracker.Snapshot()
	rows := v.Log
	title := "All rows"
	if view == "new" {
		rows = v.New
		title = "New rows since the last run"
	}
	if len(rows) == 0 {
		return &mcp.CallToolResultFor[any]{
			Content: []mcp.Content{&mcp.TextContent{Text: "No rows to show."}},
		}, nil
	}

	shown := rows
	if len(shown) > limit {
		shown = shown[len(shown)-limit:]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d of %d):\n", title, len(shown), len(rows))
	for _, r := range shown {
		fmt.Fprintf(&b, "- [%s] %s | %s | %s | %s | %s\n", r.ID, r.Timestamp, r.User, r.Source, r.Status, analytics.FormatMoney(r.Value))
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: b.String()}},
		Meta:    map[string]interface{}{"total": len(rows), "shown": len(shown)},
	}, nil
}

func errorResult(text string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
