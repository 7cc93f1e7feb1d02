package web

import (
	"html/template"
	"log"
	"net/http"
	"strings"

	"sheettrack/internal/analytics"
	"sheettrack/internal/sheet"
	"sheettrack/internal/storage"
)

// DashboardData is everything the page template renders.
type DashboardData struct {
	View          ViewMode
	Stats         analytics.Stats
	Rows          []sheet.Record
	NewCount      int
	Insight       []string
	HasInsight    bool
	Refreshing    bool
	Runs          []storage.Run
	SpreadsheetID string
	EmptyMessage  string
}

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"money": analytics.FormatMoney,
	"statusClass": func(s sheet.Status) string {
		switch s {
		case sheet.StatusCompleted:
			return "st-completed"
		case sheet.StatusPending:
			return "st-pending"
		default:
			return "st-active"
		}
	},
	"clock": func(r storage.Run) string { return r.FinishedAt.UTC().Format(sheet.TimestampLayout) },
}).Parse(dashboardHTML))

func (ws *WebServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := ws.prepareDashboardData(ParseViewMode(r.URL.Query().Get("view")))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, data); err != nil {
		log.Printf("❌ Failed to render dashboard: %v", err)
	}
}

func (ws *WebServer) prepareDashboardData(mode ViewMode) DashboardData {
	v := ws.tracker.Snapshot()
	data := DashboardData{
		View:          mode,
		Stats:         analytics.Compute(v.Log, v.Watermark),
		Rows:          v.Log,
		NewCount:      len(v.New),
		Refreshing:    v.Refreshing,
		SpreadsheetID: ws.spreadsheetID,
		EmptyMessage:  "No data available in spreadsheet.",
	}
	if mode == ViewNew {
		data.Rows = v.New
		data.EmptyMessage = "No new rows detected since your last refresh."
	}
	if v.Insight != "" {
		data.HasInsight = true
		data.Insight = strings.Split(v.Insight, "\n")
	}

	runs, err := ws.loadRuns()
	if err != nil {
		log.Printf("⚠️ Failed to load runs for dashboard: %v", err)
	}
	// newest first
	for i := len(runs) - 1; i >= 0 && len(data.Runs) < recentRuns; i-- {
		data.Runs = append(data.Runs, runs[i])
	}
	return data
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{if .Refreshing}}<meta http-equiv="refresh" content="2">{{end}}
<title>SheetTrack AI</title>
<style>
body{margin:0;font-family:system-ui,sans-serif;background:#f8fafc;color:#0f172a}
nav{background:#fff;border-bottom:1px solid #e2e8f0;padding:0 24px;height:64px;display:flex;align-items:center;justify-content:space-between}
h1{font-size:20px;color:#059669;margin:0}
main{max-width:1200px;margin:0 auto;padding:32px 24px}
button{border:0;border-radius:12px;padding:8px 16px;font-weight:600;cursor:pointer}
.btn-add{background:#f1f5f9;color:#334155}.btn-run{background:#059669;color:#fff}
button:disabled{opacity:.5;cursor:default}
.alert{background:#fffbeb;border:1px solid #fde68a;color:#92400e;border-radius:16px;padding:16px;margin-bottom:32px}
.grid{display:grid;grid-template-columns:repeat(auto-fit,minmax(220px,1fr));gap:24px;margin-bottom:32px}
.card{background:#fff;border:1px solid #e2e8f0;border-radius:16px;padding:24px}
.label{font-size:14px;color:#64748b}.value{font-size:24px;font-weight:700}
.panels{display:grid;grid-template-columns:2fr 1fr;gap:32px;margin-bottom:32px}
.insight p{margin:0 0 8px;font-style:italic;color:#334155}
.muted{color:#94a3b8}
.bars{display:flex;align-items:flex-end;gap:16px;height:200px}
.bar{flex:1;border-radius:6px 6px 0 0}
.toggle a{padding:8px 16px;border-radius:8px;text-decoration:none;color:#64748b;font-weight:600}
.toggle a.on{background:#0f172a;color:#fff}
table{width:100%;border-collapse:collapse;background:#fff;font-size:14px}
th{text-align:left;text-transform:uppercase;color:#64748b;background:#f8fafc;padding:16px 24px}
td{padding:16px 24px;border-top:1px solid #f1f5f9}
.num{text-align:right;font-variant-numeric:tabular-nums}
.pill{padding:2px 10px;border-radius:999px;font-size:12px}
.st-completed{background:#dcfce7;color:#15803d}.st-pending{background:#fef9c3;color:#a16207}.st-active{background:#dbeafe;color:#1d4ed8}
.empty{padding:48px;text-align:center;font-style:italic;color:#64748b;background:#fff;border:1px solid #e2e8f0;border-radius:16px}
</style>
</head>
<body>
<nav>
  <h1>SheetTrack AI</h1>
  <div>
    <form method="post" action="/api/rows?redirect=1&view={{.View}}" style="display:inline"><button class="btn-add" type="submit">+ Add Test Row</button></form>
    <form method="post" action="/api/refresh?redirect=1&view={{.View}}" style="display:inline"><button class="btn-run" type="submit" {{if .Refreshing}}disabled{{end}}>{{if .Refreshing}}Running...{{else}}Run Tracker{{end}}</button></form>
  </div>
</nav>
<main>
{{if gt .NewCount 0}}
  <div class="alert">Detecting <b><u>{{.NewCount}} new rows</u></b> added since your last processing run.</div>
{{end}}
  <div class="grid">
    <div class="card"><div class="label">Total Entries</div><div class="value">{{.Stats.TotalRecords}}</div></div>
    <div class="card"><div class="label">New Entries Detected</div><div class="value">{{.Stats.NewRecords}}</div></div>
    <div class="card"><div class="label">Processed Index</div><div class="value">{{.Stats.Watermark}}</div></div>
    <div class="card"><div class="label">Gross Volume</div><div class="value">{{money .Stats.ValueSum}}</div></div>
  </div>
  <div class="panels">
    <div class="card insight">
      <h2>AI Content Insights</h2>
{{if .Refreshing}}
      <p class="muted">The model is analyzing your sheet data...</p>
{{else if .HasInsight}}
      {{range .Insight}}<p>{{.}}</p>{{end}}
{{else}}
      <p class="muted">Run the tracker to generate AI-powered insights on new data.</p>
{{end}}
    </div>
    <div class="card">
      <h2>Status Breakdown</h2>
      <div class="bars">
        {{range .Stats.Chart}}<div class="bar" title="{{.Status}}: {{.Count}}" style="height:{{.Percent}}%;background:{{.Color}}"></div>{{end}}
      </div>
      {{range .Stats.Chart}}<div style="display:flex;justify-content:space-between"><span class="label">{{.Status}}</span><b>{{.Count}}</b></div>{{end}}
    </div>
  </div>
  <div style="display:flex;justify-content:space-between;align-items:center;margin-bottom:24px">
    <div class="toggle">
      <a href="/?view=all" {{if eq .View "all"}}class="on"{{end}}>All Rows</a>
      <a href="/?view=new" {{if eq .View "new"}}class="on"{{end}}>New Only{{if gt .NewCount 0}} ({{.NewCount}}){{end}}</a>
    </div>
    <span class="muted">Connected to Spreadsheet ID: <code>{{.SpreadsheetID}}</code></span>
  </div>
  <h3>{{if eq .View "new"}}New Delta (Unprocessed){{else}}Master Database{{end}} <span class="muted">Showing {{len .Rows}} {{if eq .View "new"}}new{{else}}total{{end}} entries</span></h3>
{{if .Rows}}
  <table>
    <thead><tr><th>Timestamp</th><th>User</th><th>Source</th><th>Status</th><th class="num">Value</th></tr></thead>
    <tbody>
    {{range .Rows}}<tr><td>{{.Timestamp}}</td><td><b>{{.User}}</b></td><td>{{.Source}}</td><td><span class="pill {{statusClass .Status}}">{{.Status}}</span></td><td class="num">{{money .Value}}</td></tr>
    {{end}}
    </tbody>
  </table>
{{else}}
  <div class="empty">{{.EmptyMessage}}</div>
{{end}}
{{if .Runs}}
  <h3>Recent Runs</h3>
  <table>
    <thead><tr><th>Finished</th><th class="num">New Rows</th><th class="num">Processed Index</th><th>Insight</th></tr></thead>
    <tbody>
    {{range .Runs}}<tr><td>{{clock .}}</td><td class="num">{{.NewRecords}}</td><td class="num">{{.WatermarkBefore}} → {{.WatermarkAfter}}</td><td>{{.Insight}}</td></tr>
    {{end}}
    </tbody>
  </table>
{{end}}
</main>
</body>
</html>
`
