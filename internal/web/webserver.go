package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sheettrack/internal/analytics"
	"sheettrack/internal/sheet"
	"sheettrack/internal/storage"
	"sheettrack/internal/tracker"
)

type ViewMode string

const (
	ViewAll ViewMode = "all"
	ViewNew ViewMode = "new"

	recentRuns = 5
)

// ParseViewMode defaults to ViewAll for anything but "new".
func ParseViewMode(s string) ViewMode {
	if ViewMode(s) == ViewNew {
		return ViewNew
	}
	return ViewAll
}

// Tracker is the part of the tracker the dashboard drives.
type Tracker interface {
	AddRecord(r sheet.Record) (sheet.State, error)
	Start(ctx context.Context) (*tracker.Pending, error)
	Snapshot() tracker.View
}

// WebServer serves the dashboard page and its JSON API.
type WebServer struct {
	tracker       Tracker
	gen           *sheet.Generator
	journal       storage.Journal
	spreadsheetID string
	server        *http.Server
	port          int
	startTime     time.Time
	// refreshes outlive the request that started them
	runCtx context.Context
}

func NewWebServer(ctx context.Context, tr Tracker, gen *sheet.Generator, journal storage.Journal, spreadsheetID string, port int) *WebServer {
	return &WebServer{
		tracker:       tr,
		gen:           gen,
		journal:       journal,
		spreadsheetID: spreadsheetID,
		port:          port,
		startTime:     time.Now(),
		runCtx:        ctx,
	}
}

// Handler returns the routes of the dashboard.
func (ws *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", ws.handleStatus)   // Health check endpoint
	mux.HandleFunc("/api/state", ws.handleState)     // Stats and rows for a view
	mux.HandleFunc("/api/rows", ws.handleAddRow)     // Add a test row
	mux.HandleFunc("/api/refresh", ws.handleRefresh) // Run the tracker
	mux.HandleFunc("/api/runs", ws.handleRuns)       // Run journal
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", ws.handleDashboard) // must stay last
	return mux
}

// Start blocks serving HTTP until Stop is called.
func (ws *WebServer) Start() error {
	ws.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", ws.port),
		Handler:      ws.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("🌐 Starting SheetTrack dashboard on http://localhost:%d", ws.port)
	err := ws.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (ws *WebServer) Stop() error {
	if ws.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return ws.server.Shutdown(ctx)
}

type stateResponse struct {
	View       ViewMode        `json:"view"`
	Stats      analytics.Stats `json:"stats"`
	Rows       []sheet.Record  `json:"rows"`
	Insight    string          `json:"insight,omitempty"`
	Refreshing bool            `json:"refreshing"`
}

func (ws *WebServer) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v := ws.tracker.Snapshot()
	mode := ParseViewMode(r.URL.Query().Get("view"))
	rows := v.Log
	if mode == ViewNew {
		rows = v.New
	}
	writeJSON(w, http.StatusOK, stateResponse{
		View:       mode,
		Stats:      analytics.Compute(v.Log, v.Watermark),
		Rows:       rows,
		Insight:    v.Insight,
		Refreshing: v.Refreshing,
	})
}

func (ws *WebServer) handleAddRow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	row := ws.addRow()
	if isForm(r) {
		http.Redirect(w, r, dashboardURL(r), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (ws *WebServer) addRow() sheet.Record {
	row := ws.gen.Next()
	if _, err := ws.tracker.AddRecord(row); err != nil {
		// the row is kept in memory; the next successful save catches up
		log.Printf("⚠️ Failed to persist added row %s: %v", row.ID, err)
	}
	log.Printf("➕ Added test row %s (%s, %s)", row.ID, row.User, row.Status)
	return row
}

func (ws *WebServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, err := ws.tracker.Start(ws.runCtx)
	if errors.Is(err, tracker.ErrRefreshInProgress) {
		if isForm(r) {
			http.Redirect(w, r, dashboardURL(r), http.StatusSeeOther)
			return
		}
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if isForm(r) {
		http.Redirect(w, r, dashboardURL(r), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":      "refreshing",
		"new_records": len(p.Rows),
	})
}

func (ws *WebServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	runs, err := ws.loadRuns()
	if err != nil {
		log.Printf("❌ Failed to load runs: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (ws *WebServer) loadRuns() ([]storage.Run, error) {
	if ws.journal == nil {
		return []storage.Run{}, nil
	}
	runs, err := ws.journal.LoadRuns()
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	return runs, nil
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "sheettrack",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(ws.startTime).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

// isForm reports whether the request came from the dashboard's HTML forms.
func isForm(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "application/x-www-form-urlencoded" || r.URL.Query().Get("redirect") == "1"
}

func dashboardURL(r *http.Request) string {
	if ParseViewMode(r.URL.Query().Get("view")) == ViewNew {
		return "/?view=new"
	}
	return "/"
}
