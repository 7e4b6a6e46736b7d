package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// handleHealth reports process and host vitals. Kept dependency-light so a
// wedged collector still answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := map[string]interface{}{
		"status":         "healthy",
		"service":        "krx-collector",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"memory": map[string]interface{}{
			"alloc_mb": m.Alloc / 1024 / 1024,
			"sys_mb":   m.Sys / 1024 / 1024,
			"num_gc":   m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		response["host_memory"] = map[string]interface{}{
			"total_mb":     vm.Total / 1024 / 1024,
			"available_mb": vm.Available / 1024 / 1024,
			"used_percent": vm.UsedPercent,
		}
	}
	if du, err := disk.Usage("/"); err == nil {
		response["disk"] = map[string]interface{}{
			"free_gb":      du.Free / 1024 / 1024 / 1024,
			"used_percent": du.UsedPercent,
		}
	}

	if err := s.db.Conn().Ping(); err != nil {
		response["status"] = "degraded"
		response["database_error"] = err.Error()
		s.writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleStatus summarises the store: high-water-mark, last collection runs,
// recent quality issues.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	conn := s.db.Conn()

	var lastDate sql.NullString
	if err := conn.QueryRow(`SELECT MAX(time) FROM ohlcv_daily`).Scan(&lastDate); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read store state")
		return
	}

	var activeStocks int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM stocks WHERE is_active = 1`).Scan(&activeStocks); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to count stocks")
		return
	}

	type runLog struct {
		RunID      string `json:"run_id"`
		DataType   string `json:"data_type"`
		Date       string `json:"collection_date"`
		Status     string `json:"status"`
		Records    int    `json:"records_collected"`
		FinishedAt string `json:"finished_at"`
	}
	rows, err := conn.Query(`
		SELECT run_id, data_type, collection_date, status, records_collected, finished_at
		FROM data_collection_logs
		ORDER BY id DESC LIMIT 10
	`)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read collection logs")
		return
	}
	defer rows.Close()

	var recent []runLog
	for rows.Next() {
		var l runLog
		if err := rows.Scan(&l.RunID, &l.DataType, &l.Date, &l.Status, &l.Records, &l.FinishedAt); err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to scan collection log")
			return
		}
		recent = append(recent, l)
	}

	qualityIssues, err := s.quality.CountIssuesSince(time.Now().AddDate(0, 0, -7))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to count quality issues")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"last_trade_date":   lastDate.String,
		"active_stocks":     activeStocks,
		"recent_runs":       recent,
		"quality_issues_7d": qualityIssues,
		"reported_at":       time.Now().Format(time.RFC3339),
	})
}

// handleLatestReport streams the newest report file as plain text.
func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	path, content, err := s.reports.Latest()
	if errors.Is(err, os.ErrNotExist) {
		s.writeError(w, http.StatusNotFound, "no reports yet")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read latest report")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Report-Path", path)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(content))
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
