package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aircast/work/airplay"
	"aircast/work/config"
	"aircast/work/database"
	"aircast/work/handlers"
	"aircast/work/logger"
	"aircast/work/middleware"
	"aircast/work/player"
	"aircast/work/types"
	"aircast/work/watcher"
)

var (
	Version   = "v0.1.0" // default version
	startTime = time.Now()
)

// StatusResponse is the JSON body of the /status endpoint.
type StatusResponse struct {
	Version         string `json:"version"`
	Uptime          string `json:"uptime"`
	ActiveSessions  int    `json:"activeSessions"`
	CachedResources int    `json:"cachedResources"`
	MemoryUsage     string `json:"memoryUsage"`
	WatcherEnabled  bool   `json:"watcherEnabled"`
	Persistence     bool   `json:"persistence"`
}

// our main app worker
func main() {

	// load our config
	cfg := config.LoadConfig()

	// Set up logging
	logger.SetLogLevel(cfg.LogLevel)
	lg := logger.New(cfg.LogLevel)

	// Initialize worker pool
	workerPool, err := ants.NewPool(cfg.WorkerThreads, ants.WithPreAlloc(true))
	if err != nil {
		lg.Error("Failed to create worker pool: %v", err)
		os.Exit(1)
	}
	defer workerPool.Release()

	// Optional session persistence
	var db *database.DB
	if cfg.PersistSessions {
		if db, err = database.Open(cfg.DatabasePath, lg); err != nil {
			lg.Error("Failed to open database: %v (persistence disabled)", err)
			db = nil
		} else {
			defer db.Close()
		}
	}

	// Player seam: exec the configured command, or just log resolutions
	var mediaPlayer types.Player
	if len(cfg.PlayerCommand) > 0 {
		mediaPlayer = player.NewCommandPlayer(cfg, lg)
	} else {
		mediaPlayer = player.NewNullPlayer(cfg, lg)
	}

	// Casting session manager
	mgr := airplay.NewManager(cfg, lg, mediaPlayer, workerPool, db)

	// Session watchdog for stalled play attempts
	if cfg.WatcherEnabled {
		wd := watcher.New(mgr, lg, cfg.FetchTimeout)
		wd.Start()
		defer wd.Stop()
	}

	// Control server: the AirPlay casting verbs
	control := mux.NewRouter()
	control.HandleFunc("/play", handlers.HandlePlay(mgr, cfg, lg)).Methods("POST")
	control.HandleFunc("/action", handlers.HandleAction(mgr, lg)).Methods("POST")
	control.HandleFunc("/stop", handlers.HandleStop(mgr)).Methods("POST")
	control.HandleFunc("/rate", handlers.HandleRate(mgr)).Methods("POST")
	control.HandleFunc("/scrub", handlers.HandleScrub(mgr)).Methods("POST")
	control.HandleFunc("/reverse", handlers.HandleReverse(mgr, lg)).Methods("POST")
	control.Handle("/metrics", promhttp.Handler()).Methods("GET")
	control.HandleFunc("/status", handleStatus(mgr, cfg)).Methods("GET")

	// Media server: rewritten manifests for the local player
	media := mux.NewRouter()
	media.PathPrefix("/").HandlerFunc(middleware.GzipMiddleware(handlers.HandleMedia(mgr, lg))).Methods("GET")

	// show info
	lg.Info("Starting aircast %s", Version)
	lg.Info("Server configuration:")
	lg.Info("  - Control Port: %d", cfg.ControlPort)
	lg.Info("  - Media Server: http://%s", cfg.MediaHostPort())
	lg.Info("  - Worker Threads: %d", cfg.WorkerThreads)
	lg.Info("  - Fetch Timeout: %s", cfg.FetchTimeout)
	lg.Info("  - Watchdog Enabled: %v", cfg.WatcherEnabled)
	lg.Info("  - Persistence Enabled: %v", cfg.PersistSessions)
	lg.Info("  - Debug Enabled: %v", cfg.Debug)
	lg.Info("  - URL Obfuscation: %v", cfg.ObfuscateUrls)

	controlSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ControlPort),
		Handler:           control,
		ReadHeaderTimeout: 10 * time.Second,
	}
	mediaSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MediaPort),
		Handler:           media,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 2)
	go func() { errChan <- controlSrv.ListenAndServe() }()
	go func() { errChan <- mediaSrv.ListenAndServe() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		lg.Error("Server failed: %v", err)
		os.Exit(1)
	case sig := <-sigChan:
		lg.Info("Received %s, shutting down", sig)
		mediaPlayer.Stop()
		controlSrv.Close()
		mediaSrv.Close()
	}
}

// handleStatus reports operational stats as JSON.
func handleStatus(mgr *airplay.Manager, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		status := StatusResponse{
			Version:         Version,
			Uptime:          time.Since(startTime).Round(time.Second).String(),
			ActiveSessions:  mgr.SessionCount(),
			CachedResources: mgr.CachedResourceCount(),
			MemoryUsage:     fmt.Sprintf("%.1f MB", float64(mem.Alloc)/(1024*1024)),
			WatcherEnabled:  cfg.WatcherEnabled,
			Persistence:     cfg.PersistSessions,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			http.Error(w, "encoding status failed", http.StatusInternalServerError)
		}
	}
}
