// cospa TUI - a terminal client for finding cafes and coworking spaces in Vietnam.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cospa-vn/cospa-tui/internal/api"
	"github.com/cospa-vn/cospa-tui/internal/config"
	"github.com/cospa-vn/cospa-tui/internal/history"
	"github.com/cospa-vn/cospa-tui/internal/prefs"
	"github.com/cospa-vn/cospa-tui/internal/quota"
	"github.com/cospa-vn/cospa-tui/internal/session"
	"github.com/cospa-vn/cospa-tui/internal/ui/chat"
	"github.com/cospa-vn/cospa-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			fmt.Printf("cospa %s (%s, built %s)\n", Version, GitCommit, BuildDate)
			return
		case "history":
			runHistory(args[1:])
			return
		case "saved":
			runSaved(args[1:])
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	runTUI(args)
}

func printUsage() {
	fmt.Println(`cospa - tìm quán cafe & không gian làm việc

Usage:
  cospa                    start the chat TUI
  cospa history <query>    search your mirrored chat history
  cospa saved              list your saved locations
  cospa version            print version information

Flags (TUI):
  --api-url URL            backend base URL (overrides config)
  --config PATH            explicit config file path`)
}

// =============================================================================
// TUI
// =============================================================================

func runTUI(args []string) {
	fs := flag.NewFlagSet("cospa", flag.ExitOnError)
	apiURL := fs.String("api-url", "", "backend base URL")
	configPath := fs.String("config", "", "config file path")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *apiURL != "" {
		cfg.API.BaseURL = *apiURL
	}

	stateDir, err := cfg.StateDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// The TUI owns the terminal; divert request logging to a file.
	logFile, err := os.OpenFile(filepath.Join(stateDir, "cospa.log"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err == nil {
		log.SetOutput(logFile)
		defer logFile.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	store, err := prefs.NewFileStore(stateDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not open preferences: %v\n", err)
		os.Exit(1)
	}

	// The history mirror is best-effort: the app works without it.
	var mirror *history.Store
	if m, err := history.Open(filepath.Join(stateDir, "history.db")); err == nil {
		mirror = m
		defer mirror.Close()
	} else {
		log.Printf("history mirror unavailable: %v", err)
	}

	client := api.NewClient(cfg.API.BaseURL).
		WithTimeout(time.Duration(cfg.API.TimeoutSecs) * time.Second)

	ctrl := session.NewController(client, store, quota.NewLimiter(store), mirror).
		WithMapCenter(cfg.Center())

	theme := styles.NewThemeForMode(cfg.UI.Theme)
	m := chat.New(ctrl, theme, cfg.UI.SplitPercent)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// =============================================================================
// HISTORY SUBCOMMANDS
// =============================================================================

func openMirror() (*history.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	stateDir, err := cfg.StateDir()
	if err != nil {
		return nil, err
	}
	return history.Open(filepath.Join(stateDir, "history.db"))
}

func runHistory(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: cospa history <query>")
		os.Exit(2)
	}

	mirror, err := openMirror()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer mirror.Close()

	hits, err := mirror.Search(strings.Join(args, " "), 20)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(hits) == 0 {
		fmt.Println("Không tìm thấy tin nhắn nào.")
		return
	}
	for _, hit := range hits {
		fmt.Printf("[%s] %s: %s\n",
			hit.CreatedAt.Format("2006-01-02 15:04"), hit.Role, hit.Content)
	}
}

func runSaved(args []string) {
	mirror, err := openMirror()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer mirror.Close()

	locs, err := mirror.SavedLocations()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(locs) == 0 {
		fmt.Println("Chưa có địa điểm nào được lưu.")
		return
	}
	for _, loc := range locs {
		fmt.Printf("%-30s %-12s %s\n", loc.Name, loc.Category, loc.Address)
	}
}
