// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main is the entry point of the lltranslate server: a small web page
// for picking a hosted model, starting or stopping it, and asking it how to
// say a phrase in another language.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/lltranslate/internal/buildinfo"
	"github.com/traylinx/lltranslate/internal/cmd"
	"github.com/traylinx/lltranslate/internal/config"
	"github.com/traylinx/lltranslate/internal/logging"
	"github.com/traylinx/lltranslate/internal/util"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	var configPath string
	var openBrowser bool
	var showVersion bool

	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.BoolVar(&openBrowser, "open", false, "Open the web page in the default browser once the server is up")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(buildinfo.String())
		return
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !os.IsNotExist(errLoad) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	optional := false
	if configPath == "" {
		configPath = filepath.Join(wd, "config.yaml")
		optional = true
	}

	cfg, err := config.LoadConfigOptional(configPath, optional)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return
	}
	if openBrowser {
		cfg.OpenBrowser = true
	}

	if err = logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogsMaxTotalSizeMB); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		return
	}

	log.Info(buildinfo.String())
	util.SetLogLevel(cfg)

	watchPath := configPath
	if _, errStat := os.Stat(configPath); errStat != nil {
		log.Infof("no config file at %s; using defaults", configPath)
		watchPath = ""
	}
	cmd.StartService(cfg, watchPath)
}
