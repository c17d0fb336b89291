// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logging

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
)

const logDirCleanInterval = time.Minute

var cleanerStop chan struct{}

// configureLogDirCleanerLocked (re)starts the background cleaner. Must be called with writerMu held.
func configureLogDirCleanerLocked(logDir string, maxTotalSizeMB int, protectedPath string) {
	stopLogDirCleanerLocked()
	if maxTotalSizeMB <= 0 {
		return
	}

	maxBytes := int64(maxTotalSizeMB) * 1024 * 1024
	stop := make(chan struct{})
	cleanerStop = stop

	go func() {
		ticker := time.NewTicker(logDirCleanInterval)
		defer ticker.Stop()
		for {
			if removed, err := enforceLogDirSizeLimit(logDir, maxBytes, protectedPath); err != nil {
				log.Debugf("log dir cleaner: %v", err)
			} else if removed > 0 {
				log.Debugf("log dir cleaner removed %d file(s)", removed)
			}
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

// stopLogDirCleanerLocked stops a running cleaner. Must be called with writerMu held.
func stopLogDirCleanerLocked() {
	if cleanerStop != nil {
		close(cleanerStop)
		cleanerStop = nil
	}
}

// enforceLogDirSizeLimit deletes the oldest *.log files until the directory
// fits within maxBytes. protectedPath is never removed.
func enforceLogDirSizeLimit(logDir string, maxBytes int64, protectedPath string) (int, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	type logFile struct {
		path    string
		size    int64
		modTime time.Time
	}

	var files []logFile
	var total int64
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		info, errInfo := entry.Info()
		if errInfo != nil {
			continue
		}
		files = append(files, logFile{
			path:    filepath.Join(logDir, entry.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}
	if total <= maxBytes {
		return 0, nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	protected := filepath.Clean(protectedPath)
	removed := 0
	for _, f := range files {
		if total <= maxBytes {
			break
		}
		if protectedPath != "" && filepath.Clean(f.path) == protected {
			continue
		}
		if errRemove := os.Remove(f.path); errRemove != nil {
			continue
		}
		total -= f.size
		removed++
	}
	return removed, nil
}
