// RomStash Core
// Copyright (c) 2025 The RomStash Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of RomStash Core.
//
// RomStash Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// RomStash Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with RomStash Core.  If not, see <http://www.gnu.org/licenses/>.

package tasks

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Log file layout: a key-value header, one body line per progress event,
// and a key-value footer written at terminal transition. The file is the
// authoritative task record after restart.
const (
	headerStarted = "Task started"
	headerType    = "Type"
	headerUser    = "User"
	headerData    = "Data"

	footerEnded       = "Task ended"
	footerStopped     = "Task stopped"
	footerStatus      = "Status"
	footerDuration    = "Duration"
	footerFinalStatus = "Final Status"
	footerProgress    = "Progress"
	footerCurrentStep = "Current Step"
	footerTotalSteps  = "Total Steps"
	footerSystem      = "System"
	footerStats       = "Stats"

	logTimeLayout = time.RFC3339
	lineTimeFmt   = "15:04:05"
)

// LogFilePath returns the log file location for a task id.
func LogFilePath(logsDir string, id uuid.UUID) string {
	return filepath.Join(logsDir, id.String()+".log")
}

type logFile struct {
	file *os.File
	path string
}

// openLogFile creates the task log and writes the header. The data
// payload is written as a single JSON line, "<nil>" when absent.
func openLogFile(logsDir string, id uuid.UUID, kind Kind, username string,
	data json.RawMessage, startedAt time.Time,
) (*logFile, error) {
	path := LogFilePath(logsDir, id)
	//nolint:gosec // path is derived from a UUID under the state directory
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create task log: %w", err)
	}

	dataLine := "<nil>"
	if len(data) > 0 {
		var compact bytes.Buffer
		if err := json.Compact(&compact, data); err == nil {
			dataLine = compact.String()
		} else {
			dataLine = string(data)
		}
	}

	header := fmt.Sprintf("%s: %s\n%s: %s\n%s: %s\n%s: %s\n\n",
		headerStarted, startedAt.Format(logTimeLayout),
		headerType, kind,
		headerUser, username,
		headerData, dataLine,
	)
	if _, err := f.WriteString(header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to write task log header: %w", err)
	}

	return &logFile{file: f, path: path}, nil
}

// appendLine writes one timestamped progress line and returns it.
func (l *logFile) appendLine(ts time.Time, msg string) string {
	line := fmt.Sprintf("[%s] %s", ts.Format(lineTimeFmt), msg)
	if _, err := l.file.WriteString(line + "\n"); err != nil {
		log.Warn().Err(err).Str("path", l.path).Msg("failed to append task log line")
	}
	return line
}

type footer struct {
	endedAt     time.Time
	duration    time.Duration
	stats       Stats
	status      Status
	system      string
	progress    int
	currentStep int
	totalSteps  int
}

// writeFooter appends the terminal summary and closes the file.
func (l *logFile) writeFooter(f footer) {
	endKey := footerEnded
	if f.status == StatusStopped {
		endKey = footerStopped
	}

	statsJSON := "{}"
	if len(f.stats) > 0 {
		if b, err := json.Marshal(f.stats); err == nil {
			statsJSON = string(b)
		}
	}

	text := fmt.Sprintf("\n%s: %s\n%s: %s\n%s: %s\n%s: %s\n%s: %d\n%s: %d\n%s: %d\n%s: %s\n%s: %s\n",
		endKey, f.endedAt.Format(logTimeLayout),
		footerStatus, f.status,
		footerDuration, f.duration.Round(time.Millisecond),
		footerFinalStatus, f.status,
		footerProgress, f.progress,
		footerCurrentStep, f.currentStep,
		footerTotalSteps, f.totalSteps,
		footerSystem, f.system,
		footerStats, statsJSON,
	)
	if _, err := l.file.WriteString(text); err != nil {
		log.Warn().Err(err).Str("path", l.path).Msg("failed to write task log footer")
	}
	l.close()
}

func (l *logFile) close() {
	if err := l.file.Close(); err != nil {
		log.Warn().Err(err).Str("path", l.path).Msg("failed to close task log")
	}
}

// Record is one task reconstructed from its log file.
type Record struct {
	StartTS  time.Time
	EndTS    time.Time
	Stats    Stats
	Data     json.RawMessage
	Username string
	System   string
	Kind     Kind
	Status   Status
	ID       uuid.UUID

	Progress    int
	CurrentStep int
	TotalSteps  int
}

// ParseLogFile reconstructs a task record from its log file. A file with
// a header but no footer belonged to a task that was running when the
// process died; its status is reported as running and callers classify
// it as stopped.
func ParseLogFile(path string) (Record, error) {
	base := filepath.Base(path)
	id, err := uuid.Parse(strings.TrimSuffix(base, filepath.Ext(base)))
	if err != nil {
		return Record{}, fmt.Errorf("task log filename is not a uuid: %w", err)
	}

	//nolint:gosec // path comes from scanning the task log directory
	f, err := os.Open(path)
	if err != nil {
		return Record{}, fmt.Errorf("failed to open task log: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	rec := Record{ID: id, Status: StatusRunning}
	sawFooter := false

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		key, value, found := strings.Cut(line, ": ")
		if !found {
			continue
		}
		switch key {
		case headerStarted:
			if ts, err := time.Parse(logTimeLayout, value); err == nil {
				rec.StartTS = ts
			}
		case headerType:
			rec.Kind = Kind(value)
		case headerUser:
			rec.Username = value
		case headerData:
			if value != "<nil>" && json.Valid([]byte(value)) {
				rec.Data = json.RawMessage(value)
			}
		case footerEnded, footerStopped:
			sawFooter = true
			if ts, err := time.Parse(logTimeLayout, value); err == nil {
				rec.EndTS = ts
			}
		case footerFinalStatus:
			rec.Status = Status(value)
		case footerProgress:
			if n, err := strconv.Atoi(value); err == nil {
				rec.Progress = n
			}
		case footerCurrentStep:
			if n, err := strconv.Atoi(value); err == nil {
				rec.CurrentStep = n
			}
		case footerTotalSteps:
			if n, err := strconv.Atoi(value); err == nil {
				rec.TotalSteps = n
			}
		case footerSystem:
			rec.System = value
		case footerStats:
			var stats Stats
			if err := json.Unmarshal([]byte(value), &stats); err == nil {
				rec.Stats = stats
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return rec, fmt.Errorf("failed to scan task log: %w", err)
	}

	if !sawFooter {
		rec.Status = StatusRunning
	}
	return rec, nil
}
