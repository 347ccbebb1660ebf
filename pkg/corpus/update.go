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

package corpus

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/RomStashProject/romstash-core/pkg/helpers"
	"github.com/RomStashProject/romstash-core/pkg/shared/httpclient"
	"github.com/rs/zerolog/log"
)

// Update downloads a fresh corpus archive, extracts and verifies the
// corpus file, backs up the previous one, swaps the new file in, and
// invalidates the cache so the next use reloads.
func (c *Cache) Update(ctx context.Context, client *httpclient.Client, archiveURL string) error {
	if archiveURL == "" {
		return errors.New("no corpus archive url configured")
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create corpus directory: %w", err)
	}

	zipPath := c.path + ".archive.zip"
	log.Info().Str("url", archiveURL).Msg("downloading corpus archive")
	if err := client.DownloadFile(ctx, httpclient.DownloadFileArgs{
		URL:        archiveURL,
		OutputPath: zipPath,
	}); err != nil {
		return fmt.Errorf("failed to download corpus archive: %w", err)
	}
	defer func() {
		if err := os.Remove(zipPath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", zipPath).Msg("failed to remove corpus archive")
		}
	}()

	newPath := c.path + ".new"
	if err := extractCorpusFile(zipPath, filepath.Base(c.path), newPath); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(newPath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", newPath).Msg("failed to remove extracted corpus")
		}
	}()

	if err := verifyCorpusFile(newPath); err != nil {
		return err
	}

	if _, err := helpers.BackupTimestamped(c.path, time.Now()); err != nil {
		return err
	}
	if err := os.Rename(newPath, c.path); err != nil {
		return fmt.Errorf("failed to replace corpus file: %w", err)
	}

	c.Invalidate()
	log.Info().Str("path", c.path).Msg("corpus file updated")
	return nil
}

func extractCorpusFile(zipPath, wantName, destPath string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open corpus archive: %w", err)
	}
	defer func(r *zip.ReadCloser) {
		err := r.Close()
		if err != nil {
			log.Warn().Err(err).Msg("close zip failed")
		}
	}(r)

	for _, f := range r.File {
		if filepath.Base(f.Name) != wantName {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s in archive: %w", f.Name, err)
		}

		out, err := os.Create(destPath) // #nosec G304 - destPath is a sibling of the corpus file
		if err != nil {
			_ = rc.Close()
			return fmt.Errorf("failed to create extracted corpus file: %w", err)
		}

		//nolint:gosec // archive comes from the configured provider
		written, err := io.Copy(out, rc)
		_ = rc.Close()
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(destPath)
			return fmt.Errorf("failed to extract corpus file: %w", err)
		}
		if written == 0 {
			_ = os.Remove(destPath)
			return errors.New("extracted corpus file is empty")
		}
		return nil
	}

	return fmt.Errorf("corpus file %s not found in archive", wantName)
}

// verifyCorpusFile runs a full parse over the extracted file before it
// replaces the live one.
func verifyCorpusFile(path string) error {
	snap, err := parseCorpusFile(path)
	if err != nil {
		return fmt.Errorf("corpus verification failed: %w", err)
	}
	if len(snap.entries) == 0 {
		return errors.New("corpus verification failed: archive contains no entries")
	}
	log.Info().Int("entries", len(snap.entries)).Msg("corpus archive verified")
	return nil
}
