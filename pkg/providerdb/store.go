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

// Package providerdb is the per-provider key/value store: small metadata
// blobs (corpus archive ETag, media base URL) and the persisted
// partial-match review queue, kept in a bbolt file under the state
// directory.
package providerdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RomStashProject/romstash-core/pkg/helpers"
	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketMeta   = []byte("meta")
	bucketReview = []byte("review_queue")

	// ErrNotFound is returned for absent meta keys.
	ErrNotFound = errors.New("provider store key not found")
)

// Meta keys used by the corpus updater.
const (
	MetaCorpusETag      = "corpus_etag"
	MetaCorpusUpdatedAt = "corpus_updated_at"
	MetaMediaBaseURL    = "media_base_url"
)

// ReviewItem is one persisted partial-match request awaiting a user
// decision. Keyed by system plus game path.
type ReviewItem struct {
	CreatedAt  time.Time         `json:"created_at"`
	Candidates map[string]string `json:"candidates"` // DatabaseID -> display name
	System     string            `json:"system"`
	GamePath   string            `json:"game_path"`
	GameName   string            `json:"game_name"`
	TaskID     string            `json:"task_id"`
}

func reviewKey(system, gamePath string) []byte {
	return []byte(system + "\x00" + gamePath)
}

// Store wraps one provider's bbolt file.
type Store struct {
	db       *bolt.DB
	provider string
}

// Open creates or opens the store for a provider under
// <dataDir>/db/<provider>/provider.db.
func Open(dataDir, provider string) (*Store, error) {
	dir := helpers.ProviderDBDir(dataDir, provider)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create provider db directory: %w", err)
	}

	path := filepath.Join(dir, "provider.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open provider db %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketReview} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug().Str("provider", provider).Str("path", path).Msg("provider store opened")
	return &Store{db: db, provider: provider}, nil
}

// Close releases the underlying file.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close provider db: %w", err)
	}
	return nil
}

// Provider returns the provider name the store belongs to.
func (s *Store) Provider() string {
	return s.provider
}

// SetMeta stores one metadata value.
func (s *Store) SetMeta(key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("failed to store meta %s: %w", key, err)
	}
	return nil
}

// GetMeta reads one metadata value.
func (s *Store) GetMeta(key string) (string, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return "", err
	}
	return string(value), nil
}

// PushReview persists one partial-match request, replacing any earlier
// request for the same game.
func (s *Store) PushReview(item ReviewItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode review item: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReview).Put(reviewKey(item.System, item.GamePath), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store review item: %w", err)
	}
	return nil
}

// ListReviews returns the pending review queue for one system, or for
// all systems when system is empty.
func (s *Store) ListReviews(system string) ([]ReviewItem, error) {
	var items []ReviewItem
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReview).ForEach(func(_, v []byte) error {
			var item ReviewItem
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("failed to decode review item: %w", err)
			}
			if system == "" || item.System == system {
				items = append(items, item)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ResolveReview removes one pending request, typically after the user
// applied or dismissed a candidate.
func (s *Store) ResolveReview(system, gamePath string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReview).Delete(reviewKey(system, gamePath))
	})
	if err != nil {
		return fmt.Errorf("failed to resolve review item: %w", err)
	}
	return nil
}
