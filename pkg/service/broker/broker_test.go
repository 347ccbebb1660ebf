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

package broker

import (
	"context"
	"testing"
	"time"

	"github.com/RomStashProject/romstash-core/pkg/api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerDeliversToAllSubscribers(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification, 4)
	b := NewBroker(context.Background(), source)

	first, _ := b.Subscribe(4)
	second, _ := b.Subscribe(4)
	b.Start()

	source <- models.Notification{Method: models.NotificationSystemUpdated}

	for _, ch := range []<-chan models.Notification{first, second} {
		select {
		case notif := <-ch:
			assert.Equal(t, models.NotificationSystemUpdated, notif.Method)
		case <-time.After(2 * time.Second):
			t.Fatal("subscriber did not receive notification")
		}
	}
}

func TestBrokerDropsWhenSubscriberFull(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification, 8)
	b := NewBroker(context.Background(), source)

	slow, _ := b.Subscribe(1)
	fast, _ := b.Subscribe(8)
	b.Start()

	for range 3 {
		source <- models.Notification{Method: models.NotificationTaskProgress}
	}

	// the fast subscriber sees all three
	for range 3 {
		select {
		case <-fast:
		case <-time.After(2 * time.Second):
			t.Fatal("fast subscriber starved")
		}
	}

	// the slow subscriber got at most its buffer's worth; nothing blocked
	got := 0
	for {
		select {
		case <-slow:
			got++
			continue
		default:
		}
		break
	}
	assert.LessOrEqual(t, got, 2)
}

func TestBrokerClosesSubscribersOnSourceClose(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification)
	b := NewBroker(context.Background(), source)
	ch, _ := b.Subscribe(1)
	b.Start()

	close(source)

	select {
	case _, open := <-ch:
		require.False(t, open, "subscriber channel should close with the source")
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel never closed")
	}
}

func TestBrokerUnsubscribeTwice(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification)
	b := NewBroker(context.Background(), source)
	_, id := b.Subscribe(1)

	b.Unsubscribe(id)
	b.Unsubscribe(id)
}
