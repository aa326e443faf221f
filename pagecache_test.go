// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestPageCacheBorrowLoadsOnce(t *testing.T) {
	var loads int32
	pc := newPageCache(minCachePages, func(number uint32) (*Page, error) {
		atomic.AddInt32(&loads, 1)
		return &Page{Number: number}, nil
	})

	page, release, err := pc.Borrow(7)
	if err != nil {
		t.Fatalf("Borrow: %v", err)
	}
	if page.Number != 7 {
		t.Fatalf("page.Number = %d, want 7", page.Number)
	}
	release()

	if _, release2, err := pc.Borrow(7); err != nil {
		t.Fatalf("Borrow: %v", err)
	} else {
		release2()
	}

	if got := atomic.LoadInt32(&loads); got != 1 {
		t.Fatalf("load called %d times, want 1", got)
	}
}

func TestPageCacheConcurrentBorrowDedup(t *testing.T) {
	var loads int32
	pc := newPageCache(minCachePages, func(number uint32) (*Page, error) {
		atomic.AddInt32(&loads, 1)
		return &Page{Number: number}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release, err := pc.Borrow(99)
			if err != nil {
				t.Errorf("Borrow: %v", err)
				return
			}
			release()
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&loads); got != 1 {
		t.Fatalf("load called %d times, want 1", got)
	}
}

func TestPageCacheNeverEvictsPinned(t *testing.T) {
	pc := newPageCache(cacheShardCount, func(number uint32) (*Page, error) {
		return &Page{Number: number}, nil
	})
	shard := pc.shardFor(1)

	// Borrow and hold every page that hashes to this shard, one more than
	// its capacity, without releasing any of them.
	var releases []func()
	n := uint32(1)
	for len(releases) < shard.capacity+1 {
		if pc.shardFor(n) == shard {
			_, release, err := pc.Borrow(n)
			if err != nil {
				t.Fatalf("Borrow: %v", err)
			}
			releases = append(releases, release)
		}
		n++
	}

	shard.mu.Lock()
	count := shard.order.Len()
	shard.mu.Unlock()
	if count != len(releases) {
		t.Errorf("shard holds %d entries, want %d (pinned entries must not be evicted)", count, len(releases))
	}

	for _, release := range releases {
		release()
	}
}

func TestPageCacheMinimumCapacity(t *testing.T) {
	pc := newPageCache(1, func(number uint32) (*Page, error) { return &Page{Number: number}, nil })
	total := 0
	for _, s := range pc.shards {
		total += s.capacity
	}
	if total < minCachePages {
		t.Errorf("total shard capacity %d below minCachePages %d", total, minCachePages)
	}
}
