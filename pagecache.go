// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import (
	"container/list"
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// cacheShardCount is the number of independent LRU buckets pages are
// sharded across, keyed by xxhash of the page number (§4.2, §11 domain
// stack: concurrent readers touching unrelated pages don't contend on one
// lock).
const cacheShardCount = 16

// minCachePages is the floor on total cache capacity recommended by §4.2:
// max(tree_depth * 4, 64).
const minCachePages = 64

type cacheEntry struct {
	number uint32
	page   *Page
	pins   int
}

type cacheShard struct {
	mu       sync.Mutex
	capacity int
	entries  map[uint32]*list.Element
	order    *list.List // front = most recently used
}

func newCacheShard(capacity int) *cacheShard {
	return &cacheShard{
		capacity: capacity,
		entries:  make(map[uint32]*list.Element),
		order:    list.New(),
	}
}

// pageCache is the bounded, concurrency-safe page-number-to-Page mapping
// of §4.2. It never evicts a page currently borrowed (pinned), and
// collapses concurrent loads of the same missing page onto one I/O read.
type pageCache struct {
	shards []*cacheShard
	group  singleflight.Group
	load   func(number uint32) (*Page, error)
}

func newPageCache(totalCapacity int, load func(number uint32) (*Page, error)) *pageCache {
	if totalCapacity < minCachePages {
		totalCapacity = minCachePages
	}
	perShard := totalCapacity / cacheShardCount
	if perShard < 1 {
		perShard = 1
	}
	pc := &pageCache{load: load}
	pc.shards = make([]*cacheShard, cacheShardCount)
	for i := range pc.shards {
		pc.shards[i] = newCacheShard(perShard)
	}
	return pc
}

func (pc *pageCache) shardFor(number uint32) *cacheShard {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], number)
	h := xxhash.Sum64(buf[:])
	return pc.shards[h%uint64(len(pc.shards))]
}

// Borrow returns the decoded page, pinning it against eviction until the
// returned release function is called.
func (pc *pageCache) Borrow(number uint32) (*Page, func(), error) {
	shard := pc.shardFor(number)

	shard.mu.Lock()
	if elem, ok := shard.entries[number]; ok {
		shard.order.MoveToFront(elem)
		ent := elem.Value.(*cacheEntry)
		ent.pins++
		shard.mu.Unlock()
		return ent.page, func() { pc.release(shard, number) }, nil
	}
	shard.mu.Unlock()

	// Collapse concurrent loads of the same uncached page onto one read.
	keyBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(keyBuf, number)
	v, err, _ := pc.group.Do(string(keyBuf), func() (interface{}, error) {
		return pc.load(number)
	})
	if err != nil {
		return nil, func() {}, err
	}
	page := v.(*Page)

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if elem, ok := shard.entries[number]; ok {
		shard.order.MoveToFront(elem)
		ent := elem.Value.(*cacheEntry)
		ent.pins++
		return ent.page, func() { pc.release(shard, number) }, nil
	}

	ent := &cacheEntry{number: number, page: page, pins: 1}
	elem := shard.order.PushFront(ent)
	shard.entries[number] = elem
	pc.evictLocked(shard)
	return page, func() { pc.release(shard, number) }, nil
}

func (pc *pageCache) release(shard *cacheShard, number uint32) {
	shard.mu.Lock()
	defer shard.mu.Unlock()
	elem, ok := shard.entries[number]
	if !ok {
		return
	}
	ent := elem.Value.(*cacheEntry)
	if ent.pins > 0 {
		ent.pins--
	}
	pc.evictLocked(shard)
}

// evictLocked drops least-recently-used, unpinned entries until the shard
// is back within capacity. Pinned entries are never evicted (§4.2).
func (pc *pageCache) evictLocked(shard *cacheShard) {
	for shard.order.Len() > shard.capacity {
		var victim *list.Element
		for e := shard.order.Back(); e != nil; e = e.Prev() {
			if e.Value.(*cacheEntry).pins == 0 {
				victim = e
				break
			}
		}
		if victim == nil {
			// Every cached entry is currently pinned; can't shrink
			// further right now.
			return
		}
		ent := victim.Value.(*cacheEntry)
		shard.order.Remove(victim)
		delete(shard.entries, ent.number)
	}
}
