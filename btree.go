// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import (
	"encoding/binary"
)

// KV is one reconstructed key/value pair yielded while walking a page tree
// (§3.4, §4.5).
type KV struct {
	Key   []byte
	Value []byte
}

// decodeSlotEntry splits one leaf or branch tag's raw value into its
// prefix-compression fields and the remainder (§4.5: "Keys in branch
// entries may carry a common key shared with the left sibling; when
// present, logical key = common-key || local-key"). Compression resets at
// the start of every page: the first entry on a page always has
// commonSize == 0.
func decodeSlotEntry(raw []byte) (commonSize, localSize int, localKey, rest []byte, err error) {
	if len(raw) < 4 {
		return 0, 0, nil, nil, newErr(KindFormat, 0, "tree entry shorter than its key-size prefix")
	}
	commonSize = int(binary.LittleEndian.Uint16(raw[0:2]))
	localSize = int(binary.LittleEndian.Uint16(raw[2:4]))
	if 4+localSize > len(raw) {
		return 0, 0, nil, nil, newErr(KindFormat, 0, "local key runs past entry end")
	}
	localKey = raw[4 : 4+localSize]
	rest = raw[4+localSize:]
	return commonSize, localSize, localKey, rest, nil
}

func reconstructKey(prevKey []byte, commonSize int, localKey []byte) ([]byte, error) {
	if commonSize > len(prevKey) {
		return nil, newErr(KindFormat, 0, "common-key size longer than previous key")
	}
	key := make([]byte, 0, commonSize+len(localKey))
	key = append(key, prevKey[:commonSize]...)
	key = append(key, localKey...)
	return key, nil
}

// treeWalker holds the state of one in-progress ascending walk over a
// page tree: the file it borrows pages from, cycle detection, and the
// cooperative abort flag.
type treeWalker struct {
	f         *File
	visited   map[uint32]bool
	descended map[uint32]bool
	maxHops   int
}

func (f *File) newTreeWalker() *treeWalker {
	return &treeWalker{
		f:         f,
		visited:   make(map[uint32]bool),
		descended: make(map[uint32]bool),
		maxHops:   int(f.header.PageCount) + 1,
	}
}

func (w *treeWalker) markVisited(number uint32) error {
	if w.visited[number] {
		return ErrTreeCycle
	}
	if len(w.visited) > w.maxHops {
		return ErrTreeCycle
	}
	w.visited[number] = true
	return nil
}

// markDescended records a page visited while descending from root to the
// leftmost leaf, in a set separate from markVisited's leaf-level-walk set
// (§9: "traversal MUST detect and reject cycles introduced by corruption,
// bound by total page count"). A page revisited during descent, or a
// descent longer than the total page count, is a cyclic or corrupt
// branch chain.
func (w *treeWalker) markDescended(number uint32) error {
	if w.descended[number] {
		return ErrTreeCycle
	}
	if len(w.descended) > w.maxHops {
		return ErrTreeCycle
	}
	w.descended[number] = true
	return nil
}

// walkTree visits every (key, value) pair of the tree rooted at page
// number root, in ascending key order, calling visit for each. It
// descends once to the leftmost leaf, then follows the leaf-level
// next_page sibling chain to the end (§4.5: "Within a level, sibling
// chains... allow ordered scan without revisiting branches").
func (f *File) walkTree(root uint32, visit func(kv KV) error) error {
	w := f.newTreeWalker()
	leafNumber, err := w.descendToLeftmostLeaf(root)
	if err != nil {
		return err
	}

	for leafNumber != PageNumberNull {
		if f.aborted.Load() {
			return ErrAborted
		}
		if err := w.markVisited(leafNumber); err != nil {
			return err
		}

		page, release, err := f.cache.Borrow(leafNumber)
		if err != nil {
			return err
		}
		next := page.Header.NextPage
		err = func() error {
			defer release()
			var prevKey []byte
			for i := 1; i < len(page.Tags); i++ {
				val, err := page.Value(i)
				if err != nil {
					return err
				}
				commonSize, _, localKey, rest, err := decodeSlotEntry(val)
				if err != nil {
					return err
				}
				key, err := reconstructKey(prevKey, commonSize, localKey)
				if err != nil {
					return err
				}
				if err := visit(KV{Key: key, Value: rest}); err != nil {
					return err
				}
				prevKey = key
			}
			return nil
		}()
		if err != nil {
			return err
		}

		if !isValidChildPage(next) {
			break
		}
		leafNumber = next
	}
	return nil
}

// descendToLeftmostLeaf follows branch tag 1 (the smallest-key child)
// repeatedly until it reaches a LEAF page, returning that page's number.
func (w *treeWalker) descendToLeftmostLeaf(root uint32) (uint32, error) {
	number := root
	for {
		if err := w.markDescended(number); err != nil {
			// Revisiting the same page while descending indicates a
			// corrupt or cyclic child chain.
			return 0, err
		}

		page, release, err := w.f.cache.Borrow(number)
		if err != nil {
			return 0, err
		}
		isLeaf := page.Header.IsLeaf()
		var childNumber uint32
		var childErr error
		if !isLeaf {
			if len(page.Tags) < 2 {
				childErr = newErr(KindFormat, int64(number), "branch page has no child entries")
			} else {
				val, err := page.Value(1)
				if err != nil {
					childErr = err
				} else {
					_, _, _, rest, err := decodeSlotEntry(val)
					if err != nil {
						childErr = err
					} else if len(rest) < 4 {
						childErr = newErr(KindFormat, int64(number), "branch entry missing child page number")
					} else {
						childNumber = binary.LittleEndian.Uint32(rest)
					}
				}
			}
		}
		release()

		if childErr != nil {
			return 0, childErr
		}
		if isLeaf {
			return number, nil
		}
		if !isValidChildPage(childNumber) {
			return 0, ErrTreeTruncated
		}
		number = childNumber
	}
}

func isValidChildPage(n uint32) bool {
	if n == PageNumberNull {
		return false
	}
	if n >= PageNumberSentinelLow && n <= PageNumberSentinelHigh {
		return false
	}
	return true
}
