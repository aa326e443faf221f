// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

// Column is a public handle onto one catalog-derived column definition
// (§3.5, §3.6, §4.10).
type Column struct {
	t   *Table
	def *ColumnDef
}

// ID returns the column's table-unique identifier.
func (c *Column) ID() uint32 { return c.def.ID }

// Name returns the column's catalog name.
func (c *Column) Name() string { return c.def.Name }

// Type returns the column's on-disk storage type.
func (c *Column) Type() ColumnType { return c.def.Type }

// Codepage returns the codepage tag carried for TEXT/LONG_TEXT columns
// (meaningless for other types).
func (c *Column) Codepage() uint32 { return c.def.Codepage }

// DateTimeKind reports how a DATE_TIME column's bytes should be
// interpreted (§9 open question, supplement #5): the catalog-derived hint
// if one exists for this table/column pair, otherwise the File's
// configured default.
func (c *Column) DateTimeKind() DateTimeKind {
	if c.def.DateTimeKind != DateTimeUnspecified {
		return c.def.DateTimeKind
	}
	if c.t.f.opts.DateTimeDefault != DateTimeUnspecified {
		return c.t.f.opts.DateTimeDefault
	}
	return DateTimeOLEAutomation
}
