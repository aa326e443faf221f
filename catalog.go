// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import "encoding/binary"

// Catalog column identifiers (§3.5). The catalog is itself a table, rooted
// at CatalogFDP, whose own row layout is fixed and never declared by a
// TABLE record — these IDs match the layout every known ESE revision uses
// for its system catalog.
const (
	catColObjtidTable  = 1  // Long, fixed: owning table's own FDP (== father_data_page for most rows).
	catColType         = 2  // Short, fixed: DefinitionType.
	catColID           = 3  // Long, fixed: identifier.
	catColColtypOrPgno = 4  // Long, fixed: column storage type, or a referenced page number.
	catColSpaceUsage   = 5  // Long, fixed.
	catColFlags        = 6  // Long, fixed: per-definition-type flag bits.
	catColPagesOrLocale = 7 // Long, fixed: codepage (COLUMN rows) or page count (TABLE rows).
	catColRootFlag     = 8  // Boolean, fixed.
	catColRecordOffset = 9  // Short, fixed.
	catColLCMapFlags   = 10 // Long, fixed.

	catColName         = 128 // Text, variable.
	catColTemplateTable = 130 // Text, variable.
	catColDefaultValue = 131 // Binary, variable.
)

// catalogColumns is the hardcoded column schema decodeRecord needs to split
// a catalog leaf-slot into its fields (§4.6: "Walk the tree rooted at FDP
// 4... Each leaf record is an ESE data-definition as described in §3.5").
// Unlike a user table's schema, this one is never read from the catalog
// itself — it IS the catalog.
var catalogColumns = []*ColumnDef{
	{ID: catColObjtidTable, Type: ColumnTypeLong, Name: "ObjtidTable"},
	{ID: catColType, Type: ColumnTypeShort, Name: "Type"},
	{ID: catColID, Type: ColumnTypeLong, Name: "Id"},
	{ID: catColColtypOrPgno, Type: ColumnTypeLong, Name: "ColtypOrPgnoFDP"},
	{ID: catColSpaceUsage, Type: ColumnTypeLong, Name: "SpaceUsage"},
	{ID: catColFlags, Type: ColumnTypeLong, Name: "Flags"},
	{ID: catColPagesOrLocale, Type: ColumnTypeLong, Name: "PagesOrLocale"},
	{ID: catColRootFlag, Type: ColumnTypeBoolean, Name: "RootFlag"},
	{ID: catColRecordOffset, Type: ColumnTypeShort, Name: "RecordOffset"},
	{ID: catColLCMapFlags, Type: ColumnTypeLong, Name: "LCMapFlags"},
	{ID: catColName, Type: ColumnTypeText, Codepage: CodepageASCII, Name: "Name"},
	{ID: catColTemplateTable, Type: ColumnTypeText, Codepage: CodepageASCII, Name: "TemplateTable"},
	{ID: catColDefaultValue, Type: ColumnTypeBinary, Name: "DefaultValue"},
}

// dateTimeHint overrides the default DATE_TIME disambiguation (§9 open
// question, decided in DESIGN.md) for specific table/column pairs, the
// same mechanism the exchange-specific exporter in the original tools uses
// for its store tables, generalized here to any table name.
var dateTimeHint = map[string]DateTimeKind{
	"MSysObjects.DateCreate":  DateTimeOLEAutomation,
	"MSysObjects.DateUpdate":  DateTimeOLEAutomation,
	"Msg.LastModificationTime": DateTimeFileTimeLE,
	"Folder.LastModificationTime": DateTimeFileTimeLE,
}

// catalogRow is one decoded catalog leaf record, before grouping.
type catalogRow struct {
	fatherDataPage uint32
	defType        DefinitionType
	identifier     uint32
	colType        ColumnType
	codepage       uint32
	flags          uint32
	rootFlag       bool
	name           string
	templateName   string
}

// TableDef is one table's catalog-derived shape: its own FDP, columns
// (including merged template columns), indexes, and long-value tree root.
type TableDef struct {
	FDP          uint32
	Name         string
	TemplateName string
	Columns      []*ColumnDef
	Indexes      []*IndexDef
	LongValueFDP uint32 // 0 if the table has no long-value tree.
}

// IndexDef is one INDEX catalog record: an alternate sort order over a
// table's leaf pages (§3.5, §4.6).
type IndexDef struct {
	Name  string
	FDP   uint32
	Flags uint32
}

// catalog is the fully resolved, template-merged result of walking FDP 4.
type catalog struct {
	tables     []*TableDef
	tablesByFDP map[uint32]*TableDef
}

// buildCatalog walks the catalog tree and groups its rows into tables,
// columns, indexes, and long-value roots (§4.6).
func (f *File) buildCatalog() (*catalog, error) {
	var rows []catalogRow
	root := f.header.CatalogRoot
	if root == 0 {
		root = CatalogFDP
	}
	newRecordFormat := f.header.NewRecordFormat()
	err := f.walkTree(root, func(kv KV) error {
		row, err := decodeCatalogRow(kv.Value, newRecordFormat)
		if err != nil {
			f.logger.Warnf("skipping malformed catalog row: %v", err)
			return nil
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, wrapErr(KindFormat, int64(CatalogFDP), "walking catalog tree", err)
	}

	tables := make(map[uint32]*TableDef)
	var order []uint32
	for _, r := range rows {
		if r.defType != DefinitionTable {
			continue
		}
		t := &TableDef{FDP: r.identifier, Name: r.name, TemplateName: r.templateName}
		tables[t.FDP] = t
		order = append(order, t.FDP)
	}

	byFather := make(map[uint32][]catalogRow)
	for _, r := range rows {
		if r.defType == DefinitionTable {
			continue
		}
		byFather[r.fatherDataPage] = append(byFather[r.fatherDataPage], r)
	}

	byName := make(map[string]*TableDef, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	for _, t := range tables {
		for _, r := range byFather[t.FDP] {
			switch r.defType {
			case DefinitionColumn:
				col := &ColumnDef{
					ID:       r.identifier,
					Type:     r.colType,
					Codepage: r.codepage,
					Name:     r.name,
				}
				if col.Type == ColumnTypeDateTime {
					col.DateTimeKind = dateTimeHint[t.Name+"."+col.Name]
					if col.DateTimeKind == DateTimeUnspecified {
						col.DateTimeKind = f.opts.DateTimeDefault
					}
				}
				t.Columns = append(t.Columns, col)
			case DefinitionIndex:
				t.Indexes = append(t.Indexes, &IndexDef{Name: r.name, FDP: r.identifier, Flags: r.flags})
			case DefinitionLongValue:
				t.LongValueFDP = r.identifier
			case DefinitionCallback:
				// Legacy trigger hooks; ignored for read access (§4.6).
			}
		}
		sortColumnsByID(t.Columns)
	}

	for _, t := range tables {
		if t.TemplateName == "" {
			continue
		}
		tmpl, ok := byName[t.TemplateName]
		if !ok {
			f.logger.Warnf("table %q names missing template %q", t.Name, t.TemplateName)
			continue
		}
		t.Columns = mergeTemplateColumns(tmpl.Columns, t.Columns)
	}

	result := &catalog{tablesByFDP: tables}
	for _, fdp := range order {
		result.tables = append(result.tables, tables[fdp])
	}
	return result, nil
}

// mergeTemplateColumns implements §4.6's template inheritance: the derived
// table's own columns override the template's on ID collision, and any
// template column not overridden is carried through unchanged.
func mergeTemplateColumns(template, own []*ColumnDef) []*ColumnDef {
	byID := make(map[uint32]*ColumnDef, len(template)+len(own))
	var ids []uint32
	for _, c := range template {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}
	for _, c := range own {
		if _, exists := byID[c.ID]; !exists {
			ids = append(ids, c.ID)
		}
		byID[c.ID] = c // own definition always wins on collision.
	}
	merged := make([]*ColumnDef, len(ids))
	for i, id := range ids {
		merged[i] = byID[id]
	}
	sortColumnsByID(merged)
	return merged
}

func sortColumnsByID(cols []*ColumnDef) {
	for i := 1; i < len(cols); i++ {
		for j := i; j > 0 && cols[j-1].ID > cols[j].ID; j-- {
			cols[j-1], cols[j] = cols[j], cols[j-1]
		}
	}
}

// decodeCatalogRow decodes one catalog leaf payload against the hardcoded
// catalogColumns schema.
func decodeCatalogRow(raw []byte, newRecordFormat bool) (catalogRow, error) {
	values, err := decodeRecord(raw, catalogColumns, newRecordFormat)
	if err != nil {
		return catalogRow{}, err
	}

	var row catalogRow
	row.fatherDataPage = catalogUint32(values[catColObjtidTable])
	row.defType = DefinitionType(catalogUint16(values[catColType]))
	row.identifier = catalogUint32(values[catColID])
	row.colType = ColumnType(catalogUint32(values[catColColtypOrPgno]))
	row.codepage = catalogUint32(values[catColPagesOrLocale])
	row.flags = catalogUint32(values[catColFlags])
	row.rootFlag = catalogBool(values[catColRootFlag])

	name, err := catalogString(values[catColName])
	if err != nil {
		return catalogRow{}, err
	}
	row.name = name

	template, err := catalogString(values[catColTemplateTable])
	if err != nil {
		return catalogRow{}, err
	}
	row.templateName = template

	return row, nil
}

func catalogUint32(v *rawValue) uint32 {
	if v == nil || !v.present || len(v.data) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(v.data)
}

func catalogUint16(v *rawValue) uint16 {
	if v == nil || !v.present || len(v.data) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(v.data)
}

func catalogBool(v *rawValue) bool {
	return v != nil && v.present && len(v.data) >= 1 && v.data[0] != 0
}

func catalogString(v *rawValue) (string, error) {
	if v == nil || !v.present || len(v.data) == 0 {
		return "", nil
	}
	data := v.data
	if v.flags&ValueFlagCompressed != 0 {
		decoded, err := decodeSevenBit(data)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}
	return decodeText(data, CodepageASCII)
}
