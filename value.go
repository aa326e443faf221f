// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package esedb

import (
	"encoding/binary"
	"math"
)

// decodeTypedValue converts raw on-disk bytes for column col into the Go
// value its type implies (§3.6, §4.7: "Numeric types are little-endian on
// disk; booleans of value 0 are false, any non-zero is true"). flags is
// the per-value flag byte; COMPRESSED text is transparently unpacked
// first.
func decodeTypedValue(col *ColumnDef, raw []byte, flags uint8) (interface{}, error) {
	if flags&ValueFlagCompressed != 0 && isTextType(col.Type) {
		decoded, err := decodeSevenBit(raw)
		if err != nil {
			return nil, err
		}
		raw = decoded
	}

	switch col.Type {
	case ColumnTypeNull:
		return nil, nil
	case ColumnTypeBoolean:
		if len(raw) < 1 {
			return false, nil
		}
		return raw[0] != 0, nil
	case ColumnTypeUnsignedByte:
		if len(raw) < 1 {
			return uint8(0), nil
		}
		return raw[0], nil
	case ColumnTypeShort:
		if len(raw) < 2 {
			return int16(0), nil
		}
		return int16(binary.LittleEndian.Uint16(raw)), nil
	case ColumnTypeUnsignedShort:
		if len(raw) < 2 {
			return uint16(0), nil
		}
		return binary.LittleEndian.Uint16(raw), nil
	case ColumnTypeLong:
		if len(raw) < 4 {
			return int32(0), nil
		}
		return int32(binary.LittleEndian.Uint32(raw)), nil
	case ColumnTypeUnsignedLong:
		if len(raw) < 4 {
			return uint32(0), nil
		}
		return binary.LittleEndian.Uint32(raw), nil
	case ColumnTypeCurrency, ColumnTypeLongLong:
		if len(raw) < 8 {
			return int64(0), nil
		}
		return int64(binary.LittleEndian.Uint64(raw)), nil
	case ColumnTypeIEEESingle:
		if len(raw) < 4 {
			return float32(0), nil
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(raw)), nil
	case ColumnTypeIEEEDouble:
		if len(raw) < 8 {
			return float64(0), nil
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(raw)), nil
	case ColumnTypeDateTime:
		if len(raw) < 8 {
			return nil, newErr(KindFormat, 0, "DATE_TIME value shorter than 8 bytes")
		}
		return decodeDateTime(raw, col.DateTimeKind)
	case ColumnTypeGUID:
		if len(raw) < 16 {
			return nil, newErr(KindFormat, 0, "GUID value shorter than 16 bytes")
		}
		var g [16]byte
		copy(g[:], raw[:16])
		return g, nil
	case ColumnTypeBinary, ColumnTypeLongBinary, ColumnTypeSuperLarge:
		return raw, nil
	case ColumnTypeText, ColumnTypeLongText:
		return decodeText(raw, col.Codepage)
	default:
		return raw, nil
	}
}

func isTextType(t ColumnType) bool {
	return t == ColumnTypeText || t == ColumnTypeLongText
}

// DateTime is a decoded DATE_TIME column value along with the encoding
// that produced it (§9 open question: the raw encoding is ambiguous from
// the bytes alone, so the disambiguation is carried with the value
// instead of silently assumed).
type DateTime struct {
	Kind DateTimeKind
	// OLEDays is the OLE Automation day count plus fractional day when
	// Kind == DateTimeOLEAutomation.
	OLEDays float64
	// FileTime is the 100ns-tick count since 1601-01-01 when Kind is one
	// of the FileTime* variants.
	FileTime uint64
}

func decodeDateTime(raw []byte, kind DateTimeKind) (DateTime, error) {
	switch kind {
	case DateTimeFileTimeBE:
		return DateTime{Kind: kind, FileTime: binary.BigEndian.Uint64(raw)}, nil
	case DateTimeFileTimeLE:
		return DateTime{Kind: kind, FileTime: binary.LittleEndian.Uint64(raw)}, nil
	default:
		bits := binary.LittleEndian.Uint64(raw)
		return DateTime{Kind: DateTimeOLEAutomation, OLEDays: math.Float64frombits(bits)}, nil
	}
}
