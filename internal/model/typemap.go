package model

import "strings"

// MapColumnType implements spec.md §6.4's auto-dimension type mapping: a
// pure function from a database column type name to the dimension kind (and,
// for time types, the default granularity) auto_dimensions synthesizes.
// Family matching is case-insensitive and tolerant of parameterized forms
// (e.g. "varchar(255)", "numeric(10,2)", "timestamp without time zone").
func MapColumnType(dbType string) (DimensionKind, Granularity) {
	family := normalizeTypeName(dbType)

	switch {
	case isOneOf(family, "date"):
		return Time, Day
	case isOneOf(family, "timestamp", "timestamptz", "datetime"):
		return Time, Second
	case isOneOf(family, "bool", "boolean"):
		return Boolean, ""
	case isOneOf(family, "int", "integer", "bigint", "smallint", "decimal", "numeric", "float", "double", "real"):
		return Numeric, ""
	default:
		// CHAR/VARCHAR/TEXT/JSON/BLOB and any unrecognised type family fall
		// back to categorical (spec.md §6.4's "unknown fallback").
		return Categorical, ""
	}
}

// normalizeTypeName lower-cases a declared column type and strips any
// parenthesized precision/scale or trailing qualifiers, leaving just the
// base type family, e.g. "VARCHAR(255)" -> "varchar", "TIMESTAMP WITHOUT
// TIME ZONE" -> "timestamp".
func normalizeTypeName(dbType string) string {
	t := strings.ToLower(strings.TrimSpace(dbType))

	if idx := strings.IndexByte(t, '('); idx >= 0 {
		t = t[:idx]
	}

	if idx := strings.IndexByte(t, ' '); idx >= 0 {
		t = t[:idx]
	}

	return strings.TrimSpace(t)
}

func isOneOf(s string, options ...string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}

	return false
}
