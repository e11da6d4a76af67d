package storage

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// sortDocuments orders docs ascending by the value of field. Missing values
// sort first; values of different kinds order as
// null < bool < number < timestamp < string; ties fall back to the id.
func sortDocuments(docs []Document, field string) {
	slices.SortStableFunc(docs, func(a, b Document) int {
		if c := compareValues(a.Fields[field], b.Fields[field]); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func compareValues(a, b any) int {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb {
		return cmp.Compare(ka, kb)
	}
	switch ka {
	case kindBool:
		return cmp.Compare(boolRank(a.(bool)), boolRank(b.(bool)))
	case kindNumber:
		return cmp.Compare(number(a), number(b))
	case kindTime:
		return timeOf(a).Compare(timeOf(b))
	case kindString:
		return strings.Compare(a.(string), b.(string))
	}
	return 0
}

const (
	kindNull = iota
	kindBool
	kindNumber
	kindTime
	kindString
	kindOther
)

func kindOf(v any) int {
	switch t := v.(type) {
	case nil:
		return kindNull
	case *time.Time:
		if t == nil {
			return kindNull
		}
		return kindTime
	case bool:
		return kindBool
	case int, int32, int64, float64:
		return kindNumber
	case time.Time:
		return kindTime
	case string:
		return kindString
	}
	return kindOther
}

func number(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func timeOf(v any) time.Time {
	if p, ok := v.(*time.Time); ok {
		return *p
	}
	return v.(time.Time)
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
