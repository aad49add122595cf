// Package reconcile merges the verification sources into named collections
// and reports the collections whose values disagree.
package reconcile

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cast"
)

type Discrepancy struct {
	Key        string        `json:"key"`
	Collection []interface{} `json:"collection"`
}

// Sanitize drops falsy values (null, false, numeric zero, "") from every
// category. Category order and value order are preserved.
func Sanitize(organized *OrganizedData) *OrganizedData {
	out := NewOrganizedData()
	for _, key := range organized.Keys() {
		values, _ := organized.Get(key)
		kept := make([]interface{}, 0, len(values))
		for _, v := range values {
			if !IsFalsy(v) {
				kept = append(kept, v)
			}
		}
		out.Set(key, kept)
	}
	return out
}

// GetDiscrepancies compares every value of a category against its first
// value after trimming and lower-casing. Empty and single-value categories
// never disagree.
func GetDiscrepancies(organized *OrganizedData) []Discrepancy {
	discrepancies := []Discrepancy{}
	for _, key := range organized.Keys() {
		values, _ := organized.Get(key)
		if len(values) == 0 {
			continue
		}

		reference := normalize(values[0])
		for _, v := range values[1:] {
			if normalize(v) != reference {
				discrepancies = append(discrepancies, Discrepancy{Key: key, Collection: values})
				break
			}
		}
	}
	return discrepancies
}

// DiscrepantKeys lists the keys of the given discrepancies.
func DiscrepantKeys(discrepancies []Discrepancy) []string {
	keys := make([]string, len(discrepancies))
	for i, d := range discrepancies {
		keys[i] = d.Key
	}
	return keys
}

// IsFalsy reports whether a JSON value is null, false, numeric zero or "".
func IsFalsy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	case json.Number, float64, float32, int, int64:
		f, err := cast.ToFloat64E(t)
		return err == nil && f == 0
	default:
		return false
	}
}

func normalize(v interface{}) string {
	return strings.ToLower(strings.TrimSpace(stringify(v)))
}

// stringify renders a value the way the request scripts printed it with
// String(): numbers in shortest decimal form, arrays as their elements joined
// by commas, objects as "[object Object]".
func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case json.Number:
		f, err := cast.ToFloat64E(t)
		if err != nil {
			return t.String()
		}
		return cast.ToString(f)
	case float64, float32, int, int64, bool:
		return cast.ToString(t)
	case []interface{}:
		parts := make([]string, len(t))
		for i, elem := range t {
			// null elements join as empty strings
			if elem != nil {
				parts[i] = stringify(elem)
			}
		}
		return strings.Join(parts, ",")
	case map[string]interface{}:
		return "[object Object]"
	default:
		return cast.ToString(t)
	}
}
