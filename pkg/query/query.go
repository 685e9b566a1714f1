// Copyright (c) 2026 Gatekeeper. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package query parses list filters out of URL query parameters.
package query

import (
	"strconv"
	"strings"
)

// StringSlice flattens repeated and comma-separated values into one trimmed
// list, so `?role=admin,user` and `?role=admin&role=user` are equivalent.
func StringSlice(vals []string) []string {
	var res []string
	for _, val := range vals {
		for _, v := range strings.Split(val, ",") {
			clean := strings.TrimSpace(v)
			if clean != "" {
				res = append(res, clean)
			}
		}
	}
	return res
}

// Bool parses an optional boolean filter.
//
// An empty value yields (nil, true). An unparsable value yields (nil, false)
// so the caller can report it.
func Bool(val string) (*bool, bool) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, true
	}

	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}
