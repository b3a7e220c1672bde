/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package v1alpha1

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9-]+`)

// Slug makes an agent name safe for use inside a record id.
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	if len(s) > 40 {
		s = s[:40]
	}
	s = strings.Trim(s, "-")
	if s == "" {
		return "agent"
	}
	return s
}
