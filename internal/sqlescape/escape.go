// Package sqlescape strips the JDBC-style call escape from callable statement text.
package sqlescape

import (
	"regexp"
	"strings"
)

var callEscape = regexp.MustCompile(`(?is)^\s*\{\s*(\?\s*=\s*)?call\s+(.+?)\s*\}\s*;?\s*$`)

// TranslateCall rewrites `{call proc(args)}` to `CALL proc(args)` and
// `{? = call fn(args)}` to `SELECT fn(args)`. Anything else is returned untouched.
func TranslateCall(sql string) string {
	m := callEscape.FindStringSubmatch(sql)
	if m == nil {
		return sql
	}
	body := strings.TrimSpace(m[2])
	if m[1] != "" {
		return "SELECT " + body
	}
	return "CALL " + body
}
