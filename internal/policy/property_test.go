package policy

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_StripCommentsAndLiteralsIsIdempotent validates spec §8's
// round-trip expectation for SQL-text normalization: stripping comments and
// string literals a second time must never find anything new to remove.
func TestProperty_StripCommentsAndLiteralsIsIdempotent(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("stripping twice equals stripping once", prop.ForAll(
		func(sql string) bool {
			once := StripCommentsAndLiterals(sql)
			twice := StripCommentsAndLiterals(once)
			return once == twice
		},
		genSQLLikeString(),
	))

	properties.Property("stripped output never contains an unterminated quote", prop.ForAll(
		func(sql string) bool {
			out := StripCommentsAndLiterals(sql)
			return strings.Count(out, "'")%2 == 0 || !strings.Contains(sql, "'")
		},
		genSQLLikeString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// TestProperty_EffectiveScopeMonotonic validates spec §4.4/§4.10's
// "effectively all tables" boundary: growing a user's scope toward the full
// catalog can only ever flip isAllTables from false to true, never back.
func TestProperty_EffectiveScopeMonotonic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("scope coverage at or above 80% is always all-tables", prop.ForAll(
		func(n int) bool {
			full := make([]string, 10)
			for i := range full {
				full[i] = string(rune('A' + i))
			}
			scope := full[:n]
			_, isAll := EffectiveScope(scope, full)
			if n == 0 {
				// An empty user scope is the spec's own "unrestricted" sentinel,
				// not a coverage computation.
				return isAll
			}
			wantAll := float64(n)/float64(len(full)) >= 0.80
			return isAll == wantAll
		},
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func genSQLLikeString() gopter.Gen {
	return gen.OneConstOf(
		"SELECT * FROM ADMISSIONS",
		"SELECT * FROM ADMISSIONS -- trailing comment",
		"SELECT 'it''s a test' FROM DUAL",
		"SELECT /* block */ 1 FROM DUAL WHERE X = 'DROP TABLE'",
		"",
		"'unterminated",
		"SELECT 1 -- DROP\nFROM DUAL",
	)
}
