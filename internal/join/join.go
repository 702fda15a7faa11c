// Package join performs the left join of the user table onto the registry
// table and splits the result into matched and unmatched rows.
package join

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gebref-geocoder/internal/table"
)

// Policy decides what happens when several registry rows share a key.
type Policy string

const (
	// PolicyFirst keeps the first registry row in file order.
	PolicyFirst Policy = "first"
	// PolicyAll emits one output row per registry match.
	PolicyAll Policy = "all"
)

// CollisionSuffix is appended to registry column names that already exist in
// the user table.
const CollisionSuffix = "_reg"

// ParsePolicy parses a policy name. The empty string selects PolicyFirst.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFirst:
		return PolicyFirst, nil
	case PolicyAll:
		return PolicyAll, nil
	default:
		return "", eris.Errorf("join: unknown duplicate policy %q (want first or all)", s)
	}
}

// Result holds both partitions of a left join. Matched and Unmatched share
// the same schema: user columns followed by the registry columns.
type Result struct {
	Matched   *table.Table
	Unmatched *table.Table

	// MatchedSource and UnmatchedSource give the user row index each output
	// row was built from.
	MatchedSource   []int
	UnmatchedSource []int

	// RegistryColumns maps a registry column name to its name in the output.
	RegistryColumns map[string]string

	// Duplicates counts matched keys that occur more than once in the registry.
	Duplicates int
}

// MatchedInputs returns the number of distinct user rows that found a match.
func (r *Result) MatchedInputs() int {
	n, last := 0, -1
	for _, src := range r.MatchedSource {
		if src != last {
			n++
			last = src
		}
	}
	return n
}

// Left joins user onto registry by exact equality of the key column, which
// must exist in both tables. Every user row lands in exactly one partition.
func Left(user, registry *table.Table, key string, policy Policy) (*Result, error) {
	if policy == "" {
		policy = PolicyFirst
	}
	if policy != PolicyFirst && policy != PolicyAll {
		return nil, eris.Errorf("join: unknown duplicate policy %q", policy)
	}

	userKey, err := user.Col(key)
	if err != nil {
		return nil, eris.Wrap(err, "join: user table")
	}
	regKey, err := registry.Col(key)
	if err != nil {
		return nil, eris.Wrap(err, "join: registry table")
	}

	columns, regCols, renamed := joinedSchema(user, registry, regKey)

	idx := make(map[string][]int, registry.Len())
	for i, row := range registry.Rows {
		k := row[regKey]
		idx[k] = append(idx[k], i)
	}

	res := &Result{
		Matched:         table.New(columns...),
		Unmatched:       table.New(columns...),
		RegistryColumns: renamed,
	}

	dupSeen := make(map[string]bool)
	for i, urow := range user.Rows {
		k := urow[userKey]
		hits := idx[k]
		if len(hits) == 0 {
			if err := res.Unmatched.Append(urow); err != nil {
				return nil, err
			}
			res.UnmatchedSource = append(res.UnmatchedSource, i)
			continue
		}

		if len(hits) > 1 && !dupSeen[k] {
			dupSeen[k] = true
			res.Duplicates++
		}
		if policy == PolicyFirst {
			hits = hits[:1]
		}
		for _, h := range hits {
			if err := res.Matched.Append(combine(urow, registry.Rows[h], regCols)); err != nil {
				return nil, err
			}
			res.MatchedSource = append(res.MatchedSource, i)
		}
	}

	return res, nil
}

// joinedSchema returns the output column names, the registry column positions
// that are carried over (all but the key), and the registry rename map.
func joinedSchema(user, registry *table.Table, regKey int) ([]string, []int, map[string]string) {
	columns := append([]string(nil), user.Columns...)
	taken := make(map[string]bool, len(user.Columns)+len(registry.Columns))
	for _, c := range user.Columns {
		taken[c] = true
	}

	renamed := make(map[string]string, len(registry.Columns))
	var regCols []int
	for i, c := range registry.Columns {
		if i == regKey {
			renamed[c] = c
			continue
		}
		name := c
		for taken[name] {
			name += CollisionSuffix
		}
		taken[name] = true
		renamed[c] = name
		columns = append(columns, name)
		regCols = append(regCols, i)
	}
	return columns, regCols, renamed
}

func combine(urow, rrow []string, regCols []int) []string {
	out := make([]string, 0, len(urow)+len(regCols))
	out = append(out, urow...)
	for _, c := range regCols {
		out = append(out, rrow[c])
	}
	return out
}
