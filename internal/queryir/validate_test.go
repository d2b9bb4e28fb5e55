package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	tests := []struct {
		name  string
		query Query
	}{
		{
			name:  "all calls",
			query: Select{From: TableCalls, Fields: Columns[TableCalls]},
		},
		{
			name: "filtered calls",
			query: &Select{
				From:   TableCalls,
				Fields: []string{"id", "seq"},
				Filter: And{Predicates: []Predicate{
					Equals{Field: "caller", Value: "alice"},
					&Equals{Field: "fingerprint", Value: []byte{0x01}},
					Compare{Field: "block", Op: AtLeast, Value: uint64(3)},
					&Compare{Field: "seq", Op: LessThan, Value: int64(10)},
				}},
				Limit: 5,
			},
		},
		{
			name: "proofs by owner",
			query: Select{
				From:   TableProofs,
				Fields: Columns[TableProofs],
				Filter: Equals{Field: "owner", Value: "bob"},
			},
		},
		{
			name: "empty and",
			query: Select{
				From:   TableEvents,
				Fields: []string{"kind"},
				Filter: And{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.query)
			assert.True(t, result.Valid, "problems: %v", result.Problems)
			assert.Empty(t, result.Problems)
			assert.NoError(t, result.Err())
		})
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		problem string
	}{
		{
			name:    "nil query",
			query:   nil,
			problem: "nil query",
		},
		{
			name:    "nil select pointer",
			query:   (*Select)(nil),
			problem: "nil query",
		},
		{
			name:    "unknown table",
			query:   Select{From: "meta", Fields: []string{"key"}},
			problem: `unknown table "meta"`,
		},
		{
			name:    "empty fields",
			query:   Select{From: TableCalls},
			problem: "empty field list",
		},
		{
			name:    "unknown field",
			query:   Select{From: TableCalls, Fields: []string{"id; DROP TABLE calls"}},
			problem: "unknown column",
		},
		{
			name: "column from another table",
			query: Select{
				From:   TableCalls,
				Fields: []string{"id"},
				Filter: Equals{Field: "owner", Value: "alice"},
			},
			problem: `unknown column "owner"`,
		},
		{
			name: "unsupported value",
			query: Select{
				From:   TableCalls,
				Fields: []string{"id"},
				Filter: Equals{Field: "weight", Value: 1.5},
			},
			problem: "unsupported value type float64",
		},
		{
			name: "compare string",
			query: Select{
				From:   TableCalls,
				Fields: []string{"id"},
				Filter: Compare{Field: "block", Op: AtLeast, Value: "3"},
			},
			problem: "non-integer value type string",
		},
		{
			name: "unknown comparison",
			query: Select{
				From:   TableCalls,
				Fields: []string{"id"},
				Filter: Compare{Field: "block", Op: "!=", Value: int64(3)},
			},
			problem: `unknown comparison "!="`,
		},
		{
			name: "nested problem",
			query: Select{
				From:   TableEvents,
				Fields: []string{"kind"},
				Filter: And{Predicates: []Predicate{And{Predicates: []Predicate{nil}}}},
			},
			problem: "unknown predicate type",
		},
		{
			name:    "negative limit",
			query:   Select{From: TableCalls, Fields: []string{"id"}, Limit: -1},
			problem: "negative limit -1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.query)
			assert.False(t, result.Valid)
			require.NotEmpty(t, result.Problems)
			assert.Contains(t, result.Problems[0], tt.problem)
			require.Error(t, result.Err())
			assert.Contains(t, result.Err().Error(), "invalid query: ")
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	result := Validate(Select{
		From:   TableCalls,
		Fields: []string{"nope"},
		Filter: And{Predicates: []Predicate{
			Equals{Field: "also_nope", Value: "x"},
			Compare{Field: "block", Op: AtMost, Value: "y"},
		}},
		Limit: -2,
	})

	assert.False(t, result.Valid)
	assert.Len(t, result.Problems, 4)
}

func TestWhere(t *testing.T) {
	assert.Nil(t, Where())
	assert.Nil(t, Where(nil, nil))

	single := Equals{Field: "caller", Value: "alice"}
	assert.Equal(t, single, Where(nil, single))

	both := Where(single, nil, Compare{Field: "block", Op: AtLeast, Value: uint64(1)})
	and, ok := both.(And)
	require.True(t, ok)
	assert.Len(t, and.Predicates, 2)
}

func TestSealedInterfaces(t *testing.T) {
	var _ Query = Select{}
	var _ Query = &Select{}
	var _ Predicate = Equals{}
	var _ Predicate = Compare{}
	var _ Predicate = And{}
}
