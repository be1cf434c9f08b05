package language

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSDL = `
type Query {
  greeting(name: String!): String
}
`

func TestLoadQueryValid(t *testing.T) {
	sch, err := LoadSchema("test.graphql", testSDL)
	require.NoError(t, err)

	doc, errs := LoadQuery(sch, `{ greeting(name: "ada") }`)
	require.Empty(t, errs)
	require.Len(t, doc.Operations, 1)
	require.Equal(t, Query, doc.Operations[0].Operation)
}

func TestLoadQueryMissingRequiredArgument(t *testing.T) {
	sch, err := LoadSchema("test.graphql", testSDL)
	require.NoError(t, err)

	doc, errs := LoadQuery(sch, `{ greeting }`)
	require.Nil(t, doc)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Message, "name")
	require.NotEmpty(t, errs[0].Locations)
}

func TestLoadQuerySyntaxError(t *testing.T) {
	sch, err := LoadSchema("test.graphql", testSDL)
	require.NoError(t, err)

	_, errs := LoadQuery(sch, `{ greeting(`)
	require.NotEmpty(t, errs)
}

func TestAsError(t *testing.T) {
	_, err := ParseQuery("{")
	require.Error(t, err)
	ge := AsError(err)
	require.NotEmpty(t, ge.Message)

	plain := AsError(errors.New("boom"))
	require.Equal(t, "boom", plain.Message)
}
