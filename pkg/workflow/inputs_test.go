package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/stitch/internal/yamlmap"
	"github.com/tombee/stitch/pkg/errors"
	"github.com/tombee/stitch/pkg/expression"
	"github.com/tombee/stitch/pkg/reference"
)

func declaredInputs() *yamlmap.Map {
	return yamlmap.FromPairs("inputs", yamlmap.FromPairs(
		"arg1", yamlmap.FromPairs("default", 1),
		"arg2", yamlmap.FromPairs("required", true),
	))
}

func withBlock(pairs ...interface{}) *yamlmap.Map {
	return yamlmap.FromPairs("with", yamlmap.FromPairs(pairs...))
}

func TestBuildInputs(t *testing.T) {
	inputs, err := buildInputs(declaredInputs(), withBlock("arg1", 2, "arg2", 3), nil, "target")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"arg1": 2, "arg2": 3}, inputs)

	// Defaults fill unbound inputs.
	inputs, err = buildInputs(declaredInputs(), withBlock("arg2", 3), nil, "target")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"arg1": 1, "arg2": 3}, inputs)

	// Whole-expression strings bind as expression trees.
	inputs, err = buildInputs(declaredInputs(), withBlock("arg2", "${{ matrix.os }}"), nil, "target")
	require.NoError(t, err)
	assert.Equal(t, &expression.Lookup{Segments: []interface{}{"matrix", "os"}}, inputs["arg2"])

	// Undeclared and unbound inputs bind to null.
	target := yamlmap.FromPairs("inputs", yamlmap.FromPairs("opt", nil))
	inputs, err = buildInputs(target, yamlmap.New(), nil, "target")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"opt": nil}, inputs)
}

func TestBuildInputs_MissingRequired(t *testing.T) {
	_, err := buildInputs(declaredInputs(), withBlock("arg1", 4), nil, "target")
	require.Error(t, err)
	assert.True(t, errors.IsMissingInput(err))

	var missing *errors.MissingInputError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "arg2", missing.Input)
}

func TestBuildInputs_UnexpectedExtra(t *testing.T) {
	_, err := buildInputs(declaredInputs(), withBlock("arg1", 2, "arg2", 3, "arg3", 4), nil, "target")
	require.Error(t, err)
	assert.True(t, errors.IsUnexpectedInput(err))

	var unexpected *errors.UnexpectedInputError
	require.True(t, errors.As(err, &unexpected))
	assert.Equal(t, map[string]interface{}{"arg3": 4}, unexpected.Inputs)
}

func TestBuildInputs_ResolvesIncludePaths(t *testing.T) {
	target := yamlmap.FromPairs("inputs", yamlmap.FromPairs("args1", nil))
	local := reference.Local{Root: "/path", Path: ".github/actions/blah/action.yml"}
	remote := reference.Remote{Owner: "user", Repo: "repo", Ref: "ref", Path: ".github/includes/workflows/blah/workflow.yml"}

	inputs, err := buildInputs(target,
		withBlock("args1", yamlmap.FromPairs("includes", "/a")), local, "target")
	require.NoError(t, err)
	nested := inputs["args1"].(*yamlmap.Map)
	v, _ := nested.Get("includes")
	assert.Equal(t, reference.Local{Root: "/path", Path: ".github/includes/actions/a"}, v)

	inputs, err = buildInputs(target,
		withBlock("args1", yamlmap.FromPairs("includes", "/a")), remote, "target")
	require.NoError(t, err)
	nested = inputs["args1"].(*yamlmap.Map)
	v, _ = nested.Get("includes")
	assert.Equal(t, reference.Remote{Owner: "user", Repo: "repo", Ref: "ref", Path: ".github/includes/actions/a"}, v)
}
