package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/stitch/pkg/errors"
)

func TestParse_Literals(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want interface{}
	}{
		{name: "null", src: "null", want: nil},
		{name: "true", src: "true", want: true},
		{name: "false", src: "false", want: false},
		{name: "integer", src: "711", want: 711},
		{name: "negative integer", src: "-710", want: -710},
		{name: "float", src: "2.0", want: 2.0},
		{name: "negative float", src: "-9.2", want: -9.2},
		{name: "string", src: "'Mona the Octocat'", want: "Mona the Octocat"},
		{name: "escaped quote", src: "'It''s open source'", want: "It's open source"},
		{name: "hex stays opaque", src: "0xff", want: "0xff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Variables(t *testing.T) {
	got, err := Parse("inputs")
	require.NoError(t, err)
	assert.Equal(t, Value("inputs"), got)

	got, err = Parse("inputs.use-me")
	require.NoError(t, err)
	assert.Equal(t, &Lookup{Segments: []interface{}{"inputs", "use-me"}}, got)

	got, err = Parse("a.b.c")
	require.NoError(t, err)
	assert.Equal(t, &Lookup{Segments: []interface{}{"a", "b", "c"}}, got)

	got, err = Parse("a[12]")
	require.NoError(t, err)
	assert.Equal(t, &Lookup{Segments: []interface{}{"a", 12}}, got)

	got, err = Parse("manylinux-versions[inputs.python-version]")
	require.NoError(t, err)
	assert.Equal(t, &Lookup{Segments: []interface{}{
		"manylinux-versions",
		&Lookup{Segments: []interface{}{"inputs", "python-version"}},
	}}, got)

	got, err = Parse("a[b].c")
	require.NoError(t, err)
	assert.Equal(t, &Lookup{Segments: []interface{}{"a", Value("b"), "c"}}, got)
}

func TestParse_Operators(t *testing.T) {
	got, err := Parse("a != b")
	require.NoError(t, err)
	assert.Equal(t, &Call{Fn: FnNotEq, Args: []interface{}{Value("a"), Value("b")}}, got)

	got, err = Parse("true || inputs.value")
	require.NoError(t, err)
	assert.Equal(t, &Call{Fn: FnOr, Args: []interface{}{
		true,
		&Lookup{Segments: []interface{}{"inputs", "value"}},
	}}, got)

	// Chained infix operators fold right-associated.
	got, err = Parse("a && b && c")
	require.NoError(t, err)
	assert.Equal(t, &Call{Fn: FnAnd, Args: []interface{}{
		Value("a"),
		&Call{Fn: FnAnd, Args: []interface{}{Value("b"), Value("c")}},
	}}, got)

	got, err = Parse("!a")
	require.NoError(t, err)
	assert.Equal(t, &Call{Fn: FnNot, Args: []interface{}{Value("a")}}, got)

	// A leading ! binds to the next operand, not the whole chain.
	got, err = Parse("!a && b")
	require.NoError(t, err)
	assert.Equal(t, &Call{Fn: FnAnd, Args: []interface{}{
		&Call{Fn: FnNot, Args: []interface{}{Value("a")}},
		Value("b"),
	}}, got)

	got, err = Parse("!(a || b)")
	require.NoError(t, err)
	assert.Equal(t, &Call{Fn: FnNot, Args: []interface{}{
		&Call{Fn: FnOr, Args: []interface{}{Value("a"), Value("b")}},
	}}, got)
}

func TestParse_Functions(t *testing.T) {
	got, err := Parse("fromJSON(env.test)")
	require.NoError(t, err)
	assert.Equal(t, &Call{Fn: FnFromJSON, Args: []interface{}{
		&Lookup{Segments: []interface{}{"env", "test"}},
	}}, got)

	got, err = Parse("startsWith(runner.os, 'Linux')")
	require.NoError(t, err)
	assert.Equal(t, &Call{Fn: FnStartsWith, Args: []interface{}{
		&Lookup{Segments: []interface{}{"runner", "os"}},
		"Linux",
	}}, got)

	// Function names match case-insensitively.
	got, err = Parse("STARTSWITH(a, 'x')")
	require.NoError(t, err)
	assert.Equal(t, &Call{Fn: FnStartsWith, Args: []interface{}{Value("a"), "x"}}, got)

	got, err = Parse("success()")
	require.NoError(t, err)
	assert.Equal(t, &Call{Fn: FnSuccess}, got)

	got, err = Parse("hashFiles()")
	require.NoError(t, err)
	assert.Equal(t, &Call{Fn: FnHashFiles}, got)

	got, err = Parse("hashFiles('**/package-lock.json')")
	require.NoError(t, err)
	assert.Equal(t, &Call{Fn: FnHashFiles, Args: []interface{}{"**/package-lock.json"}}, got)

	got, err = Parse("hashFiles('**/package-lock.json', '**/Gemfile.lock')")
	require.NoError(t, err)
	assert.Equal(t, &Call{Fn: FnHashFiles, Args: []interface{}{
		"**/package-lock.json", "**/Gemfile.lock",
	}}, got)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "unbalanced open", src: "(a && b"},
		{name: "unbalanced close", src: "a && b)"},
		{name: "dangling operator", src: "a &&"},
		{name: "lone operator character", src: "a = b"},
		{name: "function without arguments", src: "startsWith"},
		{name: "binary function with one argument", src: "startsWith('a')"},
		{name: "empty function with arguments", src: "success('a')"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			assert.True(t, errors.IsParseError(err))
		})
	}
}

func TestRender_RoundTrip(t *testing.T) {
	// Rendering a parsed expression and parsing the render again must give
	// the same tree, so residuals survive repeated expansion passes.
	sources := []string{
		"inputs",
		"inputs.use-me",
		"a[b].c",
		"manylinux-versions[inputs.python-version]",
		"!a",
		"a && b",
		"a && b && c",
		"!(a || b)",
		"a == b",
		"a != b",
		"startsWith(matrix.os, 'ubuntu')",
		"!startsWith(matrix.os, 'ubuntu')",
		"contains(a, 'Ho')",
		"startsWith(a, 'M''lady')",
		"hashFiles('**/package-lock.json', '**/Gemfile.lock')",
		"success()",
		"toJSON(a)",
	}

	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			first, err := Parse(src)
			require.NoError(t, err)
			node, ok := first.(Node)
			require.True(t, ok, "expected a symbolic tree for %q", src)

			second, err := Parse(node.String())
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}

func TestRender_Forms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "not of infix parenthesizes", src: "!(a || b)", want: "!(a || b)"},
		{name: "not of call stays bare", src: "!startsWith(a, b)", want: "!startsWith(a, b)"},
		{name: "string argument quoting", src: "startsWith(a, 'M''lady')", want: "startsWith(a, 'M''lady')"},
		{name: "infix spacing", src: "a==b", want: "a == b"},
		{name: "null literal", src: "a == null", want: "a == null"},
		{name: "float keeps decimal point", src: "a == 2.0", want: "a == 2.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.src)
			require.NoError(t, err)
			node, ok := got.(Node)
			require.True(t, ok)
			assert.Equal(t, tt.want, node.String())
		})
	}
}
