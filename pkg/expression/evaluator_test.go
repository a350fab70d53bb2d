package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simplifySrc(t *testing.T, src string, ctx Context) interface{} {
	t.Helper()
	tree, err := Parse(src)
	require.NoError(t, err)
	return Simplify(tree, ctx)
}

func TestSimplify_Values(t *testing.T) {
	assert.Equal(t, Value("inputs"), simplifySrc(t, "inputs", nil))
	assert.Equal(t, "testing", simplifySrc(t, "inputs", Context{"inputs": "testing"}))

	assert.Equal(t,
		&Lookup{Segments: []interface{}{"inputs", "value"}},
		simplifySrc(t, "inputs.value", nil))
	assert.Equal(t, "testing",
		simplifySrc(t, "inputs.value", Context{
			"inputs": map[string]interface{}{"value": "testing"},
		}))

	// A bound value that is itself symbolic floats through.
	assert.Equal(t, Value("testing"),
		simplifySrc(t, "inputs.value", Context{
			"inputs": map[string]interface{}{"value": Value("testing")},
		}))

	// The empty string is a real binding, not a miss.
	assert.Equal(t, "",
		simplifySrc(t, "inputs.empty", Context{
			"inputs": map[string]interface{}{"empty": ""},
		}))
}

func TestSimplify_ComputedLookups(t *testing.T) {
	ctx := Context{
		"a": map[string]interface{}{
			"x": map[string]interface{}{"c": false},
			"y": map[string]interface{}{"c": true},
		},
	}

	// Unresolvable computed segment: the whole chain stays symbolic.
	assert.Equal(t,
		&Lookup{Segments: []interface{}{"a", Value("b"), "c"}},
		simplifySrc(t, "a[b].c", ctx))

	ctx["b"] = "x"
	assert.Equal(t, false, simplifySrc(t, "a[b].c", ctx))

	ctx["b"] = "y"
	assert.Equal(t, true, simplifySrc(t, "a[b].c", ctx))

	// The computed segment reduces even when the walk cannot finish.
	ctx["b"] = &Lookup{Segments: []interface{}{"other", "place"}}
	got := simplifySrc(t, "a[b].c", ctx)
	assert.Equal(t,
		&Lookup{Segments: []interface{}{"a", &Lookup{Segments: []interface{}{"other", "place"}}, "c"}},
		got)
	assert.Equal(t, "a[other.place].c", got.(Node).String())

	assert.Equal(t,
		&Lookup{Segments: []interface{}{"manylinux-versions", 12}},
		simplifySrc(t, "manylinux-versions[inputs.python-version]", Context{
			"inputs": map[string]interface{}{"python-version": 12},
		}))
}

func TestSimplify_BooleanAlgebra(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want interface{}
	}{
		{name: "or with true", src: "true || inputs.value", want: true},
		{name: "and with false", src: "false && inputs.value", want: false},
		{name: "and drops true", src: "a && true", want: Value("a")},
		{name: "and keeps order", src: "true && a", want: Value("a")},
		{name: "or drops false", src: "a || false", want: Value("a")},
		{name: "or dedups", src: "a || a", want: Value("a")},
		{name: "and dedups", src: "a && a", want: Value("a")},
		{name: "not true", src: "!true", want: false},
		{name: "not null", src: "!null", want: true},
		{name: "not empty string", src: "!''", want: true},
		{name: "and of null collapses", src: "a && null && b", want: false},
		{
			name: "residual conjunction",
			src:  "a && b",
			want: &Call{Fn: FnAnd, Args: []interface{}{Value("a"), Value("b")}},
		},
		{
			name: "status call keeps guard symbolic",
			src:  "success() || a",
			want: &Call{Fn: FnOr, Args: []interface{}{&Call{Fn: FnSuccess}, Value("a")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, simplifySrc(t, tt.src, nil))
		})
	}
}

func TestSimplify_Equality(t *testing.T) {
	assert.Equal(t, true, simplifySrc(t, "1 == 1", nil))
	assert.Equal(t, false, simplifySrc(t, "1 == 10", nil))
	assert.Equal(t, true, simplifySrc(t, "1 == 1.0", nil))
	assert.Equal(t, false, simplifySrc(t, "1 != 1", nil))
	assert.Equal(t, true, simplifySrc(t, "'a' == 'a'", nil))

	// Identical symbolic references compare without a context.
	assert.Equal(t, true, simplifySrc(t, "a == a", nil))
	assert.Equal(t, false, simplifySrc(t, "a != a", nil))
	assert.Equal(t, true, simplifySrc(t, "x.y == x.y", nil))

	// Distinct references stay symbolic.
	assert.Equal(t,
		&Call{Fn: FnEq, Args: []interface{}{Value("a"), Value("b")}},
		simplifySrc(t, "a == b", nil))
}

func TestSimplify_StringFunctions(t *testing.T) {
	assert.Equal(t, true, simplifySrc(t, "startsWith('ubuntu-latest', 'ubuntu')", nil))
	assert.Equal(t, false, simplifySrc(t, "startsWith('Windows', 'ubuntu')", nil))
	assert.Equal(t, true, simplifySrc(t, "endsWith('Hello world', 'ld')", nil))
	assert.Equal(t, false, simplifySrc(t, "endsWith('Hello world', 'He')", nil))
	assert.Equal(t, true, simplifySrc(t, "contains('Hello world', 'lo')", nil))
	assert.Equal(t, false, simplifySrc(t, "contains('Hello world', 'mo')", nil))

	// Any symbolic argument keeps the call residual.
	assert.Equal(t,
		&Call{Fn: FnStartsWith, Args: []interface{}{Value("a"), "testing"}},
		simplifySrc(t, "startsWith(a, 'testing')", nil))

	got := simplifySrc(t,
		"!startsWith(matrix.os, 'ubuntu') && (true && startsWith('ubuntu-latest', 'ubuntu'))", nil)
	require.IsType(t, &Call{}, got)
	assert.Equal(t, "!startsWith(matrix.os, 'ubuntu')", got.(Node).String())

	assert.Equal(t, false, simplifySrc(t,
		"!startsWith(matrix.os, 'ubuntu') && (true && null && startsWith('ubuntu-latest', 'ubuntu'))", nil))
}

func TestSimplify_JSON(t *testing.T) {
	assert.Equal(t, "true", simplifySrc(t, "toJSON(true)", nil))
	assert.Equal(t, `"hi"`, simplifySrc(t, "toJSON('hi')", nil))
	assert.Equal(t,
		&Call{Fn: FnToJSON, Args: []interface{}{Value("a")}},
		simplifySrc(t, "toJSON(a)", nil))

	assert.Equal(t,
		map[string]interface{}{"a": nil, "b": 1.0, "c": false},
		simplifySrc(t, `fromJSON('{"a": null, "b": 1.0, "c": false}')`, nil))
	assert.Equal(t,
		&Call{Fn: FnFromJSON, Args: []interface{}{&Lookup{Segments: []interface{}{"env", "test"}}}},
		simplifySrc(t, "fromJSON(env.test)", nil))
}

func TestSimplify_RuntimeOnlyFunctions(t *testing.T) {
	// hashFiles and the status functions never fold, with or without a
	// context: their answers only exist on a runner.
	ctx := Context{"github": map[string]interface{}{"ref": "refs/heads/main"}}

	got := simplifySrc(t, "hashFiles('**/go.sum')", ctx)
	assert.Equal(t, &Call{Fn: FnHashFiles, Args: []interface{}{"**/go.sum"}}, got)

	assert.Equal(t, &Call{Fn: FnSuccess}, simplifySrc(t, "success()", ctx))
	assert.Equal(t, &Call{Fn: FnAlways}, simplifySrc(t, "always()", ctx))
	assert.Equal(t, &Call{Fn: FnCancelled}, simplifySrc(t, "cancelled()", ctx))
	assert.Equal(t, &Call{Fn: FnFailure}, simplifySrc(t, "failure()", ctx))
}

func TestEval_Substitution(t *testing.T) {
	got, err := Eval("Hello", Context{})
	require.NoError(t, err)
	assert.Equal(t, "Hello", got)

	got, err = Eval("Hello ${{ a }}! You are ${{ b }}.", Context{"a": "world", "b": "awesome"})
	require.NoError(t, err)
	assert.Equal(t, "Hello world! You are awesome.", got)

	got, err = Eval("Hello ${{ a }}! You are ${{ b }}.", Context{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, "Hello 1! You are 2.", got)

	// Unbound names render back as delimited residual text.
	got, err = Eval("ref is ${{ github.ref }}", Context{})
	require.NoError(t, err)
	assert.Equal(t, "ref is ${{ github.ref }}", got)
}

func TestEval_WholeString(t *testing.T) {
	// A string that is exactly one expression keeps the value's type.
	got, err := Eval("${{ a }}", Context{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	got, err = Eval("${{ a == 1 }}", Context{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, true, got)

	// Leading text forces the substitution path and stringifies.
	got, err = Eval(" ${{ a }}", Context{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, " 1", got)

	// Two embedded expressions are substitutions, not a whole-string parse.
	got, err = Eval("${{ a }}-${{ b }}", Context{"a": "x", "b": "y"})
	require.NoError(t, err)
	assert.Equal(t, "x-y", got)
}

func TestEval_ParseErrorPropagates(t *testing.T) {
	_, err := Eval("${{ (a && b }}", Context{})
	require.Error(t, err)

	_, err = Eval("before ${{ a = b }} after", Context{})
	require.Error(t, err)
}

func TestParseScalar(t *testing.T) {
	got, err := ParseScalar(true)
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = ParseScalar("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	got, err = ParseScalar("${{ hello }}")
	require.NoError(t, err)
	assert.Equal(t, Value("hello"), got)

	got, err = ParseScalar("${{ hello && true }}")
	require.NoError(t, err)
	assert.Equal(t, Value("hello"), got)

	got, err = ParseScalar("${{ hello || true }}")
	require.NoError(t, err)
	assert.Equal(t, true, got)

	// Not a single whole expression: passes through untouched.
	got, err = ParseScalar("a[b].c || false")
	require.NoError(t, err)
	assert.Equal(t, "a[b].c || false", got)
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(false))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(0))
	assert.False(t, Truthy(0.0))
	assert.True(t, Truthy(true))
	assert.True(t, Truthy("x"))
	assert.True(t, Truthy(1))
	assert.True(t, Truthy(-0.5))
	assert.True(t, Truthy([]interface{}{}))
}
