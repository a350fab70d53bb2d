package yamlmap

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func decode(t *testing.T, src string) *Map {
	t.Helper()
	var m Map
	require.NoError(t, yaml.Unmarshal([]byte(src), &m))
	return &m
}

func encode(t *testing.T, m *Map) string {
	t.Helper()
	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	require.NoError(t, enc.Encode(m))
	require.NoError(t, enc.Close())
	return b.String()
}

func TestMap_KeyOrderSurvivesRoundTrip(t *testing.T) {
	src := strings.Join([]string{
		"name: Build",
		"on:",
		"  push: null",
		"zebra: 1",
		"alpha: 2",
		"jobs:",
		"  build:",
		"    runs-on: ubuntu-latest",
		"",
	}, "\n")

	m := decode(t, src)
	assert.Equal(t, []string{"name", "on", "zebra", "alpha", "jobs"}, m.Keys())
	assert.Equal(t, src, encode(t, m))
}

func TestMap_OnKeyStaysString(t *testing.T) {
	// yaml.v3 map decoding would resolve a bare `on:` key to a boolean;
	// decoding through the node tree must keep the literal key text.
	m := decode(t, "on:\n  push: null\n")
	assert.True(t, m.Has("on"))
	assert.Equal(t, []string{"on"}, m.Keys())
}

func TestMap_ScalarTypes(t *testing.T) {
	m := decode(t, strings.Join([]string{
		"str: hello",
		"int: 42",
		"float: 2.5",
		"bool: true",
		"nothing: null",
	}, "\n"))

	v, _ := m.Get("str")
	assert.Equal(t, "hello", v)
	v, _ = m.Get("int")
	assert.Equal(t, 42, v)
	v, _ = m.Get("float")
	assert.Equal(t, 2.5, v)
	v, _ = m.Get("bool")
	assert.Equal(t, true, v)
	v, ok := m.Get("nothing")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestMap_SetDeleteClone(t *testing.T) {
	m := FromPairs("a", 1, "b", 2, "c", 3)

	m.Set("b", 20)
	assert.Equal(t, []string{"a", "b", "c"}, m.Keys(), "existing key keeps its position")

	m.Set("d", 4)
	assert.Equal(t, []string{"a", "b", "c", "d"}, m.Keys())

	m.Delete("b")
	assert.Equal(t, []string{"a", "c", "d"}, m.Keys())
	assert.False(t, m.Has("b"))

	clone := m.Clone()
	clone.Set("e", 5)
	assert.False(t, m.Has("e"))
	assert.Equal(t, []string{"a", "c", "d"}, m.Keys())
}

func TestMap_Accessors(t *testing.T) {
	m := decode(t, strings.Join([]string{
		"name: Build",
		"jobs:",
		"  build: {}",
		"steps:",
		"  - one",
		"  - two",
	}, "\n"))

	assert.Equal(t, "Build", m.GetString("name"))
	assert.Equal(t, "", m.GetString("jobs"), "non-string value reads as empty")
	require.NotNil(t, m.GetMap("jobs"))
	assert.Nil(t, m.GetMap("name"))
	assert.Equal(t, []interface{}{"one", "two"}, m.GetSlice("steps"))
	assert.Nil(t, m.GetSlice("name"))
}

func TestMap_MultilineStringsUseLiteralStyle(t *testing.T) {
	m := FromPairs("run", "echo one\necho two\n")
	out := encode(t, m)
	assert.Contains(t, out, "run: |")
	assert.Contains(t, out, "  echo one")
}

func TestMap_MarshalJSONPreservesOrder(t *testing.T) {
	m := FromPairs(
		"zebra", 1,
		"alpha", FromPairs("nested", true),
		"list", []interface{}{"a", 2},
	)
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"zebra":1,"alpha":{"nested":true},"list":["a",2]}`, string(data))
}

func TestMap_MergeKeys(t *testing.T) {
	m := decode(t, strings.Join([]string{
		"defaults: &defaults",
		"  os: linux",
		"  arch: amd64",
		"job:",
		"  <<: *defaults",
		"  os: darwin",
	}, "\n"))

	job := m.GetMap("job")
	require.NotNil(t, job)
	assert.Equal(t, "darwin", job.GetString("os"), "explicit keys beat merged keys")
	assert.Equal(t, "amd64", job.GetString("arch"))
	assert.Equal(t, []string{"os", "arch"}, job.Keys())
}

func TestMap_AnchorsResolve(t *testing.T) {
	m := decode(t, strings.Join([]string{
		"base: &base",
		"  os: linux",
		"copy: *base",
	}, "\n"))

	copied := m.GetMap("copy")
	require.NotNil(t, copied)
	assert.Equal(t, "linux", copied.GetString("os"))
}
