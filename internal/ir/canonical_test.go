package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"empty string", IRString(""), `""`},
		{"int", IRInt(42), "42"},
		{"negative int", IRInt(-100), "-100"},
		{"min int64", IRInt(-9223372036854775808), "-9223372036854775808"},
		{"bool", IRBool(false), "false"},
		{"null", IRNull{}, "null"},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
		{"nested", IRObject{"z": IRObject{"b": IRInt(1), "a": IRInt(2)}, "a": IRInt(3)}, `{"a":3,"z":{"a":2,"b":1}}`},
		{"go map", map[string]any{"k": []any{"v", 1}}, `{"k":["v",1]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(IRString("<a & b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(result))
}

func TestMarshalCanonicalEscapes(t *testing.T) {
	result, err := MarshalCanonical(IRString("q\"b\\n\n\x01 "))
	require.NoError(t, err)
	assert.Equal(t, `"q\"b\\n\n\u0001`+" "+`"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute normalizes to U+00E9.
	result, err := MarshalCanonical(IRString("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalCanonicalRejectsFloat(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"x": 1.5})
	assert.Error(t, err)

	_, err = MarshalCanonical(float32(2))
	assert.Error(t, err)
}

func TestMarshalIndent(t *testing.T) {
	result, err := MarshalIndent(IRObject{"b": IRInt(1), "a": IRInt(2)})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 2,\n  \"b\": 1\n}", string(result))
}
