package bridge

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAllSeverities(t *testing.T) {
	for _, method := range Methods {
		t.Run(string(method), func(t *testing.T) {
			raw, err := Encode(NewMessage(method, "a", "b"))
			require.NoError(t, err)

			msg, err := Decode(raw)
			require.NoError(t, err)
			assert.Equal(t, KindConsole, msg.Kind)
			assert.Equal(t, method, msg.Method)
			assert.Equal(t, []string{"a", "b"}, msg.Arguments)
		})
	}
}

func TestEncodeFieldNames(t *testing.T) {
	raw, err := Encode(Message{Kind: KindConsole, Method: MethodWarn})
	require.NoError(t, err)

	text := string(raw)
	assert.Contains(t, text, `"kind":"console"`)
	assert.Contains(t, text, `"method":"warn"`)
	assert.Contains(t, text, `"arguments":[]`)
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "not json", raw: `hello`, want: ErrNotDiagnostic},
		{name: "no kind", raw: `{"method":"log","arguments":[]}`, want: ErrNotDiagnostic},
		{name: "foreign kind", raw: `{"kind":"resize","height":40}`, want: ErrNotDiagnostic},
		{name: "unknown method", raw: `{"kind":"console","method":"debug","arguments":["x"]}`, want: ErrMalformed},
		{name: "empty method", raw: `{"kind":"console","arguments":["x"]}`, want: ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestDecodeCoercesNonTextArguments(t *testing.T) {
	msg, err := Decode([]byte(`{"kind":"console","method":"log","arguments":["s",1,null,{"a":true}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"s", "1", "null", `{"a":true}`}, msg.Arguments)
}

func TestRecord(t *testing.T) {
	at := time.Unix(42, 0)
	msg := NewMessage(MethodInfo, "x", "y")
	rec := msg.Record(at)

	assert.Equal(t, MethodInfo, rec.Method)
	assert.Equal(t, at, rec.Timestamp)
	assert.Equal(t, "x y", rec.Text())

	msg.Arguments[0] = "changed"
	assert.Equal(t, "x", rec.Arguments[0], "record must not alias the message")
}

func TestScriptOffset(t *testing.T) {
	script := Script(17)
	assert.Contains(t, script, "var lineOffset = 17;")
	assert.NotContains(t, script, lineOffsetPlaceholder)
	assert.Equal(t, strings.Count(Script(0), "\n"), strings.Count(Script(123456), "\n"))
	assert.Contains(t, Script(-3), "var lineOffset = 0;")
}
