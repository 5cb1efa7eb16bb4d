package jsoncodec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalSortsKeysAndKeepsHTML(t *testing.T) {
	data, err := Marshal(map[string]any{"uri": "com.example.<add>&sum", "a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"uri":"com.example.<add>&sum"}`, string(data))
}

func TestUnmarshalFrame(t *testing.T) {
	var frame []any
	require.NoError(t, Unmarshal([]byte(`[48, 7, {}, "com.example.add", [1, 2]]`), &frame))
	require.Len(t, frame, 5)
	assert.Equal(t, float64(48), frame[0])
	assert.Equal(t, "com.example.add", frame[3])

	assert.Error(t, Unmarshal([]byte(`[48, 7`), &frame))
}

func TestMarshalIndent(t *testing.T) {
	data, err := MarshalIndent(map[string]int{"calls": 3}, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"calls\": 3\n}", string(data))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid([]byte(`[1,{},"realm1"]`)))
	assert.False(t, Valid([]byte(`[1,{}`)))
}

func TestEncodeDecodeStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, map[string]string{"realm": "realm1"}))
	require.NoError(t, Encode(&buf, map[string]string{"realm": "realm2"}))

	var first, second map[string]string
	require.NoError(t, Decode(&buf, &first))
	require.NoError(t, Decode(&buf, &second))
	assert.Equal(t, "realm1", first["realm"])
	assert.Equal(t, "realm2", second["realm"])
}
