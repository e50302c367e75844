package domain

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestTextStates(t *testing.T) {
	unset := &DeliveryRequest{}
	assert.Equal(t, "", unset.TextValue())
	assert.True(t, unset.TextBlank())
	assert.False(t, unset.ExplicitBlankText())

	blank := &DeliveryRequest{Text: String("  \n")}
	assert.True(t, blank.TextBlank())
	assert.True(t, blank.ExplicitBlankText())

	set := &DeliveryRequest{Text: String("hello")}
	assert.Equal(t, "hello", set.TextValue())
	assert.False(t, set.TextBlank())
	assert.False(t, set.ExplicitBlankText())
}

type namedReader struct {
	*strings.Reader
	name string
}

func (n namedReader) Name() string { return n.name }

func TestWrapFiles(t *testing.T) {
	files, err := WrapFiles([]io.Reader{
		namedReader{strings.NewReader("csv data"), "report.csv"},
		bytes.NewReader([]byte("raw")),
		namedReader{strings.NewReader("unnamed"), ""},
	})
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "report.csv", files[0].Filename)
	assert.Equal(t, []byte("csv data"), files[0].Content)
	assert.Equal(t, 0, files[0].Index)

	assert.Equal(t, "attachment 2", files[1].Filename)
	assert.Equal(t, "attachment 3", files[2].Filename)
	assert.Equal(t, 2, files[2].Index)
}

func TestWrapFilesReadError(t *testing.T) {
	_, err := WrapFiles([]io.Reader{failingReader{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read file 0")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, assert.AnError }

func TestNormalizeKeys(t *testing.T) {
	in := map[any]any{
		"type": "section",
		"text": map[any]any{"type": "mrkdwn", "text": "hi"},
		"elements": []any{
			map[any]any{1: "numeric key"},
		},
	}
	out, ok := NormalizeKeys(in).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "section", out["type"])

	text, ok := out["text"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "mrkdwn", text["type"])

	elems, ok := out["elements"].([]any)
	require.True(t, ok)
	first, ok := elems[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "numeric key", first["1"])
}

func TestNormalizeBlocks(t *testing.T) {
	assert.Nil(t, NormalizeBlocks(nil))

	blocks := NormalizeBlocks([]Block{
		{"type": "divider"},
		{"type": "section", "text": map[any]any{"type": "plain_text"}},
	})
	require.Len(t, blocks, 2)
	nested, ok := blocks[1]["text"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "plain_text", nested["type"])
}
