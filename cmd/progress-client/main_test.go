package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintLineFiltersByStage(t *testing.T) {
	var buf bytes.Buffer
	f := filter{stage: "content"}

	require.NoError(t, printLine(&buf, []byte(`{"type":"stage.batch","stage":"users"}`), f))
	assert.Empty(t, buf.String())

	require.NoError(t, printLine(&buf, []byte(`{"type":"stage.batch","stage":"content"}`), f))
	assert.Equal(t, "{\"type\":\"stage.batch\",\"stage\":\"content\"}\n", buf.String())
}

func TestPrintLinePassesThroughNonJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printLine(&buf, []byte("hello"), filter{pretty: true}))
	assert.Equal(t, "hello\n", buf.String())
}

func TestPrintLinePretty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printLine(&buf, []byte(`{"stage":"users"}`), filter{pretty: true}))
	assert.Equal(t, "{\n  \"stage\": \"users\"\n}\n", buf.String())
}
