package stdio

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/satori/internal/toolserver"
)

func testServer() *Server {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return NewServer(toolserver.New(nil, nil, nil, nil), "0.0.0-test", logger)
}

func TestServeInitializeAndToolsList(t *testing.T) {
	s := testServer()
	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n",
	)
	var out bytes.Buffer

	require.NoError(t, s.Serve(context.Background(), in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var initResp response
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &initResp))
	assert.Nil(t, initResp.Error)

	var listResp response
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &listResp))
	assert.Nil(t, listResp.Error)

	data, err := json.Marshal(listResp.Result)
	require.NoError(t, err)
	assert.Contains(t, string(data), "search_codebase")
	assert.Contains(t, string(data), "file_outline")
}

func TestServeUnknownMethodReturnsMethodNotFound(t *testing.T) {
	s := testServer()
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"bogus/method"}` + "\n")
	var out bytes.Buffer

	require.NoError(t, s.Serve(context.Background(), in, &out))

	var resp response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}

func TestServeNotificationsInitializedProducesNoResponse(t *testing.T) {
	s := testServer()
	in := strings.NewReader(`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n")
	var out bytes.Buffer

	require.NoError(t, s.Serve(context.Background(), in, &out))
	assert.Empty(t, out.String())
}

func TestServeToolsCallUnknownToolIsError(t *testing.T) {
	s := testServer()
	in := strings.NewReader(`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"bogus_tool","arguments":{}}}` + "\n")
	var out bytes.Buffer

	require.NoError(t, s.Serve(context.Background(), in, &out))

	var resp response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp))
	require.Nil(t, resp.Error)

	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"isError":true`)
}
