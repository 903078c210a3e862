// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package command

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morganforge/taskpilot/internal/oracle"
)

// fakeOracle serves a scripted sequence of chat responses and records every
// request it receives.
type fakeOracle struct {
	t        *testing.T
	script   []oracle.ChatResponse
	requests []oracle.ChatRequest
}

func (f *fakeOracle) handler(w http.ResponseWriter, r *http.Request) {
	var req oracle.ChatRequest
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
	f.requests = append(f.requests, req)

	require.Less(f.t, len(f.requests)-1, len(f.script), "oracle called more times than scripted")
	json.NewEncoder(w).Encode(f.script[len(f.requests)-1])
}

func toolCallResponse(name string, args map[string]any) oracle.ChatResponse {
	return oracle.ChatResponse{
		Message: oracle.Message{
			Role: "assistant",
			ToolCalls: []oracle.ToolCall{{
				Function: oracle.ToolFunction{Name: name, Arguments: args},
			}},
		},
	}
}

func textResponse(content string) oracle.ChatResponse {
	return oracle.ChatResponse{
		Message: oracle.Message{Role: "assistant", Content: content},
	}
}

func newOracleResolver(t *testing.T, script ...oracle.ChatResponse) (*OracleResolver, *fakeOracle, *Runner, string) {
	t.Helper()

	runner, _, userID := newTestRunner(t)

	fake := &fakeOracle{t: t, script: script}
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(srv.Close)

	client := oracle.NewClientWithConfig(&oracle.ClientConfig{BaseURL: srv.URL})
	return NewOracleResolver(client, runner), fake, runner, userID
}

func TestOracleResolver_SingleTool(t *testing.T) {
	resolver, fake, runner, userID := newOracleResolver(t,
		toolCallResponse(toolAddTodo, map[string]any{"text": "buy milk"}),
		textResponse("Added the todo for you."),
	)
	ctx := context.Background()

	resp, err := resolver.Resolve(ctx, userID, "please add buy milk to my list")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, `Added: "buy milk"`, resp.Text)

	// The item really exists afterwards.
	res, err := runner.Execute(ctx, userID, MarkTodo{Text: "buy milk", Completed: true})
	require.NoError(t, err)
	assert.True(t, res.Success)

	// First request carries the command and the full catalogue; the second
	// carries the tool result back to the model.
	require.Len(t, fake.requests, 2)
	assert.Len(t, fake.requests[0].Tools, len(Catalogue()))
	last := fake.requests[1].Messages[len(fake.requests[1].Messages)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Equal(t, `Added: "buy milk"`, last.Content)
}

func TestOracleResolver_CapsToolRounds(t *testing.T) {
	// A model that never stops calling tools is cut off after two rounds.
	resolver, fake, _, userID := newOracleResolver(t,
		toolCallResponse(toolClearAll, nil),
		toolCallResponse(toolClearAll, nil),
		toolCallResponse(toolClearAll, nil),
	)

	resp, err := resolver.Resolve(context.Background(), userID, "clear everything, twice")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "All todos cleared", resp.Text)
	assert.Len(t, fake.requests, 2)
}

func TestOracleResolver_UnknownTool(t *testing.T) {
	resolver, _, _, userID := newOracleResolver(t,
		toolCallResponse("launchMissiles", map[string]any{"target": "everywhere"}),
	)

	resp, err := resolver.Resolve(context.Background(), userID, "do something weird")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Command not recognized.", resp.Text)
}

func TestOracleResolver_MalformedArguments(t *testing.T) {
	resolver, _, _, userID := newOracleResolver(t,
		toolCallResponse(toolAddTodo, map[string]any{"wrong": "shape"}),
	)

	resp, err := resolver.Resolve(context.Background(), userID, "add something")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Command not recognized.", resp.Text)
}

func TestOracleResolver_NoToolCalls(t *testing.T) {
	// A purely conversational reply resolves nothing.
	resolver, _, _, userID := newOracleResolver(t,
		textResponse("I am just a language model."),
	)

	resp, err := resolver.Resolve(context.Background(), userID, "what is the meaning of life")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Command not recognized.", resp.Text)
}

func TestOracleResolver_FailedToolResult(t *testing.T) {
	// A recognized command over an empty list is a handled failure, not an
	// infrastructure error.
	resolver, _, _, userID := newOracleResolver(t,
		toolCallResponse(toolDeleteTodo, map[string]any{"todoText": "nothing here"}),
		textResponse("There was nothing to delete."),
	)

	resp, err := resolver.Resolve(context.Background(), userID, "delete nothing here")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Todo not found", resp.Text)
}

func TestOracleResolver_OracleDown(t *testing.T) {
	runner, _, userID := newTestRunner(t)
	client := oracle.NewClientWithConfig(&oracle.ClientConfig{BaseURL: "http://127.0.0.1:1"})
	resolver := NewOracleResolver(client, runner)

	_, err := resolver.Resolve(context.Background(), userID, "add buy milk")
	require.Error(t, err)
	assert.ErrorIs(t, err, oracle.ErrNotRunning)
}
