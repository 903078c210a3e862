// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package command

import (
	"context"
	"log"

	"github.com/morganforge/taskpilot/internal/oracle"
)

// =============================================================================
// ORACLE RESOLVER
// =============================================================================

// maxToolRounds caps the chat/execute loop. Two rounds bound latency and
// cost while still allowing one multi-step command.
const maxToolRounds = 2

const systemPrompt = `You are a todo list assistant. The user gives you one ` +
	`command about their todo list. Call exactly the tool that carries out ` +
	`the command. If the command is not about managing todos, do not call ` +
	`any tool.`

// OracleResolver hands the command and the tool catalogue to a language
// model and executes whatever tool calls come back, validated against the
// catalogue schemas. The model is the classifier; the tool results are the
// answer. A model reply that never invokes a tool is "Command not
// recognized." rather than free-form model text.
type OracleResolver struct {
	client *oracle.Client
	runner *Runner
}

// NewOracleResolver creates the model-backed resolver.
func NewOracleResolver(client *oracle.Client, runner *Runner) *OracleResolver {
	return &OracleResolver{client: client, runner: runner}
}

// Resolve implements Resolver. The loop alternates "ask the model" and
// "execute tools" for at most maxToolRounds rounds, terminating early on a
// reply with no tool calls. Cancellation is honored between rounds only;
// an in-flight tool execution completes or rolls back at the store.
func (o *OracleResolver) Resolve(ctx context.Context, userID, command string) (Response, error) {
	messages := []oracle.Message{
		oracle.NewSystemMessage(systemPrompt),
		oracle.NewUserMessage(command),
	}
	catalogue := Catalogue()

	var last *Result
	for round := 0; round < maxToolRounds; round++ {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}

		resp, err := o.client.Chat(ctx, messages, catalogue)
		if err != nil {
			return Response{}, err
		}

		if !resp.Message.HasToolCalls() {
			break
		}
		messages = append(messages, resp.Message)

		for _, call := range resp.Message.ToolCalls {
			inv, err := DecodeInvocation(call.Function.Name, call.Function.Arguments)
			if err != nil {
				// Bad tool name or malformed arguments: the oracle
				// misunderstood the command. Not an infrastructure fault.
				log.Printf("COMMAND ORACLE REJECTED | tool=%s err=%v", call.Function.Name, err)
				return Response{Success: false, Text: errNotRecognized}, nil
			}

			res, err := o.runner.Execute(ctx, userID, inv)
			if err != nil {
				return Response{}, err
			}
			last = &res
			messages = append(messages, oracle.NewToolResultMessage(res.Text()))
		}
	}

	if last == nil {
		return Response{Success: false, Text: errNotRecognized}, nil
	}
	return last.Response(), nil
}
