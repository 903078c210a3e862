// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/morganforge/taskpilot/internal/oracle"
)

// =============================================================================
// TOOL CATALOGUE
// =============================================================================

// Tool names as presented to the oracle.
const (
	toolAddTodo         = "addTodo"
	toolMarkTodo        = "markAsCompletedOrIncomplete"
	toolMarkFirstOrLast = "markFirstOrLastAsCompletedOrIncomplete"
	toolDeleteTodo      = "deleteTodo"
	toolDeleteFirstLast = "deleteFirstOrLast"
	toolClearAll        = "clearAllTodos"
	toolMarkMultiple    = "markMultipleAsDone"
)

// ErrUnknownTool is returned when the oracle names a tool that does not
// exist in the catalogue.
var ErrUnknownTool = errors.New("unknown tool")

func makeTool(name, description string, props map[string]oracle.ToolProperty, required []string) oracle.Tool {
	return oracle.Tool{
		Type: "function",
		Function: oracle.ToolSchema{
			Name:        name,
			Description: description,
			Parameters: oracle.ToolParameters{
				Type:       "object",
				Properties: props,
				Required:   required,
			},
		},
	}
}

// Catalogue returns the tool schemas handed to the oracle with every
// resolution request.
func Catalogue() []oracle.Tool {
	return []oracle.Tool{
		makeTool(toolAddTodo,
			"Add a new todo item to the list",
			map[string]oracle.ToolProperty{
				"text": {Type: "string", Description: "The text of the todo item"},
			},
			[]string{"text"}),

		makeTool(toolMarkTodo,
			"Mark a todo, referenced by its text, as completed or not completed",
			map[string]oracle.ToolProperty{
				"todoText":          {Type: "string", Description: "The text of the todo to mark"},
				"toMarkAsCompleted": {Type: "boolean", Description: "true to mark as done, false to mark as not done"},
			},
			[]string{"todoText", "toMarkAsCompleted"}),

		makeTool(toolMarkFirstOrLast,
			"Mark the first or last todo in the list as completed or not completed",
			map[string]oracle.ToolProperty{
				"fromEnd":           {Type: "boolean", Description: "true for the last (newest) todo, false for the first (oldest)"},
				"toMarkAsCompleted": {Type: "boolean", Description: "true to mark as done, false to mark as not done"},
			},
			[]string{"fromEnd", "toMarkAsCompleted"}),

		makeTool(toolDeleteTodo,
			"Delete a todo, referenced by its text",
			map[string]oracle.ToolProperty{
				"todoText": {Type: "string", Description: "The text of the todo to delete"},
			},
			[]string{"todoText"}),

		makeTool(toolDeleteFirstLast,
			"Delete the first or last todo in the list",
			map[string]oracle.ToolProperty{
				"fromEnd": {Type: "boolean", Description: "true for the last (newest) todo, false for the first (oldest)"},
			},
			[]string{"fromEnd"}),

		makeTool(toolClearAll,
			"Delete all todos in the list",
			nil,
			nil),

		makeTool(toolMarkMultiple,
			"Mark a number of incomplete todos as done, starting from the front or back of the list",
			map[string]oracle.ToolProperty{
				"count":   {Type: "integer", Description: "How many todos to mark as done"},
				"fromEnd": {Type: "boolean", Description: "true to start from the newest todo", Default: false},
			},
			[]string{"count"}),
	}
}

// =============================================================================
// ARGUMENT DECODING
// =============================================================================

// The oracle is untrusted with respect to argument shape: every argument is
// validated and coerced against the tool's schema here before any tool runs.

func argString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

func argBool(args map[string]any, key string, def *bool) (bool, error) {
	v, ok := args[key]
	if !ok {
		if def != nil {
			return *def, nil
		}
		return false, fmt.Errorf("missing argument %q", key)
	}

	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		// Models frequently return "true"/"false" as strings.
		parsed, err := strconv.ParseBool(strings.ToLower(b))
		if err != nil {
			return false, fmt.Errorf("argument %q must be a boolean", key)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("argument %q must be a boolean", key)
	}
}

func argInt(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}

	switch n := v.(type) {
	case float64:
		// encoding/json decodes all numbers as float64.
		return int(n), nil
	case int:
		return n, nil
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("argument %q must be an integer", key)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("argument %q must be an integer", key)
	}
}

// DecodeInvocation validates an oracle tool call and converts it to a typed
// invocation. An unrecognized tool name returns ErrUnknownTool.
func DecodeInvocation(name string, args map[string]any) (Invocation, error) {
	falseDefault := false

	switch name {
	case toolAddTodo:
		text, err := argString(args, "text")
		if err != nil {
			return nil, err
		}
		return AddTodo{Text: text}, nil

	case toolMarkTodo:
		text, err := argString(args, "todoText")
		if err != nil {
			return nil, err
		}
		completed, err := argBool(args, "toMarkAsCompleted", nil)
		if err != nil {
			return nil, err
		}
		return MarkTodo{Text: text, Completed: completed}, nil

	case toolMarkFirstOrLast:
		fromEnd, err := argBool(args, "fromEnd", nil)
		if err != nil {
			return nil, err
		}
		completed, err := argBool(args, "toMarkAsCompleted", nil)
		if err != nil {
			return nil, err
		}
		return MarkFirstOrLast{FromEnd: fromEnd, Completed: completed}, nil

	case toolDeleteTodo:
		text, err := argString(args, "todoText")
		if err != nil {
			return nil, err
		}
		return DeleteTodo{Text: text}, nil

	case toolDeleteFirstLast:
		fromEnd, err := argBool(args, "fromEnd", nil)
		if err != nil {
			return nil, err
		}
		return DeleteFirstOrLast{FromEnd: fromEnd}, nil

	case toolClearAll:
		return ClearAll{}, nil

	case toolMarkMultiple:
		count, err := argInt(args, "count")
		if err != nil {
			return nil, err
		}
		fromEnd, err := argBool(args, "fromEnd", &falseDefault)
		if err != nil {
			return nil, err
		}
		return MarkMultiple{Count: count, FromEnd: fromEnd}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}
