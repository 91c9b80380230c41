package command

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// FromFile marks a field whose value comes from the matching *_file param.
const FromFile = "_file_"

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "server",
			Action:       "health",
			Method:       "GET",
			PathTemplate: "/api",
		},
		{
			Service:      "problem",
			Action:       "list",
			Method:       "GET",
			PathTemplate: "/api/problems",
		},
		{
			Service:      "problem",
			Action:       "show",
			Method:       "GET",
			PathTemplate: "/api/problem/:id",
			Fields: []Field{
				{Name: "id", Aliases: []string{"problem_id"}, Prompt: "problem_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "code",
			Action:       "run",
			Method:       "POST",
			PathTemplate: "/api/run",
			Fields: []Field{
				{Name: "problem_id", Aliases: []string{"problem"}, Prompt: "problem_id", Type: FieldString, Required: true},
				{Name: "code", Prompt: "code", Type: FieldString, Required: true},
				{Name: "code_file", Aliases: []string{"file"}, Prompt: "code_file", Type: FieldFile},
			},
		},
		{
			Service:      "code",
			Action:       "submit",
			Method:       "POST",
			PathTemplate: "/api/submit",
			Fields: []Field{
				{Name: "user_id", Aliases: []string{"user"}, Prompt: "user_id", Type: FieldString, Required: true},
				{Name: "problem_id", Aliases: []string{"problem"}, Prompt: "problem_id", Type: FieldString, Required: true},
				{Name: "code", Prompt: "code", Type: FieldString, Required: true},
				{Name: "code_file", Aliases: []string{"file"}, Prompt: "code_file", Type: FieldFile},
			},
		},
		{
			Service:      "leaderboard",
			Action:       "show",
			Method:       "GET",
			PathTemplate: "/api/leaderboard",
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		result[cmd.Key()] = cmd
	}
	return result
}

// BuildRequest creates HTTP request spec based on command.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	path, err := buildPath(cmd.PathTemplate, params)
	if err != nil {
		return RequestSpec{}, err
	}

	var body []byte
	if cmd.Method != "GET" && cmd.Method != "DELETE" {
		payload, err := buildPayload(cmd, params)
		if err != nil {
			return RequestSpec{}, err
		}
		if payload != nil {
			body, err = json.Marshal(payload)
			if err != nil {
				return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
			}
		}
	}

	return RequestSpec{
		Method:  cmd.Method,
		Path:    path,
		Headers: map[string]string{},
		Body:    body,
	}, nil
}

func buildPath(template string, params Params) (string, error) {
	path := template
	if strings.Contains(path, ":id") {
		value := params.Get("id")
		if value == "" {
			return "", fmt.Errorf("missing path parameter: id")
		}
		path = strings.ReplaceAll(path, ":id", url.PathEscape(value))
	}
	return path, nil
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	if cmd.Service != "code" {
		return nil, nil
	}
	code, err := resolveCode(params)
	if err != nil {
		return nil, err
	}
	payload := map[string]string{
		"problem_id": params.Get("problem_id"),
		"code":       code,
	}
	if cmd.Action == "submit" {
		payload["user_id"] = params.Get("user_id")
	}
	return payload, nil
}

func resolveCode(params Params) (string, error) {
	code := params.Get("code")
	if (code == "" || code == FromFile) && params.Get("code_file") != "" {
		data, err := ReadFile(params.Get("code_file"))
		if err != nil {
			return "", err
		}
		code = data
	}
	if code == "" || code == FromFile {
		return "", fmt.Errorf("code is required")
	}
	return code, nil
}
