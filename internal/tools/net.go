package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

type openURLInput struct {
	URL string `json:"url"`
}

type openURLOutput struct {
	URL                string `json:"url"`
	RequiresUserAction bool   `json:"requires_user_action"`
}

// openURLTool never actually opens anything: it validates the URL and hands
// it back for the caller to act on.
func openURLTool() Tool {
	return Tool{
		ToolID:               "open_url",
		Description:          "Validate a URL (resolving file:// paths into the allowed roots) and return it for the caller to open.",
		RequiresConfirmation: true,
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"url": map[string]any{"type": "string"}},
			"required":   []string{"url"},
		},
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url":                  map[string]any{"type": "string"},
				"requires_user_action": map[string]any{"type": "boolean"},
			},
		},
		Handler: handleOpenURL,
	}
}

func handleOpenURL(ctx context.Context, tc *Context, raw json.RawMessage) (any, error) {
	var in openURLInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode open_url input: %w", err)
	}
	u, err := url.Parse(in.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		if !tc.AllowNetwork {
			return nil, errors.New("Network tools are disabled.")
		}
	case "file":
		if _, err := tc.ResolvePath(u.Path); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	return openURLOutput{URL: in.URL, RequiresUserAction: true}, nil
}
