package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

type gitCommandOutput struct {
	Output   string `json:"output"`
	ExitCode int    `json:"exit_code"`
}

func runGit(ctx context.Context, tc *Context, args ...string) (gitCommandOutput, error) {
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(tc.CommandTimeoutSec)*time.Second)
	defer cancel()
	cmd := exec.CommandContext(runCtx, "git", args...)
	cmd.Dir = tc.RepoRoot
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return gitCommandOutput{}, fmt.Errorf("Command timed out after %ds", tc.CommandTimeoutSec)
	}
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return gitCommandOutput{}, fmt.Errorf("run git %s: %w", strings.Join(args, " "), err)
		}
	}
	return gitCommandOutput{Output: combined.String(), ExitCode: exitCode}, nil
}

func gitStatusTool() Tool {
	return Tool{
		ToolID:      "git_status",
		Description: "Run `git status -sb` in the repository root.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"output":    map[string]any{"type": "string"},
				"exit_code": map[string]any{"type": "integer"},
			},
		},
		Handler: func(ctx context.Context, tc *Context, raw json.RawMessage) (any, error) {
			return runGit(ctx, tc, "status", "-sb")
		},
	}
}

type gitDiffInput struct {
	Staged bool   `json:"staged"`
	Path   string `json:"path"`
}

func gitDiffTool() Tool {
	return Tool{
		ToolID:      "git_diff",
		Description: "Run `git diff [--staged] [-- path]` in the repository root.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"staged": map[string]any{"type": "boolean"},
				"path":   map[string]any{"type": "string"},
			},
		},
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"output":    map[string]any{"type": "string"},
				"exit_code": map[string]any{"type": "integer"},
			},
		},
		Handler: func(ctx context.Context, tc *Context, raw json.RawMessage) (any, error) {
			var in gitDiffInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("decode git_diff input: %w", err)
			}
			args := []string{"diff"}
			if in.Staged {
				args = append(args, "--staged")
			}
			if in.Path != "" {
				args = append(args, "--", in.Path)
			}
			return runGit(ctx, tc, args...)
		},
	}
}

type gitShowInput struct {
	Ref string `json:"ref"`
}

func gitShowTool() Tool {
	return Tool{
		ToolID:      "git_show",
		Description: "Run `git show {ref}` (default HEAD) in the repository root.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"ref": map[string]any{"type": "string"}},
		},
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"output":    map[string]any{"type": "string"},
				"exit_code": map[string]any{"type": "integer"},
			},
		},
		Handler: func(ctx context.Context, tc *Context, raw json.RawMessage) (any, error) {
			var in gitShowInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("decode git_show input: %w", err)
			}
			ref := in.Ref
			if ref == "" {
				ref = "HEAD"
			}
			return runGit(ctx, tc, "show", ref)
		},
	}
}

type applyPatchInput struct {
	Patch string `json:"patch"`
}

func applyPatchTool() Tool {
	return Tool{
		ToolID:               "apply_patch",
		Description:          "Apply a unified diff via `git apply --whitespace=nowarn -`, patch on stdin.",
		RequiresConfirmation: true,
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"patch": map[string]any{"type": "string"}},
			"required":   []string{"patch"},
		},
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"output":    map[string]any{"type": "string"},
				"exit_code": map[string]any{"type": "integer"},
			},
		},
		Handler: func(ctx context.Context, tc *Context, raw json.RawMessage) (any, error) {
			var in applyPatchInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("decode apply_patch input: %w", err)
			}
			runCtx, cancel := context.WithTimeout(ctx, time.Duration(tc.CommandTimeoutSec)*time.Second)
			defer cancel()
			cmd := exec.CommandContext(runCtx, "git", "apply", "--whitespace=nowarn", "-")
			cmd.Dir = tc.RepoRoot
			cmd.Stdin = strings.NewReader(in.Patch)
			var combined bytes.Buffer
			cmd.Stdout = &combined
			cmd.Stderr = &combined

			err := cmd.Run()
			if runCtx.Err() == context.DeadlineExceeded {
				return nil, fmt.Errorf("Command timed out after %ds", tc.CommandTimeoutSec)
			}
			exitCode := 0
			if err != nil {
				if exitErr, ok := err.(*exec.ExitError); ok {
					exitCode = exitErr.ExitCode()
				} else {
					return nil, fmt.Errorf("run git apply: %w", err)
				}
			}
			return gitCommandOutput{Output: combined.String(), ExitCode: exitCode}, nil
		},
	}
}
