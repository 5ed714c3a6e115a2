package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultMaxEntries = 2000
	defaultMaxBytes   = 200_000
)

type listDirInput struct {
	Path       string `json:"path"`
	Recursive  bool   `json:"recursive"`
	MaxEntries int    `json:"max_entries"`
}

type dirEntryOut struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
}

type listDirOutput struct {
	Entries   []dirEntryOut `json:"entries"`
	Truncated bool          `json:"truncated"`
}

func listDirTool() Tool {
	return Tool{
		ToolID:      "list_dir",
		Description: "Enumerate directory entries, optionally recursively, up to max_entries.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":        map[string]any{"type": "string"},
				"recursive":   map[string]any{"type": "boolean"},
				"max_entries": map[string]any{"type": "integer"},
			},
		},
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"entries":   map[string]any{"type": "array"},
				"truncated": map[string]any{"type": "boolean"},
			},
		},
		Handler: handleListDir,
	}
}

func handleListDir(ctx context.Context, tc *Context, raw json.RawMessage) (any, error) {
	var in listDirInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode list_dir input: %w", err)
	}
	root, err := tc.ResolvePath(in.Path)
	if err != nil {
		return nil, err
	}
	maxEntries := in.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	out := listDirOutput{Entries: []dirEntryOut{}}
	walk := func(path string, d os.DirEntry) error {
		if len(out.Entries) >= maxEntries {
			out.Truncated = true
			return errStopWalk
		}
		entryType := "file"
		if d.IsDir() {
			entryType = "dir"
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		out.Entries = append(out.Entries, dirEntryOut{Name: d.Name(), Path: rel, Type: entryType})
		return nil
	}

	if in.Recursive {
		err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == root {
				return nil
			}
			if werr := walk(path, d); werr != nil {
				if errors.Is(werr, errStopWalk) {
					return filepath.SkipAll
				}
				return werr
			}
			return nil
		})
	} else {
		var entries []os.DirEntry
		entries, err = os.ReadDir(root)
		if err == nil {
			for _, d := range entries {
				if werr := walk(filepath.Join(root, d.Name()), d); werr != nil {
					break
				}
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("list directory: %w", err)
	}
	return out, nil
}

var errStopWalk = errors.New("stop walk")

type readFileInput struct {
	Path     string `json:"path"`
	MaxBytes int    `json:"max_bytes"`
}

type readFileOutput struct {
	Content   string `json:"content"`
	ByteCount int    `json:"byte_count"`
	Truncated bool   `json:"truncated"`
}

func readFileTool() Tool {
	return Tool{
		ToolID:      "read_file",
		Description: "Read a file's content, up to max_bytes, decoded as UTF-8 with replacement.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":      map[string]any{"type": "string"},
				"max_bytes": map[string]any{"type": "integer"},
			},
			"required": []string{"path"},
		},
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content":    map[string]any{"type": "string"},
				"byte_count": map[string]any{"type": "integer"},
				"truncated":  map[string]any{"type": "boolean"},
			},
		},
		Handler: handleReadFile,
	}
}

func handleReadFile(ctx context.Context, tc *Context, raw json.RawMessage) (any, error) {
	var in readFileInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode read_file input: %w", err)
	}
	path, err := tc.ResolvePath(in.Path)
	if err != nil {
		return nil, err
	}
	maxBytes := in.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, maxBytes+1)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read file: %w", err)
	}
	truncated := n > maxBytes
	if truncated {
		n = maxBytes
	}
	content := strings.ToValidUTF8(string(buf[:n]), "�")
	return readFileOutput{Content: content, ByteCount: n, Truncated: truncated}, nil
}

type statPathInput struct {
	Path string `json:"path"`
}

type statPathOutput struct {
	Exists     bool   `json:"exists"`
	Type       string `json:"type,omitempty"`
	Size       int64  `json:"size,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
}

func statPathTool() Tool {
	return Tool{
		ToolID:      "stat_path",
		Description: "Report whether a path exists and, if so, its type/size/modified time.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"path": map[string]any{"type": "string"}},
			"required":   []string{"path"},
		},
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"exists":      map[string]any{"type": "boolean"},
				"type":        map[string]any{"type": "string"},
				"size":        map[string]any{"type": "integer"},
				"modified_at": map[string]any{"type": "string"},
			},
		},
		Handler: handleStatPath,
	}
}

func handleStatPath(ctx context.Context, tc *Context, raw json.RawMessage) (any, error) {
	var in statPathInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode stat_path input: %w", err)
	}
	path, err := tc.ResolvePath(in.Path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return statPathOutput{Exists: false}, nil
		}
		return nil, fmt.Errorf("stat path: %w", err)
	}
	entryType := "file"
	if info.IsDir() {
		entryType = "dir"
	}
	return statPathOutput{
		Exists:     true,
		Type:       entryType,
		Size:       info.Size(),
		ModifiedAt: info.ModTime().Local().Format(time.RFC3339),
	}, nil
}

type writeFileInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Mode    string `json:"mode"`
}

type writeFileOutput struct {
	BytesWritten int    `json:"bytes_written"`
	Mode         string `json:"mode"`
}

func writeFileTool() Tool {
	return Tool{
		ToolID:               "write_file",
		Description:          "Write or append content to a file, creating parent directories as needed.",
		RequiresConfirmation: true,
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string"},
				"content": map[string]any{"type": "string"},
				"mode":    map[string]any{"type": "string", "enum": []string{"overwrite", "append"}},
			},
			"required": []string{"path", "content"},
		},
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"bytes_written": map[string]any{"type": "integer"},
				"mode":          map[string]any{"type": "string"},
			},
		},
		Handler: handleWriteFile,
	}
}

func handleWriteFile(ctx context.Context, tc *Context, raw json.RawMessage) (any, error) {
	var in writeFileInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode write_file input: %w", err)
	}
	mode := in.Mode
	if mode == "" {
		mode = "overwrite"
	}
	if mode != "overwrite" && mode != "append" {
		return nil, errors.New("mode must be overwrite or append")
	}
	path, err := tc.ResolvePath(in.Path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directories: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE
	if mode == "append" {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file for write: %w", err)
	}
	defer f.Close()

	n, err := f.WriteString(in.Content)
	if err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}
	return writeFileOutput{BytesWritten: n, Mode: mode}, nil
}
