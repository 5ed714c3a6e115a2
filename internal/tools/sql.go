package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"mygpt/internal/store"

	_ "modernc.org/sqlite"
)

const defaultMaxRows = 200

var selectOrWithPattern = regexp.MustCompile(`(?i)^(select|with)\b`)

type sqlQueryInput struct {
	Query   string `json:"query"`
	MaxRows int    `json:"max_rows"`
}

type sqlQueryOutput struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated"`
}

func sqlQueryTool() Tool {
	return Tool{
		ToolID:      "sql_query",
		Description: "Run a single read-only SELECT or WITH statement against the conversation database.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":    map[string]any{"type": "string"},
				"max_rows": map[string]any{"type": "integer"},
			},
			"required": []string{"query"},
		},
		OutputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"columns":   map[string]any{"type": "array"},
				"rows":      map[string]any{"type": "array"},
				"row_count": map[string]any{"type": "integer"},
				"truncated": map[string]any{"type": "boolean"},
			},
		},
		Handler: handleSQLQuery,
	}
}

func handleSQLQuery(ctx context.Context, tc *Context, raw json.RawMessage) (any, error) {
	var in sqlQueryInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode sql_query input: %w", err)
	}
	query := strings.TrimSpace(in.Query)
	query = strings.TrimSuffix(query, ";")
	if strings.Contains(query, ";") {
		return nil, errors.New("Multiple statements are not allowed.")
	}
	if !selectOrWithPattern.MatchString(query) {
		return nil, errors.New("Only SELECT or WITH statements are allowed.")
	}

	maxRows := in.MaxRows
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}

	if tc.ExecLimiter != nil {
		if err := tc.ExecLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for execution slot: %w", err)
		}
	}

	db, err := sql.Open("sqlite", store.ReadOnlyDSN(tc.DBPath))
	if err != nil {
		return nil, fmt.Errorf("open read-only database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	out := sqlQueryOutput{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		if len(out.Rows) >= maxRows {
			out.Truncated = true
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out.Rows = append(out.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	out.RowCount = len(out.Rows)
	return out, nil
}
