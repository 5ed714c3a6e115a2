// Package tools is the sandboxed Tool Runtime: a small registry of
// agent-callable tools gated by confirmation, network, and path-root rules,
// with bounded subprocess execution.
package tools

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"

	"mygpt/internal/config"
)

// execRatePerSecond throttles run_command/sql_query launches so a
// pathological tool loop cannot starve the chat stream.
const execRatePerSecond = 4

// Context is the sandbox boundary every tool handler runs inside, built once
// at startup from the environment.
type Context struct {
	RepoRoot          string
	DBPath            string
	AllowedRoots      []string
	AllowNetwork      bool
	CommandAllowlist  map[string]bool
	MaxOutputBytes    int
	CommandTimeoutSec int

	// ExecLimiter throttles run_command/sql_query launches.
	ExecLimiter *rate.Limiter
}

// NewContext resolves the configured tool roots and command allowlist into
// an absolute, canonical Context.
func NewContext(cfg config.ToolsConfig, repoRoot, dbPath string) (*Context, error) {
	roots := cfg.Roots
	if len(roots) == 0 {
		roots = []string{repoRoot}
	}
	resolved := make([]string, 0, len(roots))
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("resolve tool root %q: %w", r, err)
		}
		resolved = append(resolved, filepath.Clean(abs))
	}

	// The allowlist uses the same path-separator convention as the tool
	// roots. Both the full lowered entry and its basename are registered;
	// run_command matches on the basename.
	allowlist := make(map[string]bool)
	for _, name := range strings.Split(cfg.CommandAllowlist, string(os.PathListSeparator)) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		allowlist[name] = true
		allowlist[strings.ToLower(filepath.Base(name))] = true
	}

	maxOutput := cfg.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = 200_000
	}
	timeout := cfg.CommandTimeoutSec
	if timeout <= 0 {
		timeout = 10
	}

	return &Context{
		RepoRoot:          repoRoot,
		DBPath:            dbPath,
		AllowedRoots:      resolved,
		AllowNetwork:      cfg.AllowNetwork,
		CommandAllowlist:  allowlist,
		MaxOutputBytes:    maxOutput,
		CommandTimeoutSec: timeout,
		ExecLimiter:       rate.NewLimiter(rate.Limit(execRatePerSecond), execRatePerSecond),
	}, nil
}

// ResolvePath resolves a (possibly relative) path against allowedRoots[0],
// canonicalises it, and verifies it lies within at least one allowed root.
func (c *Context) ResolvePath(path string) (string, error) {
	if path == "" {
		path = "."
	}
	var abs string
	if filepath.IsAbs(path) {
		abs = path
	} else {
		base := c.RepoRoot
		if len(c.AllowedRoots) > 0 {
			base = c.AllowedRoots[0]
		}
		abs = filepath.Join(base, path)
	}
	abs = filepath.Clean(abs)

	for _, root := range c.AllowedRoots {
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return abs, nil
		}
	}
	return "", errors.New("Path is outside allowed roots.")
}
