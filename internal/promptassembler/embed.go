package promptassembler

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"strings"
)

//go:embed system/base_assistant_prompt.md
var baseSystemPrompt string

//go:embed system/base_assistant_prompt.sha256
var pinnedBaseSystemPromptSHA256 string

// BaseSystemPromptSHA256 is computed once at package init and verified
// against the pinned sibling digest; a mismatch panics at process startup,
// refusing to serve with a corrupted or hand-edited prompt.
var BaseSystemPromptSHA256 string

func init() {
	sum := sha256.Sum256([]byte(baseSystemPrompt))
	BaseSystemPromptSHA256 = hex.EncodeToString(sum[:])

	expected := strings.ToLower(strings.TrimSpace(pinnedBaseSystemPromptSHA256))
	if BaseSystemPromptSHA256 != expected {
		panic(fmt.Sprintf(
			"base system prompt hash mismatch: expected=%s actual=%s",
			expected, BaseSystemPromptSHA256,
		))
	}
}
