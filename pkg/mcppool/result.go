package mcppool

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// UnstructuredResultError is returned by DecodeResult when a tool produced
// only free-form text that does not parse as JSON. The raw text is preserved
// so callers can still surface it.
type UnstructuredResultError struct {
	Text string
}

func (e *UnstructuredResultError) Error() string {
	return fmt.Sprintf("mcppool: tool returned unstructured text: %q", e.Text)
}

// DecodeResult decodes a tool call result into out. Precedence follows the
// protocol: the structured-content field when the server populates it, then
// the first text content item parsed as JSON. Text that is not valid JSON
// yields an UnstructuredResultError carrying the raw text.
func DecodeResult(res *mcp.CallToolResult, out any) error {
	if res == nil {
		return errors.New("mcppool: nil tool result")
	}
	if res.IsError {
		return errors.Newf("mcppool: tool reported error: %s", firstText(res))
	}
	if res.StructuredContent != nil {
		raw, err := json.Marshal(res.StructuredContent)
		if err != nil {
			return errors.Wrap(err, "mcppool: encode structured content")
		}
		return errors.Wrap(json.Unmarshal(raw, out), "mcppool: decode structured content")
	}
	text := firstText(res)
	if text == "" {
		return errors.New("mcppool: empty tool result")
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return &UnstructuredResultError{Text: text}
	}
	return nil
}

func firstText(res *mcp.CallToolResult) string {
	for _, content := range res.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
