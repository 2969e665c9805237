package main

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelbrown/pairpad/internal/sandbox"
)

type stubSandbox struct {
	res *sandbox.Result
	got sandbox.Request
}

func (s *stubSandbox) Execute(_ context.Context, req sandbox.Request) *sandbox.Result {
	s.got = req
	return s.res
}

func (s *stubSandbox) Languages() []string { return []string{"python"} }

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = "code_run"
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestHandleCodeRun(t *testing.T) {
	sb := &stubSandbox{res: &sandbox.Result{Stdout: "4\n"}}
	res, err := handleCodeRun(sb)(context.Background(), callRequest(map[string]any{
		"language": "python",
		"code":     "print(2+2)",
		"stdin":    "x",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "4\n", resultText(t, res))
	assert.Equal(t, sandbox.Request{Language: "python", Source: "print(2+2)", Stdin: "x"}, sb.got)
}

func TestHandleCodeRunMissingArgs(t *testing.T) {
	res, err := handleCodeRun(&stubSandbox{})(context.Background(), callRequest(map[string]any{"language": "python"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "required")
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		name string
		res  sandbox.Result
		want string
	}{
		{
			name: "unsupported",
			res:  sandbox.Result{Failure: sandbox.FailureUnsupportedLanguage, Message: sandbox.MessageUnsupported},
			want: "error: Language not supported yet",
		},
		{
			name: "stderr and exit code",
			res:  sandbox.Result{Stdout: "a", Stderr: "boom", ExitCode: 1},
			want: "a\nSTDERR:\nboom\nexit code: 1",
		},
		{
			name: "timeout",
			res:  sandbox.Result{Stdout: "partial", Failure: sandbox.FailureTimeout, Message: "execution timed out after 1s", ExitCode: -1},
			want: "partial\ntimeout: execution timed out after 1s",
		},
		{
			name: "truncated",
			res:  sandbox.Result{Stdout: "abc", Truncated: true},
			want: "abc\n... (output truncated)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatResult(&tt.res))
		})
	}

	long := formatResult(&sandbox.Result{Stdout: strings.Repeat("x", 5000)})
	assert.True(t, strings.HasSuffix(long, "(output truncated)"))
	assert.Len(t, long, maxToolOutput+len("\n... (output truncated)"))
}

func TestFormatResultKeepsRunesWhole(t *testing.T) {
	// "é" is two bytes; an odd prefix puts the cap inside one.
	text := formatResult(&sandbox.Result{Stdout: "x" + strings.Repeat("é", maxToolOutput)})
	body := strings.TrimSuffix(text, "\n... (output truncated)")

	assert.True(t, utf8.ValidString(text))
	assert.Len(t, body, maxToolOutput-1)
}
