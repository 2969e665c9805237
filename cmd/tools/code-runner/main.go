package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/michaelbrown/pairpad/internal/config"
	"github.com/michaelbrown/pairpad/internal/logging"
	"github.com/michaelbrown/pairpad/internal/sandbox"
)

const maxToolOutput = 4000

func main() {
	cfg, err := config.Load(os.Getenv("PAIRPAD_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol, so logs go to stderr only.
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sb, err := sandbox.New(cfg.Sandbox.Backend, sandbox.FromConfig(cfg.Sandbox), sandbox.WithLogger(logger))
	if err != nil {
		logger.Fatal("creating sandbox", zap.Error(err))
	}

	s := server.NewMCPServer("pairpad-code-runner", "0.1.0")
	s.AddTool(codeRunTool(sb.Languages()), handleCodeRun(sb))

	if err := server.ServeStdio(s); err != nil {
		logger.Error("server error", zap.Error(err))
	}
}

func codeRunTool(langs []string) mcp.Tool {
	return mcp.Tool{
		Name:        "code_run",
		Description: fmt.Sprintf("Execute code in a resource-limited sandbox. Supported languages: %s.", strings.Join(langs, ", ")),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"language": map[string]any{
					"type":        "string",
					"description": "Programming language",
					"enum":        langs,
				},
				"code": map[string]any{
					"type":        "string",
					"description": "Source code to execute",
				},
				"stdin": map[string]any{
					"type":        "string",
					"description": "Standard input to provide to the program (optional)",
				},
			},
			Required: []string{"language", "code"},
		},
	}
}

func handleCodeRun(sb sandbox.Sandbox) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		if args == nil {
			return errResult("error: invalid arguments"), nil
		}

		language, _ := args["language"].(string)
		code, _ := args["code"].(string)
		stdin, _ := args["stdin"].(string)

		if language == "" || code == "" {
			return errResult("error: 'language' and 'code' are required"), nil
		}

		res := sb.Execute(ctx, sandbox.Request{Language: language, Source: code, Stdin: stdin})
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: formatResult(res)}},
			IsError: res.Failure != sandbox.FailureNone || res.ExitCode != 0,
		}, nil
	}
}

func formatResult(res *sandbox.Result) string {
	if res.Failure == sandbox.FailureUnsupportedLanguage {
		return "error: " + res.Message
	}

	var output strings.Builder
	if res.Stdout != "" {
		output.WriteString(res.Stdout)
	}
	if res.Stderr != "" {
		if output.Len() > 0 {
			output.WriteString("\n")
		}
		output.WriteString("STDERR:\n" + res.Stderr)
	}
	if res.Failure != sandbox.FailureNone {
		output.WriteString(fmt.Sprintf("\n%s: %s", res.Failure, res.Message))
	} else if res.ExitCode != 0 {
		output.WriteString(fmt.Sprintf("\nexit code: %d", res.ExitCode))
	}

	text := output.String()
	if len(text) > maxToolOutput || res.Truncated {
		if len(text) > maxToolOutput {
			n := maxToolOutput
			for n > 0 && !utf8.RuneStart(text[n]) {
				n--
			}
			text = text[:n]
		}
		text += "\n... (output truncated)"
	}
	return text
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
