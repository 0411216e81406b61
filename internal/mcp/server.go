// Package mcp is a stdio MCP adapter that forwards tool calls to the HTTP
// understanding server.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const protocolVersion = "2024-11-05"

const maxLineBytes = 1024 * 1024

// Options configures a Server. UserID and APIKey are forwarded as the
// X-User-ID and bearer headers when set.
type Options struct {
	ServerURL string
	UserID    string
	APIKey    string
	Timeout   time.Duration
	Version   string
	Logger    *slog.Logger
}

// Server implements an MCP stdio server that delegates to the HTTP API.
type Server struct {
	serverURL string
	userID    string
	apiKey    string
	version   string
	client    *http.Client
	logger    *slog.Logger
}

func NewServer(opts Options) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		serverURL: strings.TrimRight(opts.ServerURL, "/"),
		userID:    opts.UserID,
		apiKey:    opts.APIKey,
		version:   opts.Version,
		client:    &http.Client{Timeout: opts.Timeout},
		logger:    opts.Logger,
	}
}

// Run reads newline-delimited requests from in and writes responses to out
// until in is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if err := enc.Encode(errorResponse(nil, codeParseError, "parse error: "+err.Error())); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp == nil {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	return scanner.Err()
}

func (s *Server) handleRequest(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: InitializeResult{
				ProtocolVersion: protocolVersion,
				Capabilities:    ServerCapabilities{Tools: &ToolCapabilities{}},
				ServerInfo:      ServerInfo{Name: "understanding", Version: s.version},
			},
		}
	case "notifications/initialized", "initialized":
		return nil
	case "tools/list":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: ToolsListResult{Tools: ToolDefinitions()}}
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]string{}}
	}
	if req.ID == nil {
		return nil
	}
	return errorResponse(req.ID, codeMethodNotFound, "method not found: "+req.Method)
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "invalid params: "+err.Error())
	}

	text, isError := s.dispatchTool(ctx, params.Name, params.Arguments)
	if isError {
		s.logger.Warn("tool call failed", "tool", params.Name, "error", text)
	}
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: CallToolResult{
			Content: []ContentBlock{{Type: "text", Text: text}},
			IsError: isError,
		},
	}
}

func (s *Server) dispatchTool(ctx context.Context, name string, args map[string]any) (string, bool) {
	switch name {
	case "handle_utterance":
		options := map[string]any{
			"topK": int(getFloat(args, "topK", 0)),
			"plan": getBool(args, "plan", false),
		}
		if tz := getString(args, "userTimeZone"); tz != "" {
			options["userTimeZone"] = tz
		}
		if kinds, ok := args["kinds"]; ok {
			options["kindsOverride"] = kinds
		}
		return s.post(ctx, "/agent/utterance", map[string]any{"text": args["text"], "options": options})
	case "memory_search":
		return s.post(ctx, "/memory/search", map[string]any{
			"query": args["query"],
			"kinds": args["kinds"],
			"topK":  int(getFloat(args, "topK", 5)),
		})
	case "memory_upsert":
		return s.post(ctx, "/memory/upsert", map[string]any{
			"id":   args["id"],
			"kind": getString(args, "kind"),
			"text": args["text"],
		})
	case "summarize_intent":
		return s.post(ctx, "/intent/summary", map[string]any{"intent": map[string]any{
			"label":            args["label"],
			"confidence":       getFloat(args, "confidence", 0),
			"secondBest":       getString(args, "secondBest"),
			"secondConfidence": getFloat(args, "secondConfidence", 0),
		}})
	case "context_register":
		return s.post(ctx, "/context/register", map[string]any{
			"entryId":   args["entryId"],
			"entryType": getString(args, "entryType"),
			"refresh":   getBool(args, "refresh", false),
		})
	}
	return fmt.Sprintf("unknown tool: %s", name), true
}

// post sends body to path and returns the response body; statuses of 400
// and above are tool errors.
func (s *Server) post(ctx context.Context, path string, body any) (string, bool) {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Sprintf("marshal error: %s", err), true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Sprintf("request error: %s", err), true
	}
	req.Header.Set("Content-Type", "application/json")
	if s.userID != "" {
		req.Header.Set("X-User-ID", s.userID)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Sprintf("HTTP error: %s", err), true
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("read error: %s", err), true
	}
	return string(respBody), resp.StatusCode >= 400
}

func errorResponse(id any, code int, message string) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
}

func getFloat(args map[string]any, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return fallback
}

func getBool(args map[string]any, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}

func getString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}
