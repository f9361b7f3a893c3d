package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/peerfuse/internal/assist"
	"github.com/kalambet/peerfuse/internal/matching"
	"github.com/kalambet/peerfuse/internal/profile"
)

// MCPDeps holds dependencies for the MCP server. User names whose profile
// the tools act on.
type MCPDeps struct {
	Directory *profile.Manager
	Assistant *assist.Assistant
	Weights   matching.Weights
	TopN      int
	User      string
}

func (d *MCPDeps) defaults() {
	if d.Weights == (matching.Weights{}) {
		d.Weights = matching.DefaultWeights
	}
	if d.TopN <= 0 {
		d.TopN = matching.DefaultTopN
	}
	if d.Assistant == nil {
		d.Assistant = assist.New(nil, assist.Options{})
	}
}

// NewMCPServer creates an MCP server with all peerfuse tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	deps.defaults()

	s := server.NewMCPServer(
		"peerfuse",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("peerfuse finds compatible study partners and generates study material."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("find_matches",
			mcp.WithDescription("Rank other students against the current user's profile and return the best study partners."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of matches (default 3)")),
			mcp.WithBoolean("all", mcp.Description("Include the full ranking, zero scores included")),
		),
		mcpFindMatches(deps),
	)

	s.AddTool(
		mcp.NewTool("score_pair",
			mcp.WithDescription("Score two students against each other and itemize the reasons."),
			mcp.WithString("target", mcp.Description("Name of the student looking for a partner"), mcp.Required()),
			mcp.WithString("candidate", mcp.Description("Name of the potential partner"), mcp.Required()),
		),
		mcpScorePair(deps),
	)

	s.AddTool(
		mcp.NewTool("set_profile_field",
			mcp.WithDescription("Update one field of the current user's profile. List fields take comma-separated values."),
			mcp.WithString("key", mcp.Description("Profile field (e.g. strengths, availability, preferredMode)"), mcp.Required()),
			mcp.WithString("value", mcp.Description("Value to set"), mcp.Required()),
		),
		mcpSetProfileField(deps),
	)

	s.AddTool(
		mcp.NewTool("explain_match",
			mcp.WithDescription("Explain in two sentences why the current user and a peer would study well together."),
			mcp.WithString("peer", mcp.Description("Name of the matched peer"), mcp.Required()),
		),
		mcpExplainMatch(deps),
	)

	s.AddTool(
		mcp.NewTool("study_notes",
			mcp.WithDescription("Write beginner-friendly bullet notes on a topic."),
			mcp.WithString("topic", mcp.Description("Topic or study material"), mcp.Required()),
		),
		mcpStudyNotes(deps),
	)

	s.AddTool(
		mcp.NewTool("study_flashcards",
			mcp.WithDescription("Create question and answer flashcards on a topic."),
			mcp.WithString("topic", mcp.Description("Topic or study material"), mcp.Required()),
		),
		mcpStudyFlashcards(deps),
	)

	s.AddTool(
		mcp.NewTool("study_quiz",
			mcp.WithDescription("Create a three-question quiz (easy, medium, hard) on a topic."),
			mcp.WithString("topic", mcp.Description("Topic or study material"), mcp.Required()),
		),
		mcpStudyQuiz(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://profile",
			"User Profile",
			mcp.WithResourceDescription("Current user's study profile as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	return s
}

func mcpFindMatches(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := mcpCurrentProfile(ctx, deps)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		candidates, err := deps.Directory.Snapshot(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load users: %v", err)), nil
		}

		limit := req.GetInt("limit", deps.TopN)
		if limit <= 0 {
			limit = deps.TopN
		}
		if limit > maxMatchLimit {
			limit = maxMatchLimit
		}

		ranked := deps.Weights.Rank(target, candidates)
		resp := MatchResponse{
			Target:     target,
			Candidates: len(ranked),
			Matches:    matching.Top(ranked, limit),
		}
		if req.GetBool("all", false) {
			resp.Ranking = ranked
		}
		switch {
		case len(ranked) == 0:
			resp.Message = msgNoCandidates
		case len(resp.Matches) == 0:
			resp.Message = msgNoGoodMatch
		}
		return mcpJSON(resp)
	}
}

func mcpScorePair(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		targetName, err := req.RequireString("target")
		if err != nil {
			return mcpError("target is required"), nil
		}
		candidateName, err := req.RequireString("candidate")
		if err != nil {
			return mcpError("candidate is required"), nil
		}

		target, found, err := findCandidate(ctx, deps.Directory, targetName)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load users: %v", err)), nil
		}
		if !found {
			return mcpError(fmt.Sprintf("no user named %s", targetName)), nil
		}
		candidate, found, err := findCandidate(ctx, deps.Directory, candidateName)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load users: %v", err)), nil
		}
		if !found {
			return mcpError(fmt.Sprintf("no user named %s", candidateName)), nil
		}
		return mcpJSON(deps.Weights.ScoreDetails(target, candidate))
	}
}

func mcpSetProfileField(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.User == "" {
			return mcpError(errNoMCPUser.Error()), nil
		}
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}
		if _, ok := profile.CanonicalKey(key); !ok {
			return mcpError(fmt.Sprintf("unknown profile field %q", key)), nil
		}

		if _, err := patchProfile(ctx, deps.Directory, deps.User, profile.Raw{key: value}); err != nil {
			return mcpError(fmt.Sprintf("failed to set %s: %v", key, err)), nil
		}
		return mcpText(fmt.Sprintf("Set %s = %s", key, value)), nil
	}
}

func mcpExplainMatch(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		peerName, err := req.RequireString("peer")
		if err != nil {
			return mcpError("peer is required"), nil
		}
		target, err := mcpCurrentProfile(ctx, deps)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		peer, found, err := findCandidate(ctx, deps.Directory, peerName)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load users: %v", err)), nil
		}
		if !found {
			return mcpError(fmt.Sprintf("no user named %s", peerName)), nil
		}
		text, err := deps.Assistant.ExplainMatch(ctx, target, peer)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(text), nil
	}
}

func mcpStudyNotes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		topic, err := req.RequireString("topic")
		if err != nil {
			return mcpError("topic is required"), nil
		}
		notes, err := deps.Assistant.Notes(ctx, topic)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(notes), nil
	}
}

func mcpStudyFlashcards(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		topic, err := req.RequireString("topic")
		if err != nil {
			return mcpError("topic is required"), nil
		}
		cards, err := deps.Assistant.Flashcards(ctx, topic)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		var sb strings.Builder
		for i, c := range cards {
			if i > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "Q: %s\nA: %s\n", c.Question, c.Answer)
		}
		return mcpText(sb.String()), nil
	}
}

func mcpStudyQuiz(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		topic, err := req.RequireString("topic")
		if err != nil {
			return mcpError("topic is required"), nil
		}
		questions, err := deps.Assistant.Quiz(ctx, topic)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		var sb strings.Builder
		for _, q := range questions {
			fmt.Fprintf(&sb, "[%s] Q: %s\nA: %s\n", q.Level, q.Question, q.Answer)
		}
		return mcpText(sb.String()), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		p, err := mcpCurrentProfile(ctx, deps)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

var errNoMCPUser = errors.New("no user configured; issue a token with `peerfuse token issue`")

func mcpCurrentProfile(ctx context.Context, deps MCPDeps) (profile.Profile, error) {
	if deps.User == "" {
		return profile.Profile{}, errNoMCPUser
	}
	p, found, err := deps.Directory.Load(ctx, deps.User)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("failed to load profile: %w", err)
	}
	if !found {
		return profile.Profile{}, fmt.Errorf("no profile saved for %s; set fields with set_profile_field", deps.User)
	}
	p.Name = deps.User
	return p, nil
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
