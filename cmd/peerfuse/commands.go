package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/peerfuse/internal/api"
	"github.com/kalambet/peerfuse/internal/assist"
	"github.com/kalambet/peerfuse/internal/config"
	"github.com/kalambet/peerfuse/internal/identity"
	"github.com/kalambet/peerfuse/internal/matching"
	"github.com/kalambet/peerfuse/internal/profile"
	"github.com/kalambet/peerfuse/internal/storage"
)

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your study profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/profile")
		if err != nil {
			return err
		}

		var p profile.Profile
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		return printJSONIndent(cmd.OutOrStdout(), p)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a profile field",
	Long: `Set one profile field. List fields (strengths, weaknesses) take
comma-separated values.

Examples:
  peerfuse profile set availability evenings
  peerfuse profile set strengths "calculus, physics"
  peerfuse profile set mode online`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if _, ok := profile.CanonicalKey(key); !ok {
			return fmt.Errorf("unknown profile field %q", key)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/profile", map[string]any{key: value})
		if err != nil {
			return err
		}

		var p profile.Profile
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var profileEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open your profile JSON in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		// A missing profile starts from an empty template.
		current := profile.Normalize(nil, "")
		current.Name = ""
		resp, err := client.get(cmd.Context(), "/profile")
		if err != nil {
			return err
		}
		if resp.StatusCode == 404 {
			resp.Body.Close()
		} else if err := decodeJSON(resp, &current); err != nil {
			return err
		}

		data, err := json.MarshalIndent(current, "", "  ")
		if err != nil {
			return err
		}

		tmpFile, err := os.CreateTemp("", "peerfuse-profile-*.json")
		if err != nil {
			return fmt.Errorf("creating temp file: %w", err)
		}
		tmpPath := tmpFile.Name()
		defer os.Remove(tmpPath)

		if _, err := tmpFile.Write(data); err != nil {
			tmpFile.Close()
			return err
		}
		tmpFile.Close()

		editorCmd := exec.Command(editor, tmpPath)
		editorCmd.Stdin = os.Stdin
		editorCmd.Stdout = os.Stdout
		editorCmd.Stderr = os.Stderr
		if err := editorCmd.Run(); err != nil {
			return fmt.Errorf("editor exited with error: %w", err)
		}

		edited, err := os.ReadFile(tmpPath)
		if err != nil {
			return err
		}

		var fields map[string]any
		if err := json.Unmarshal(edited, &fields); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}

		putResp, err := client.put(cmd.Context(), "/profile", fields)
		if err != nil {
			return err
		}
		var saved profile.Profile
		if err := decodeJSON(putResp, &saved); err != nil {
			return err
		}

		printSuccess("Profile updated")
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileEditCmd)
}

// --- users ---

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List or add matching entries",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List everyone available for matching",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/users")
		if err != nil {
			return err
		}

		var result struct {
			Users []profile.Profile `json:"users"`
			Count int               `json:"count"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if result.Count == 0 {
			fmt.Fprintln(out, "No users yet.")
			return nil
		}
		for _, u := range result.Users {
			fmt.Fprintf(out, "%s  %s\n", colorize(colorCyan, u.Name), orDash(u.Availability))
		}
		return nil
	},
}

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a matching entry from flags",
	Long: `Add a matching entry. When signed in the entry is named after you and
also saved as your profile; otherwise a visitor name is assigned unless
--name is given.

Example:
  peerfuse users add --availability evenings --strengths "chemistry" --weaknesses "essay writing"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := profileFromFlags(cmd)
		if err != nil {
			return err
		}
		if len(raw) == 0 {
			return fmt.Errorf("at least one profile flag is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/users", raw)
		if err != nil {
			return err
		}
		var p profile.Profile
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		printSuccess("Added %s", p.Name)
		return nil
	},
}

// profileFlags maps CLI flags to canonical profile keys.
var profileFlags = []struct{ flag, key, usage string }{
	{"name", profile.KeyName, "display name (ignored when signed in)"},
	{"strengths", profile.KeyStrengths, "comma-separated strong subjects"},
	{"weaknesses", profile.KeyWeaknesses, "comma-separated weak subjects"},
	{"availability", profile.KeyAvailability, "when you can study"},
	{"mode", profile.KeyPreferredMode, "preferred mode (online, in-person)"},
	{"goal", profile.KeyPrimaryGoal, "primary goal"},
	{"frequency", profile.KeyPreferredFrequency, "preferred frequency"},
	{"partner", profile.KeyPartnerPreference, "partner preference"},
	{"session-length", profile.KeySessionLength, "preferred session length"},
	{"timezone", profile.KeyTimeZone, "time zone"},
	{"personality", profile.KeyStudyPersonality, "study personality"},
}

func addProfileFlags(cmd *cobra.Command) {
	for _, f := range profileFlags {
		cmd.Flags().String(f.flag, "", f.usage)
	}
}

func profileFromFlags(cmd *cobra.Command) (profile.Raw, error) {
	raw := profile.Raw{}
	for _, f := range profileFlags {
		if !cmd.Flags().Changed(f.flag) {
			continue
		}
		v, err := cmd.Flags().GetString(f.flag)
		if err != nil {
			return nil, err
		}
		raw[f.key] = v
	}
	return raw, nil
}

func init() {
	addProfileFlags(usersAddCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersAddCmd)
}

// --- match ---

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Find your best study partners",
	Long: `Rank everyone against your profile and show the best matches.

Signed-in users are matched with their saved profile. Guests pass their
profile with the same flags as "users add".

Examples:
  peerfuse match
  peerfuse match --limit 5 --all
  peerfuse match --next 2
  peerfuse match --availability evenings --weaknesses calculus`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		all, _ := cmd.Flags().GetBool("all")
		raw, err := profileFromFlags(cmd)
		if err != nil {
			return err
		}

		q := url.Values{}
		if limit > 0 {
			q.Set("limit", fmt.Sprint(limit))
		}
		if all {
			q.Set("all", "true")
		}
		if cmd.Flags().Changed("next") {
			next, _ := cmd.Flags().GetInt("next")
			q.Set("next", fmt.Sprint(next))
		}
		path := "/matches"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var body any
		if len(raw) > 0 {
			body = raw
		}
		resp, err := client.post(cmd.Context(), path, body)
		if err != nil {
			return err
		}

		var result api.MatchResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printMatchResponse(cmd.OutOrStdout(), result)
		return nil
	},
}

func printMatchResponse(w io.Writer, r api.MatchResponse) {
	if r.Current != nil {
		printMatch(w, fmt.Sprintf("Match %d of %d:", r.Current.Position, r.Current.Of), r.Current.Result)
		return
	}
	if r.Message != "" {
		fmt.Fprintln(w, r.Message)
	}
	for i, m := range r.Matches {
		if i > 0 {
			fmt.Fprintln(w)
		}
		printMatch(w, fmt.Sprintf("#%d", i+1), m)
	}
	if len(r.Ranking) > 0 {
		fmt.Fprintf(w, "\n%s\n", colorize(colorBold, "Full ranking:"))
		for i, m := range r.Ranking {
			fmt.Fprintf(w, "  %2d. %-20s %d\n", i+1, m.Candidate.Name, m.Score)
		}
	}
}

var scoreCmd = &cobra.Command{
	Use:   "score <name>",
	Short: "Show how your profile scores against one user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/matches/"+url.PathEscape(args[0])+"/score")
		if err != nil {
			return err
		}

		var result struct {
			Candidate profile.Profile  `json:"candidate"`
			Details   matching.Details `json:"details"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printMatch(cmd.OutOrStdout(), "Score vs", matching.Result{
			Candidate: result.Candidate,
			Score:     result.Details.Score,
			Reasons:   result.Details.Reasons,
		})
		return nil
	},
}

func init() {
	matchCmd.Flags().Int("limit", 0, "maximum number of matches (default from matching.top_n)")
	matchCmd.Flags().Bool("all", false, "also print the full ranking")
	matchCmd.Flags().Int("next", 0, "show only the ranked match at this position (0-based, wraps)")
	addProfileFlags(matchCmd)
}

// --- session ---

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Start, end and list study sessions",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start <peer>",
	Short: "Start a study session with a meeting link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/sessions", map[string]string{"peer": args[0]})
		if err != nil {
			return err
		}
		var s storage.Session
		if err := decodeJSON(resp, &s); err != nil {
			return err
		}

		printSuccess("Session %s started with %s", s.ID, s.Peer)
		fmt.Fprintf(cmd.OutOrStdout(), "Join: %s\n", s.MeetLink)
		return nil
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end <id>",
	Short: "End a study session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/sessions/"+url.PathEscape(args[0])+"/end", nil)
		if err != nil {
			return err
		}
		var s storage.Session
		if err := decodeJSON(resp, &s); err != nil {
			return err
		}

		printSuccess("Session %s ended", s.ID)
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/sessions?limit=%d", limit))
		if err != nil {
			return err
		}
		var result struct {
			Sessions []storage.Session `json:"sessions"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(result.Sessions) == 0 {
			fmt.Fprintln(out, "No sessions found.")
			return nil
		}
		for _, s := range result.Sessions {
			state := "active"
			if s.EndedAt != nil {
				state = "ended"
			}
			fmt.Fprintf(out, "%s  %s  %-15s %-7s %s\n",
				colorize(colorCyan, shortID(s.ID)),
				s.StartedAt.Local().Format("2006-01-02 15:04"),
				s.Peer,
				state,
				s.MeetLink,
			)
		}
		return nil
	},
}

func init() {
	sessionListCmd.Flags().Int("limit", 20, "maximum number of sessions to list")
	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionEndCmd)
	sessionCmd.AddCommand(sessionListCmd)
}

// --- feedback ---

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Rate study partners",
}

var feedbackGiveCmd = &cobra.Command{
	Use:   "give <peer> <rating 1-5>",
	Short: "Rate a study partner",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var rating int
		if _, err := fmt.Sscanf(args[1], "%d", &rating); err != nil {
			return fmt.Errorf("rating must be a number from 1 to 5")
		}
		comments, _ := cmd.Flags().GetString("comments")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/feedback", map[string]any{
			"peer":     args[0],
			"rating":   rating,
			"comments": comments,
		})
		if err != nil {
			return err
		}
		var fb storage.Feedback
		if err := decodeJSON(resp, &fb); err != nil {
			return err
		}

		printSuccess("Rated %s %d/5", fb.Peer, fb.Rating)
		return nil
	},
}

var feedbackListCmd = &cobra.Command{
	Use:   "list [peer]",
	Short: "List feedback, optionally for one peer",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/feedback"
		if len(args) == 1 {
			path += "?peer=" + url.QueryEscape(args[0])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var result struct {
			Feedback []storage.Feedback `json:"feedback"`
			Average  float64            `json:"average"`
			Ratings  int                `json:"ratings"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(result.Feedback) == 0 {
			fmt.Fprintln(out, "No feedback yet.")
			return nil
		}
		if len(args) == 1 {
			fmt.Fprintf(out, "%s %.1f/5 from %d rating(s)\n\n", colorize(colorBold, args[0]+":"), result.Average, result.Ratings)
		}
		for _, fb := range result.Feedback {
			fmt.Fprintf(out, "%s → %s  %s", fb.GivenBy, fb.Peer, strings.Repeat("★", fb.Rating))
			if fb.Comments != "" {
				fmt.Fprintf(out, "  %s", fb.Comments)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	feedbackGiveCmd.Flags().String("comments", "", "optional comments")
	feedbackCmd.AddCommand(feedbackGiveCmd)
	feedbackCmd.AddCommand(feedbackListCmd)
}

// --- study ---

var studyCmd = &cobra.Command{
	Use:   "study",
	Short: "Generate study material with the configured model",
}

var studyExplainCmd = &cobra.Command{
	Use:   "explain <peer>",
	Short: "Explain why you and a peer would study well together",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/study/explain", map[string]string{"peer": args[0]})
		if err != nil {
			return err
		}
		var result struct {
			Explanation string `json:"explanation"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Explanation)
		return nil
	},
}

var studyNotesCmd = &cobra.Command{
	Use:   "notes [topic]",
	Short: "Write bullet notes on a topic",
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, err := topicFromFlags(cmd, args)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/study/notes", map[string]string{"topic": topic})
		if err != nil {
			return err
		}
		var result struct {
			Notes string `json:"notes"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Notes)
		return nil
	},
}

var studyFlashcardsCmd = &cobra.Command{
	Use:   "flashcards [topic]",
	Short: "Create flashcards on a topic",
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, err := topicFromFlags(cmd, args)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/study/flashcards", map[string]string{"topic": topic})
		if err != nil {
			return err
		}
		var result struct {
			Cards []assist.Card `json:"cards"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for i, c := range result.Cards {
			fmt.Fprintf(out, "%s %s\n", colorize(colorBold, fmt.Sprintf("Q%d:", i+1)), c.Question)
			fmt.Fprintf(out, "%s %s\n\n", colorize(colorGreen, "A:"), c.Answer)
		}
		return nil
	},
}

var studyQuizCmd = &cobra.Command{
	Use:   "quiz [topic]",
	Short: "Create an easy, medium and hard question on a topic",
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, err := topicFromFlags(cmd, args)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/study/quiz", map[string]string{"topic": topic})
		if err != nil {
			return err
		}
		var result struct {
			Questions []assist.Question `json:"questions"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, q := range result.Questions {
			fmt.Fprintf(out, "%s %s\n", colorize(colorBold, "["+q.Level+"]"), q.Question)
			fmt.Fprintf(out, "%s %s\n\n", colorize(colorGreen, "A:"), q.Answer)
		}
		return nil
	},
}

func topicFromFlags(cmd *cobra.Command, args []string) (string, error) {
	pdfPath, _ := cmd.Flags().GetString("pdf")
	filePath, _ := cmd.Flags().GetString("file")
	return readTopic(pdfPath, filePath, args)
}

func init() {
	for _, c := range []*cobra.Command{studyNotesCmd, studyFlashcardsCmd, studyQuizCmd} {
		c.Flags().String("pdf", "", "read study material from a PDF")
		c.Flags().String("file", "", "read study material from a text file")
		studyCmd.AddCommand(c)
	}
	studyCmd.AddCommand(studyExplainCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- token ---

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the sign-in token",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <username>",
	Short: "Sign in as a user on this machine",
	Long: `Issue a signed token naming the user and save it for later commands.
With --print the token is written to stdout instead, for use by other
clients as "Authorization: Bearer <token>".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		printOnly, _ := cmd.Flags().GetBool("print")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		svc, err := identity.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if err != nil {
			return err
		}
		token, err := svc.Issue(args[0])
		if err != nil {
			return err
		}

		if printOnly {
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		}
		if err := config.SaveSessionToken(token); err != nil {
			return err
		}
		printSuccess("Signed in as %s", strings.TrimSpace(args[0]))
		return nil
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Sign out; later commands run as a guest",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SaveSessionToken(""); err != nil {
			return err
		}
		printSuccess("Signed out")
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().Bool("print", false, "print the token instead of saving it")
	tokenCmd.AddCommand(tokenIssueCmd)
	tokenCmd.AddCommand(tokenClearCmd)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
