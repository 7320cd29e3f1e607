package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/techmad220/claude-code-mcp/internal/claude"
	ccmcp "github.com/techmad220/claude-code-mcp/internal/mcp"
	"github.com/techmad220/claude-code-mcp/internal/parse"
	"github.com/techmad220/claude-code-mcp/internal/registry"
	"github.com/techmad220/claude-code-mcp/internal/scan"
	"github.com/techmad220/claude-code-mcp/internal/session"
	"github.com/techmad220/claude-code-mcp/internal/store"
	"github.com/techmad220/claude-code-mcp/internal/ui"
)

// Set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func buildVersion() string {
	if commit == "none" {
		return version
	}
	return fmt.Sprintf("%s (%s, %s)", version, commit, date)
}

// rootOverrides replaces the configured archive roots for one invocation.
var rootOverrides []string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var noColor, verbose bool

	rootCmd := &cobra.Command{
		Use:   "claude-code-mcp",
		Short: "Search and summarize Claude Code sessions over MCP",
		Long: "An MCP server that lets a chat client list, search, read and summarize the session " +
			"transcripts Claude Code keeps on this machine. Run without a command to serve over stdio.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.Init(noColor, verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	rootCmd.Version = buildVersion()
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging on stderr")
	rootCmd.PersistentFlags().StringArrayVar(&rootOverrides, "root", nil, "Archive root to scan instead of the configured ones (repeatable)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "session", Title: "Session Commands:"},
		&cobra.Group{ID: "config", Title: "Configuration:"},
	)

	for _, c := range []*cobra.Command{serveCmd(), initCmd(), doctorCmd()} {
		c.GroupID = "core"
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{listCmd(), searchCmd(), showCmd(), contextCmd(), resumeCmd()} {
		c.GroupID = "session"
		rootCmd.AddCommand(c)
	}
	configC := configCmd()
	configC.GroupID = "config"
	rootCmd.AddCommand(configC)
	rootCmd.AddCommand(completionCmd())

	return rootCmd
}

func loadStore() (*store.Store, error) {
	s, err := store.Load(store.Home())
	if err != nil {
		return nil, fmt.Errorf("cannot load config (fix it or run 'claude-code-mcp init --force'): %w", err)
	}
	return s, nil
}

// newService wires the scanner, parser and registry from the loaded config.
func newService(cfg store.Config, overrides []string) *registry.Service {
	if len(overrides) > 0 {
		cfg.Scan.Roots = overrides
	}
	reg := registry.New(
		scan.New(cfg.Roots(), cfg.Scan.Options),
		parse.New(cfg.ParseOptions()),
		cfg.RegistryOptions(),
		ui.Logger,
	)
	return registry.NewService(reg, cfg.ServiceOptions())
}

func openService() (*store.Store, *registry.Service, error) {
	s, err := loadStore()
	if err != nil {
		return nil, nil, err
	}
	return s, newService(s.Config, rootOverrides), nil
}

// indexing shows a spinner while the first query builds the index.
func indexing[T any](fn func() (T, error)) (T, error) {
	if !ui.Interactive() {
		return fn()
	}
	sp := ui.NewSpinner("Indexing sessions...")
	defer sp.Stop()
	return fn()
}

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, svc, err := openService()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := s.Config
	if len(rootOverrides) > 0 {
		cfg.Scan.Roots = rootOverrides
	}
	ui.Logger.Info("serving over stdio", "version", version, "roots", strings.Join(cfg.Roots(), ","))

	server := ccmcp.NewServer(svc, version, ui.Logger)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: "Start the Model Context Protocol server on stdin/stdout. This is what an MCP client " +
			"launches; it is also the default when no command is given. Logs go to stderr.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Write a default config.yaml",
		Long:    "Create the config home (~/.claude-code-mcp by default, or $CLAUDE_CODE_MCP_HOME) with a config.yaml holding every default. The server runs fine without one.",
		Example: "  claude-code-mcp init\n  claude-code-mcp init --force",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := store.Home()
			err := store.Init(home, force)
			if err != nil && !force && ui.Interactive() {
				if _, statErr := os.Stat(filepath.Join(home, "config.yaml")); statErr == nil {
					ok, cerr := ui.Confirm("config.yaml already exists. Overwrite it with defaults?")
					if cerr != nil {
						return cerr
					}
					if !ok {
						ui.EmptyState("Left the existing config alone.")
						return nil
					}
					err = store.Init(home, true)
				}
			}
			if err != nil {
				return err
			}
			ui.Success("Config initialized")
			ui.Detail("Home:", home)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config.yaml without asking")
	return cmd
}

func listCmd() *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List recent sessions, most recent first",
		Example: "  claude-code-mcp list\n  claude-code-mcp list -n 50 --json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := openService()
			if err != nil {
				return err
			}
			sums, err := indexing(func() ([]session.Summary, error) {
				return svc.ListSessions(limitFlag(cmd, limit))
			})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(sums)
			}
			if len(sums) == 0 {
				ui.EmptyState("No sessions found. Check the archive roots with 'claude-code-mcp doctor'.")
				return nil
			}
			var rows [][]string
			for _, s := range sums {
				rows = append(rows, []string{s.ID, formatWhen(s.LastSeen), fmt.Sprint(s.MessageCount), session.Truncate(s.Preview, 60)})
			}
			ui.Table(os.Stdout, []string{"ID", "LAST ACTIVE", "MSGS", "PREVIEW"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum sessions to show (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func searchCmd() *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "search <query>",
		Short:   "Fuzzy-search sessions",
		Example: "  claude-code-mcp search login redirect\n  claude-code-mcp search \"rate limit\" -n 3",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := openService()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			results, err := indexing(func() ([]session.SearchResult, error) {
				return svc.SearchSessions(query, limitFlag(cmd, limit))
			})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(results)
			}
			if len(results) == 0 {
				ui.EmptyState(fmt.Sprintf("No sessions match %q.", query))
				return nil
			}
			var rows [][]string
			for _, r := range results {
				rows = append(rows, []string{r.ID, fmt.Sprintf("%.2f", r.Score), formatWhen(r.Summary.LastSeen), session.Truncate(r.Snippet, 70)})
			}
			ui.Table(os.Stdout, []string{"ID", "SCORE", "LAST ACTIVE", "SNIPPET"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum results (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func showCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a full session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := openService()
			if err != nil {
				return err
			}
			sess, err := indexing(func() (session.Session, error) {
				return svc.GetSession(args[0])
			})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(sess)
			}
			printTranscript(sess)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of text")
	return cmd
}

func printTranscript(sess session.Session) {
	ui.SectionHeader(sess.ID)
	if sess.ProjectPath != "" {
		ui.KeyValue("Project:", sess.ProjectPath)
	}
	ui.KeyValue("Active: ", fmt.Sprintf("%s → %s", formatWhen(sess.FirstSeen), formatWhen(sess.LastSeen)))
	fmt.Println()
	for _, m := range sess.Messages {
		label := roleLabel(m.Role)
		if !m.Timestamp.IsZero() {
			label += " " + ui.Dim(m.Timestamp.Local().Format("15:04:05"))
		}
		fmt.Println(label)
		fmt.Println(m.Content)
		fmt.Println()
	}
}

func roleLabel(r session.Role) string {
	switch r {
	case session.RoleHuman:
		return ui.Accent(string(r))
	case session.RoleAssistant:
		return ui.Green(string(r))
	default:
		return ui.Yellow(string(r))
	}
}

func contextCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "context <session-id>",
		Short: "Summarize a session: request, stats, files and key terms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := openService()
			if err != nil {
				return err
			}
			c, err := indexing(func() (session.ContextSummary, error) {
				return svc.GetSessionContext(args[0])
			})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(c)
			}
			ui.RenderMarkdown(os.Stdout, contextMarkdown(c))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of rendered markdown")
	return cmd
}

// contextMarkdown lays a context summary out as a markdown document.
func contextMarkdown(c session.ContextSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Session %s\n\n", c.ID)
	if c.ProjectPath != "" {
		fmt.Fprintf(&b, "**Project:** `%s`\n\n", c.ProjectPath)
	}

	b.WriteString("## Initial request\n\n")
	if c.InitialRequest == "" {
		b.WriteString("_none_\n\n")
	} else {
		for _, l := range strings.Split(c.InitialRequest, "\n") {
			fmt.Fprintf(&b, "> %s\n", l)
		}
		b.WriteString("\n")
	}

	st := c.Stats
	b.WriteString("## Stats\n\n")
	fmt.Fprintf(&b, "- Messages: %d (%d human, %d assistant)\n", st.MessageCount, st.HumanMessages, st.AssistantMessages)
	if !st.FirstSeen.IsZero() {
		fmt.Fprintf(&b, "- First seen: %s\n", formatWhen(st.FirstSeen))
		fmt.Fprintf(&b, "- Last seen: %s\n", formatWhen(st.LastSeen))
		fmt.Fprintf(&b, "- Duration: %s\n", time.Duration(st.DurationSeconds)*time.Second)
	}
	b.WriteString("\n")

	if len(c.FilesMentioned) > 0 {
		b.WriteString("## Files mentioned\n\n")
		for _, f := range c.FilesMentioned {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
		b.WriteString("\n")
	}
	if len(c.KeyTerms) > 0 {
		b.WriteString("## Key terms\n\n")
		b.WriteString(strings.Join(c.KeyTerms, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

func resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Reopen a session in Claude Code",
		Long:  "Run 'claude --resume <id>' from the session's project directory when it still exists.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, svc, err := openService()
			if err != nil {
				return err
			}
			var sp *ui.Spinner
			if ui.Interactive() {
				sp = ui.NewSpinner("Indexing sessions...")
			}
			stopSpinner := func() {
				if sp != nil {
					sp.Stop()
				}
			}
			defer stopSpinner()

			sum, err := svc.Registry().Summary(args[0])
			if err != nil {
				return err
			}
			err = claude.Resume(claude.ResumeOptions{
				SessionID:  sum.ID,
				WorkingDir: sum.ProjectPath,
				ClaudePath: s.Config.Claude.Path,
				OnStart: func() {
					stopSpinner()
					ui.Info(fmt.Sprintf("Resuming %s %s", ui.Bold(sum.ID), ui.Dim(session.Truncate(sum.Preview, 60))))
				},
			})
			if errors.Is(err, claude.ErrInterrupted) {
				return nil
			}
			return err
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and edit configuration",
	}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configSetCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(s.Config)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  "Set a configuration value. Valid keys: " + strings.Join(store.ConfigKeys(), ", ") + ".",
		Example: `  claude-code-mcp config set claude.path /usr/local/bin/claude
  claude-code-mcp config set scan.roots ~/.claude/projects,/mnt/old/projects
  claude-code-mcp config set search.max_limit 25`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadStore()
			if err != nil {
				return err
			}
			if err := s.SetConfigValue(args[0], args[1]); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Set %s = %s", args[0], args[1]))
			return nil
		},
	}
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check config, archive roots and the Claude Code CLI",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := store.Home()
			ui.CommandBanner("DOCTOR", "health check")

			issues := store.CheckHealth(home)

			s, err := store.Load(home)
			if err == nil {
				if len(rootOverrides) > 0 {
					s.Config.Scan.Roots = rootOverrides
				}
				if v, err := claude.Version(s.Config.Claude.Path); err != nil {
					issues = append(issues, store.Issue{Severity: "warning", Message: fmt.Sprintf("Claude Code: %v", err)})
				} else {
					ui.Detail("Claude Code:", v)
				}

				svc := newService(s.Config, nil)
				st, _ := indexing(func() (registry.BuildStats, error) {
					return svc.Registry().Stats(), nil
				})
				printBuildStats(st)
				if st.Files > 0 && st.Indexed == 0 {
					issues = append(issues, store.Issue{Severity: "warning", Message: fmt.Sprintf("%d files found but none parsed as a session", st.Files)})
				}
			}

			if len(issues) == 0 {
				ui.Success("Everything looks good")
				return nil
			}

			hasError := false
			for _, issue := range issues {
				if issue.Severity == "error" {
					ui.Error(fmt.Sprintf("[ERR]  %s", issue.Message))
					hasError = true
				} else {
					ui.Warning(fmt.Sprintf("[WARN] %s", issue.Message))
				}
			}

			if hasError {
				os.Exit(2)
			}
			os.Exit(1)
			return nil
		},
	}
}

func printBuildStats(st registry.BuildStats) {
	ui.Detail("Files:      ", fmt.Sprint(st.Files))
	ui.Detail("Indexed:    ", fmt.Sprintf("%d (%d without messages)", st.Indexed, st.Empty))
	ui.Detail("Collisions: ", fmt.Sprint(st.Collisions))
	readErrors := fmt.Sprint(st.ReadErrors)
	if st.ReadErrors > 0 {
		readErrors = ui.Red(readErrors)
	}
	ui.Detail("Read errors:", readErrors)
	kinds := make([]string, 0, len(st.Skipped))
	for k := range st.Skipped {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		ui.Detail("Skipped:    ", fmt.Sprintf("%d %s", st.Skipped[k], k))
	}
	ui.Detail("Index time: ", st.Duration.Round(time.Millisecond).String())
}

func completionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish]",
		Short:     "Generate shell completion scripts",
		Example:   "  claude-code-mcp completion zsh > ~/.zfunc/_claude-code-mcp",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			default:
				return fmt.Errorf("unsupported shell: %s (use bash, zsh, or fish)", args[0])
			}
		},
	}
}

// limitFlag maps an unset --limit to nil so the configured default applies.
func limitFlag(cmd *cobra.Command, limit int) *int {
	if !cmd.Flags().Changed("limit") {
		return nil
	}
	return &limit
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
