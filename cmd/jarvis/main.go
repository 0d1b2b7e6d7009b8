package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/stellarlinkco/jarvis/internal/assistant"
	"github.com/stellarlinkco/jarvis/internal/config"
	"github.com/stellarlinkco/jarvis/internal/gateway"
	"github.com/stellarlinkco/jarvis/internal/logging"
	"github.com/stellarlinkco/jarvis/internal/proactive"
)

// RuntimeFactory opens the assistant runtime (replaced in tests).
type RuntimeFactory func(cfg *config.Config) (*assistant.Runtime, error)

var openRuntime RuntimeFactory = assistant.Open

// AgentOptions for running the agent with custom IO.
type AgentOptions struct {
	Message string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

const replHelp = `Commands:
  status        show session and memory statistics
  help          show this help
  exit | quit   end the session
Anything else is sent to the assistant.`

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jarvis",
		Short:         "jarvis - local-first personal AI assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var message string
	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the assistant in single message or REPL mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentWithOptions(cmd.Context(), AgentOptions{
				Message: message,
				Stdin:   cmd.InOrStdin(),
				Stdout:  cmd.OutOrStdout(),
				Stderr:  cmd.ErrOrStderr(),
			})
		},
	}
	agentCmd.Flags().StringVarP(&message, "message", "m", "", "Single message to send")

	gatewayCmd := &cobra.Command{
		Use:   "gateway",
		Short: "Start the gateway (chat channels + proactive engine)",
		RunE:  runGateway,
	}

	onboardCmd := &cobra.Command{
		Use:   "onboard",
		Short: "Initialize config and data directories",
		RunE:  runOnboard,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration, backend reachability and memory statistics",
		RunE:  runStatus,
	}

	exportCmd := &cobra.Command{
		Use:   "export [path]",
		Short: "Export facts, conversations and patterns to a JSON file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExport,
	}

	var confirm bool
	wipeCmd := &cobra.Command{
		Use:   "wipe",
		Short: "Erase all stored memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWipe(cmd, confirm)
		},
	}
	wipeCmd.Flags().BoolVar(&confirm, "confirm", false, "Really erase everything")

	root.AddCommand(agentCmd, gatewayCmd, onboardCmd, statusCmd, exportCmd, wipeCmd)
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadRuntime() (*config.Config, *assistant.Runtime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	rt, err := openRuntime(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, rt, nil
}

func runAgentWithOptions(ctx context.Context, opts AgentOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	stdin, stdout, stderr := opts.Stdin, opts.Stdout, opts.Stderr
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.Message != "" {
		logging.Discard()
	} else {
		logging.Setup(cfg.Log.Level, cfg.Log.Format, stderr)
	}

	rt, err := openRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if opts.Message != "" {
		fmt.Fprintln(stdout, rt.Assistant.Process(ctx, opts.Message).Text)
		return nil
	}

	var notices <-chan proactive.Notice
	if cfg.Proactive.Enabled {
		engine := proactive.New(rt.Memory, proactive.Options{
			Interval:    proactive.ParseInterval(cfg.Proactive.Interval),
			MorningHour: cfg.Proactive.MorningHour,
			Privacy:     rt.Memory.Privacy(),
		})
		if err := engine.Start(ctx); err != nil {
			fmt.Fprintf(stderr, "proactive engine disabled: %v\n", err)
		} else {
			defer engine.Stop()
			notices = engine.Notices()
		}
	}

	name := cfg.Agent.Name
	fmt.Fprintf(stdout, "%s online. Session %s\nType 'help' for commands, 'exit' to quit.\n", name, rt.Assistant.SessionID())

	scanner := bufio.NewScanner(stdin)
	for {
		printNotices(stdout, rt.Assistant, notices)
		fmt.Fprint(stdout, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "exit", "quit", "bye":
			fmt.Fprintln(stdout, "Goodbye.")
			return nil
		case "help":
			fmt.Fprintln(stdout, replHelp)
			continue
		case "status":
			st, err := rt.Assistant.Status(ctx)
			if err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				continue
			}
			printSessionStatus(stdout, st)
			continue
		}

		reply := rt.Assistant.Process(ctx, input)
		fmt.Fprintf(stdout, "%s: %s\n", name, reply.Text)
	}
	return scanner.Err()
}

type noticeDeliverer interface {
	Deliver(n proactive.Notice) string
}

// printNotices writes every notice already waiting, without blocking.
func printNotices(w io.Writer, a noticeDeliverer, notices <-chan proactive.Notice) {
	for {
		select {
		case n := <-notices:
			if text := a.Deliver(n); text != "" {
				fmt.Fprintf(w, "\n[%s] %s\n", n.Kind, text)
			}
		default:
			return
		}
	}
}

func printSessionStatus(w io.Writer, st assistant.Status) {
	privacy := "off"
	if st.Privacy {
		privacy = "on"
	}
	fmt.Fprintf(w, "Session: %s\n", st.SessionID)
	fmt.Fprintf(w, "Privacy mode: %s\n", privacy)
	fmt.Fprintf(w, "Facts: %s\n", humanize.Comma(int64(st.Counts.Facts)))
	fmt.Fprintf(w, "Conversations: %s\n", humanize.Comma(int64(st.Counts.Conversations)))
	fmt.Fprintf(w, "Patterns: %s\n", humanize.Comma(int64(st.Counts.Patterns)))
	fmt.Fprintf(w, "Episodes: %s\n", humanize.Comma(int64(st.Counts.Episodes)))
	fmt.Fprintf(w, "Reminders: %s\n", humanize.Comma(int64(st.Counts.Reminders)))
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())

	gw, err := gateway.NewWithOptions(cfg, gateway.Options{RuntimeFactory: gateway.RuntimeFactory(openRuntime)})
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	return gw.Run(cmd.Context())
}

func runOnboard(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(out, "Created config: %s\n", cfgPath)
	} else {
		fmt.Fprintf(out, "Config already exists: %s\n", cfgPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	for _, dir := range []string{config.DataDir(), cfg.NotesDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	fmt.Fprintf(out, "Data directory: %s\n", config.DataDir())
	fmt.Fprintf(out, "Notes directory: %s\n", cfg.NotesDir())
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Pull the models: ollama pull %s && ollama pull %s && ollama pull %s\n",
		cfg.Models.Fast, cfg.Models.Smart, cfg.Models.Embed)
	fmt.Fprintf(out, "  2. Or edit %s to use a cloud provider\n", cfgPath)
	fmt.Fprintln(out, "  3. Run 'jarvis agent -m \"Hello\"' to test")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(out, "Config: error (%v)\n", err)
		return nil
	}

	fmt.Fprintf(out, "Config: %s\n", config.ConfigPath())
	fmt.Fprintf(out, "Assistant: %s\n", cfg.Agent.Name)
	fmt.Fprintf(out, "Provider: %s\n", providerDisplay(cfg.Provider))
	fmt.Fprintf(out, "Models: fast=%s smart=%s embed=%s vision=%s\n",
		cfg.Models.Fast, cfg.Models.Smart, cfg.Models.Embed, cfg.Models.Vision)
	fmt.Fprintf(out, "Database: %s\n", cfg.DBPath())
	fmt.Fprintf(out, "Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Fprintf(out, "Proactive: enabled=%v interval=%s\n", cfg.Proactive.Enabled, cfg.Proactive.Interval)

	rt, err := openRuntime(cfg)
	if err != nil {
		fmt.Fprintf(out, "Backend: error (%v)\n", err)
		return nil
	}
	defer rt.Close()

	fmt.Fprintln(out, "Backend: "+pingBackend(cmd.Context(), rt))

	st, err := rt.Assistant.Status(cmd.Context())
	if err != nil {
		fmt.Fprintf(out, "Memory: error (%v)\n", err)
		return nil
	}
	printSessionStatus(out, st)
	return nil
}

type pinger interface {
	Ping(ctx context.Context) ([]string, error)
}

func pingBackend(ctx context.Context, rt *assistant.Runtime) string {
	p, ok := rt.LLM.(pinger)
	if !ok {
		return "unknown"
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	models, err := p.Ping(ctx)
	if err != nil {
		return fmt.Sprintf("unreachable (%v)", err)
	}
	return fmt.Sprintf("reachable (%d models)", len(models))
}

func providerDisplay(p config.ProviderConfig) string {
	switch p.Type {
	case "", config.DefaultProviderType:
		host := p.Host
		if host == "" {
			host = config.DefaultOllamaHost
		}
		return "ollama at " + host
	default:
		key := "not set"
		if n := len(p.APIKey); n > 8 {
			key = p.APIKey[:4] + "..." + p.APIKey[n-4:]
		} else if n > 0 {
			key = "set"
		}
		return fmt.Sprintf("%s (API key %s)", p.Type, key)
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	_, rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	msg, err := rt.Memory.Export(path)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func runWipe(cmd *cobra.Command, confirm bool) error {
	if !confirm {
		fmt.Fprintln(cmd.OutOrStdout(), "Refusing to wipe memories without --confirm.")
		return nil
	}
	_, rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	msg, err := rt.Memory.Wipe(cmd.Context(), true)
	if err != nil {
		return fmt.Errorf("wipe memories: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}
