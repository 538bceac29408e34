// Command agentrelay runs the research/email agent pair from the terminal,
// streaming run progress as it happens.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/hupe1980/agentrelay"
	"github.com/hupe1980/agentrelay/config"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/model/anthropic"
	"github.com/hupe1980/agentrelay/model/openai"
	"github.com/hupe1980/agentrelay/research"
	"github.com/hupe1980/agentrelay/runner"
)

var (
	toolStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	agentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	usageStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	depthIndents = "  "
)

type cliOptions struct {
	query    string
	quiet    bool
	provider string
	modelID  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:     "agentrelay",
		Short:   "Research assistant with web search and email drafting",
		Long:    "agentrelay runs a research agent that searches the web and can delegate findings to an email agent for drafting.",
		Version: agentrelay.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "run a single query and exit")
	cmd.Flags().BoolVar(&opts.quiet, "quiet", false, "print only the final answer")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "model provider (anthropic or openai)")
	cmd.Flags().StringVar(&opts.modelID, "model", "", "model identifier, provider default if empty")

	return cmd
}

func run(ctx context.Context, opts *cliOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.provider != "" {
		cfg.ModelProvider = opts.provider
	}
	if opts.modelID != "" {
		cfg.ModelName = opts.modelID
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(logging.Config{Level: parseLevel(cfg.LogLevel), Format: "text"})

	llm, err := buildModel(cfg)
	if err != nil {
		return err
	}

	researchAgent, err := research.NewAgent(llm, func(o *research.Options) {
		o.MaxModelCalls = cfg.MaxModelCalls
		o.Stream = true
	})
	if err != nil {
		return err
	}

	r := runner.New(researchAgent, func(o *runner.Options) {
		o.Deps = cfg.Deps()
		o.Logger = logger
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.query != "" {
		return execute(ctx, r, opts.query, opts.quiet)
	}
	return interactive(ctx, r, opts.quiet)
}

func buildModel(cfg *config.Config) (model.Model, error) {
	switch cfg.ModelProvider {
	case "anthropic":
		var fns []func(o *anthropic.Options)
		if cfg.ModelName != "" {
			fns = append(fns, anthropic.WithModel(cfg.ModelName))
		}
		return anthropic.NewModel(fns...), nil
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.ModelName != "" {
				o.Model = cfg.ModelName
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.ModelProvider)
	}
}

func interactive(ctx context.Context, r *runner.Runner, quiet bool) error {
	fmt.Println(agentStyle.Render("agentrelay") + " - ask a research question, or ask for findings to be emailed.")
	fmt.Println(usageStyle.Render("type 'exit' to quit"))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := execute(ctx, r, line, quiet); err != nil {
			if core.KindOf(err) == core.KindCancelled && ctx.Err() != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, errorStyle.Render("run failed: "+err.Error()))
		}
	}
}

// execute runs one prompt, rendering the event stream, and returns the run's
// terminal error if any.
func execute(ctx context.Context, r *runner.Runner, prompt string, quiet bool) error {
	_, events, errCh, err := r.Run(ctx, prompt)
	if err != nil {
		return err
	}

	inText := false
	for ev := range events {
		renderEvent(ev, quiet, &inText)
	}
	if inText {
		fmt.Println()
	}
	return <-errCh
}

func renderEvent(ev core.Event, quiet bool, inText *bool) {
	indent := strings.Repeat(depthIndents, ev.Depth)

	switch ev.Kind {
	case core.EventRunStarted:
		if !quiet && ev.Depth > 0 {
			breakText(inText)
			fmt.Println(indent + agentStyle.Render("» "+ev.Agent))
		}
	case core.EventTextDelta:
		if !quiet && ev.Depth == 0 {
			fmt.Print(ev.Text)
			*inText = true
		}
	case core.EventToolCallRequested:
		if !quiet {
			breakText(inText)
			fmt.Println(indent + toolStyle.Render("⚙ "+ev.Tool+" "+ev.Args))
		}
	case core.EventToolCallResult:
		if !quiet && ev.Failed() {
			breakText(inText)
			fmt.Println(indent + errorStyle.Render("✗ "+ev.Tool+": "+ev.Failure.Message))
		}
	case core.EventRunCompleted:
		breakText(inText)
		if ev.Depth > 0 {
			return
		}
		if ev.Failed() {
			fmt.Println(errorStyle.Render("✗ " + string(ev.Failure.Kind) + ": " + ev.Failure.Message))
			return
		}
		if quiet {
			fmt.Println(ev.Output)
			return
		}
		if ev.Usage != nil {
			fmt.Println(usageStyle.Render(fmt.Sprintf("%d model calls, %d tokens", ev.Usage.Requests, ev.Usage.TotalTokens)))
		}
	}
}

func breakText(inText *bool) {
	if *inText {
		fmt.Println()
		*inText = false
	}
}

func parseLevel(s string) logging.LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}
