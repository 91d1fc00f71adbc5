package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PageSage/pagesage/internal/config"
	"github.com/PageSage/pagesage/internal/provider"
	"github.com/PageSage/pagesage/internal/session"
	"github.com/PageSage/pagesage/internal/store"
	"github.com/PageSage/pagesage/internal/tui"
	"github.com/PageSage/pagesage/pkg/types"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "setup":
		cmdSetup()
	case "chat":
		cmdChat()
	case "ask":
		cmdAsk(os.Args[2:])
	case "capture":
		cmdCapture(os.Args[2:])
	case "transcribe":
		cmdTranscribe(os.Args[2:])
	case "usage":
		cmdUsage()
	case "reset":
		cmdReset()
	case "validate":
		cmdValidate()
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`PageSage — AI Browsing Assistant

Usage:
  pagesage <command>

Commands:
  setup                Initial setup (credentials, config file)
  chat                 Interactive chat session
  ask <question>       One-shot question
    --model <name>     Force a model: analytical, realtime, hybrid
    --url <url>        Capture a page and answer with its content
  capture <url>        Fetch a page and print its extracted content
  transcribe <file>    Transcribe an audio file (requires Whisper key)
  usage                Show quota usage
  reset                Reset the usage counter (requires confirmation)
  validate             Check the config file for problems
  version              Print version
  help                 Show this help`)
}

// mustLoadConfig loads the config or exits with a setup hint.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		fmt.Println("Run 'pagesage setup' to create a config file.")
		os.Exit(1)
	}
	return cfg
}

// mustBuildService builds the full pipeline or exits.
func mustBuildService(cfg *config.Config) *Service {
	result := cfg.Validate()
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	if !result.IsValid() {
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "error: %s\n", e)
		}
		os.Exit(1)
	}

	svc, err := newService(cfg, config.DefaultDBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return svc
}

func cmdSetup() {
	fmt.Printf("PageSage v%s - Setup\n\n", version)

	cfg, err := config.Load()
	if err == nil && (cfg.Providers.Anthropic.APIKey != "" || cfg.Providers.Anthropic.AuthToken != "") {
		fmt.Println("Configuration already exists.")
		fmt.Print("Reconfigure? [y/N]: ")
		reader := bufio.NewReader(os.Stdin)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			fmt.Println("Setup cancelled.")
			os.Exit(0)
		}
		fmt.Println()
	} else {
		cfg = config.Default()
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Choose Anthropic authentication:")
	fmt.Println("  1) API Key (pay-per-token)")
	fmt.Println("  2) Setup Token (use Claude subscription)")
	fmt.Print("\nChoice [1/2]: ")

	choice, _ := reader.ReadString('\n')
	choice = strings.TrimSpace(choice)

	switch choice {
	case "2":
		fmt.Println()
		fmt.Println("Steps:")
		fmt.Println("  1. Run: claude setup-token")
		fmt.Println("  2. Copy the token (starts with sk-ant-oat-...)")
		fmt.Println("  3. Paste it below")
		fmt.Print("\nPaste setup-token: ")

		token, _ := reader.ReadString('\n')
		token = strings.TrimSpace(token)

		if !provider.IsOAuthToken(token) {
			fmt.Fprintln(os.Stderr, "Invalid setup-token (should start with sk-ant-oat)")
			os.Exit(1)
		}

		cfg.Providers.Anthropic.AuthToken = token
		cfg.Providers.Anthropic.APIKey = ""

		fmt.Println("\nSubscription auth configured.")

	case "1", "":
		fmt.Print("\nPaste API key (sk-ant-api-...): ")

		key, _ := reader.ReadString('\n')
		key = strings.TrimSpace(key)

		if key == "" {
			fmt.Fprintln(os.Stderr, "No key provided")
			os.Exit(1)
		}

		cfg.Providers.Anthropic.APIKey = key
		cfg.Providers.Anthropic.AuthToken = ""

		fmt.Println("\nAPI key configured.")

	default:
		fmt.Fprintln(os.Stderr, "Invalid choice")
		os.Exit(1)
	}

	fmt.Print("\nPerplexity API key for real-time queries (Enter to skip): ")
	pplx, _ := reader.ReadString('\n')
	cfg.Providers.Perplexity.APIKey = strings.TrimSpace(pplx)
	if cfg.Providers.Perplexity.APIKey == "" {
		fmt.Println("Skipped. Real-time queries will use the analytical model.")
	}

	path, err := config.Save(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nConfig saved: %s\n", path)
	fmt.Println("\nTry it: pagesage chat")
}

func cmdChat() {
	cfg := mustLoadConfig()
	svc := mustBuildService(cfg)
	defer svc.Close()

	if err := tui.Run(svc.assist); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// askArgs holds parsed flags for the ask command
type askArgs struct {
	question string
	model    types.Model
	url      string
}

// parseAskArgs splits --model and --url flags from the question words.
func parseAskArgs(args []string) (askArgs, error) {
	var out askArgs
	var words []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--model", "-m":
			if i+1 >= len(args) {
				return out, fmt.Errorf("--model requires a value")
			}
			i++
			switch strings.ToLower(args[i]) {
			case string(types.ModelAnalytical):
				out.model = types.ModelAnalytical
			case string(types.ModelRealtime):
				out.model = types.ModelRealtime
			case string(types.ModelHybrid):
				out.model = types.ModelHybrid
			default:
				return out, fmt.Errorf("unknown model %q (use analytical, realtime or hybrid)", args[i])
			}
		case "--url", "-u":
			if i+1 >= len(args) {
				return out, fmt.Errorf("--url requires a value")
			}
			i++
			out.url = args[i]
		default:
			words = append(words, args[i])
		}
	}

	out.question = strings.TrimSpace(strings.Join(words, " "))
	if out.question == "" {
		return out, fmt.Errorf("no question given")
	}
	return out, nil
}

func cmdAsk(args []string) {
	parsed, err := parseAskArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Println("Usage: pagesage ask [--model name] [--url url] <question>")
		os.Exit(1)
	}

	cfg := mustLoadConfig()
	svc := mustBuildService(cfg)
	defer svc.Close()

	var page *types.PageContext
	if parsed.url != "" {
		page, err = svc.CapturePage(parsed.url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error capturing page: %v\n", err)
			os.Exit(1)
		}
	}

	answer, err := svc.assist.Query(context.Background(), session.NewSessionID(), parsed.question, page, parsed.model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(answer.Text)

	usage := svc.assist.Usage()
	fmt.Printf("\n[%s] %d/%d queries used\n", answer.Model, usage.CurrentUsage, svc.assist.Quota())
}

func cmdCapture(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: pagesage capture <url>")
		os.Exit(1)
	}

	cfg := mustLoadConfig()
	svc := mustBuildService(cfg)
	defer svc.Close()

	page, err := svc.CapturePage(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("URL:   %s\n", page.URL)
	fmt.Printf("Title: %s\n", page.Title)
	if desc, ok := page.Metadata["description"]; ok && desc != "" {
		fmt.Printf("Desc:  %s\n", desc)
	}
	fmt.Println()
	fmt.Println(page.VisibleText)
}

func cmdTranscribe(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: pagesage transcribe <audio-file>")
		os.Exit(1)
	}

	cfg := mustLoadConfig()
	svc := mustBuildService(cfg)
	defer svc.Close()

	if svc.whisper == nil {
		fmt.Fprintln(os.Stderr, "Transcription disabled: set providers.whisper.enabled and an API key.")
		os.Exit(1)
	}

	audio, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading audio: %v\n", err)
		os.Exit(1)
	}

	text, perr := svc.whisper.Transcribe(context.Background(), audio, args[0])
	if perr != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", perr.Message)
		os.Exit(1)
	}

	fmt.Println(text)
}

func cmdUsage() {
	cfg := mustLoadConfig()

	st, err := store.NewSQLiteStore(config.DefaultDBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	count, err := st.UsageCount()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	id, _ := st.InstallationID()
	remaining := cfg.Usage.Quota - count
	if remaining < 0 {
		remaining = 0
	}

	fmt.Printf("Installation: %s\n", id)
	fmt.Printf("Queries used: %d/%d\n", count, cfg.Usage.Quota)
	fmt.Printf("Remaining:    %d\n", remaining)
	if count >= cfg.Usage.Quota {
		fmt.Println("\nQuota exhausted. Run 'pagesage reset' to start a new cycle.")
	}
}

func cmdReset() {
	fmt.Println("This will reset the usage counter to zero.")
	fmt.Println("Conversation history is kept.")
	fmt.Println()
	fmt.Print("Type 'yes' to confirm: ")

	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))

	if input != "yes" {
		fmt.Println("Reset cancelled.")
		os.Exit(0)
	}

	st, err := store.NewSQLiteStore(config.DefaultDBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.SetUsageCount(0); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Usage counter reset.")
}

func cmdValidate() {
	cfg := mustLoadConfig()
	result := cfg.Validate()

	for _, e := range result.Errors {
		fmt.Printf("error:   %s\n", e)
	}
	for _, w := range result.Warnings {
		fmt.Printf("warning: %s\n", w)
	}

	if result.IsValid() {
		fmt.Println("Config OK.")
		return
	}
	os.Exit(1)
}
