package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tryon/internal/infra"
	"tryon/internal/infra/credentials"
	"tryon/internal/tryon"
)

func main() {
	_ = godotenv.Load()

	var (
		keyFlag      string
		providerFlag string
		timeoutFlag  time.Duration
	)
	flag.StringVar(&keyFlag, "key", "", "API key for the selected provider (fallbacks to environment)")
	flag.StringVar(&providerFlag, "provider", tryon.ProviderFashn, "Try-on provider to check (replicate, fashn or custom)")
	flag.DurationVar(&timeoutFlag, "timeout", 15*time.Second, "Request timeout")
	flag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger := infra.NewLogger("cli", cfg.LogLevel).With().Str("cmd", "credits").Logger()

	registry := tryon.NewRegistry(tryon.AdaptersFromConfig(cfg, nil, &logger)...)
	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	adapter, err := registry.Lookup(provider)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v (known: %s)\n", err, strings.Join(registry.Names(), ", "))
		os.Exit(1)
	}
	checker, ok := adapter.(tryon.CreditsChecker)
	if !ok {
		fmt.Fprintf(os.Stderr, "%s has no credits endpoint\n", provider)
		os.Exit(1)
	}

	creds := credentials.NewStore(cfg.ProviderTokens()).Token(provider)
	if key := strings.TrimSpace(keyFlag); key != "" {
		creds = tryon.NewCredentials(key)
	}
	if creds.Empty() {
		fmt.Fprintf(os.Stderr, "%s API key is required via -key or environment\n", strings.ToUpper(provider))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	credits, err := checker.Credits(ctx, creds)
	if err != nil {
		res := tryon.FailureResult(err)
		fmt.Fprintf(os.Stderr, "%s credits check failed: %s\n", provider, res.ErrorMessage)
		if res.Details != "" {
			fmt.Fprintln(os.Stderr, res.Details)
		}
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{"provider": adapter.Name(), "credits": credits})
}
