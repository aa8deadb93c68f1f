package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/alphabizdigital/invoice-tracker/internal/config"
	"github.com/alphabizdigital/invoice-tracker/internal/poller"
	"github.com/alphabizdigital/invoice-tracker/pkg/utils"
	"github.com/subosito/gotenv"
)

// Command-line polling client. Watches one invoice through the status
// API until it reaches a terminal state or the polling budget runs out.

func main() {
	gotenv.Load()

	var (
		baseURL = flag.String("server", "http://localhost:8080", "base URL of the status API")
		profile = flag.String("profile", "", "polling profile name (defaults to the configured default)")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <invoice-number>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	invoiceNumber := flag.Arg(0)

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	profileName := *profile
	if profileName == "" {
		profileName = cfg.Polling.DefaultProfile
	}
	p, ok := cfg.Polling.Profiles[profileName]
	if !ok {
		log.Fatalf("Unknown polling profile %q", profileName)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      "warn",
		OutputPath: "stderr",
		Format:     "console",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	fmt.Printf("Polling %s every %s (up to %d attempts, %s budget)\n",
		invoiceNumber, p.Interval, p.MaxAttempts, p.Budget())

	client := poller.NewClient(*baseURL, logger)
	watcher := poller.New(client, p, logger)
	watcher.Start(context.Background(), invoiceNumber)

	result, err := watcher.Wait(context.Background())
	if err != nil {
		log.Fatalf("Polling aborted: %v", err)
	}

	switch result.State {
	case poller.StateStoppedSuccess:
		fmt.Printf("Invoice %s completed after %d attempts\n", invoiceNumber, result.Attempts)
		if result.Record != nil && result.Record.PDFURL != "" {
			fmt.Printf("PDF: %s\n", result.Record.PDFURL)
		}
	case poller.StateStoppedFailure:
		fmt.Printf("Invoice %s failed after %d attempts\n", invoiceNumber, result.Attempts)
		if result.Record != nil && result.Record.ErrorMessage != "" {
			fmt.Printf("Error: %s\n", result.Record.ErrorMessage)
		}
		os.Exit(1)
	case poller.StateStoppedTimeout:
		fmt.Printf("Invoice %s still pending after %d attempts, giving up\n", invoiceNumber, result.Attempts)
		os.Exit(1)
	default:
		fmt.Printf("Polling stopped in state %s\n", result.State)
		os.Exit(1)
	}
}
