package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/order-analyzer/internal/bootstrap"
	"github.com/joseph-ayodele/order-analyzer/internal/common"
	"github.com/joseph-ayodele/order-analyzer/internal/export"
)

func main() {
	in := flag.String("in", "", "path to the PDF to analyze (required)")
	out := flag.String("out", "", "write JSON here instead of stdout")
	xlsx := flag.String("xlsx", "", "also write the result as an .xlsx workbook")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	logger := bootstrap.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	if *in == "" {
		logger.Error("usage: analyze -in <file.pdf> [-out result.json] [-xlsx result.xlsx]")
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		_, details := common.Describe(err)
		logger.Error("config.invalid", "error", err, "details", details)
		os.Exit(2)
	}

	pdf, err := os.ReadFile(*in)
	if err != nil {
		logger.Error("read input", "path", *in, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup.failed", "error", err)
		os.Exit(1)
	}
	defer app.Close(context.Background())

	res, err := app.Pipeline.Analyze(ctx, pdf)
	if err != nil {
		summary, details := common.Describe(err)
		logger.Error("analyze.failed", "code", common.CodeOf(err), "error", summary, "details", details)
		app.Close(context.Background())
		os.Exit(1)
	}

	body, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
	body = append(body, '\n')
	if *out == "" {
		_, _ = os.Stdout.Write(body)
	} else if err := os.WriteFile(*out, body, 0o644); err != nil {
		logger.Error("write output", "path", *out, "error", err)
		os.Exit(1)
	}

	if *xlsx != "" {
		book, err := export.NewService(logger).ResultXLSX(ctx, res)
		if err == nil {
			err = os.WriteFile(*xlsx, book, 0o644)
		}
		if err != nil {
			logger.Error("write xlsx", "path", *xlsx, "error", err)
			os.Exit(1)
		}
	}

	fmt.Fprintf(os.Stderr, "analyzed %s: %d line items, confidence %s\n", *in, len(res.LineItems), res.Confidence)
}
