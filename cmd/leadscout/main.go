package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/use-agent/leadscout/app"
	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/models"
)

func main() {
	os.Exit(run())
}

// run executes one campaign and returns the process exit code. Keeping
// the work here lets the deferred browser shutdown run before exit.
func run() int {
	business := flag.String("business", "", "your business name")
	services := flag.String("services", "", "services you offer")
	audience := flag.String("audience", "", "target audience")
	budget := flag.String("budget", "", "budget range of target clients")
	geography := flag.String("geography", "", "target geography")
	prompt := flag.String("prompt", "", "free-form campaign description, parsed by the LLM")
	platforms := flag.String("platforms", "", "comma-separated domains to restrict the search to")
	dorks := flag.String("dorks", "", "file with one search query per line; skips strategy generation")
	flag.Parse()

	cfg := config.Load()
	app.InitLogger(cfg.Log, os.Stderr)

	var queries []string
	if *dorks != "" {
		var err error
		if queries, err = readLines(*dorks); err != nil {
			slog.Error("failed to read dorks", "file", *dorks, "error", err)
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("browser shutdown failed", "error", err)
		}
	}()

	var campaign models.Campaign
	switch {
	case *prompt != "":
		campaign = a.Planner.ParsePrompt(ctx, *prompt)
	case *services != "":
		campaign = models.Campaign{Business: *business, Services: *services, Audience: *audience, Budget: *budget, Geography: *geography}
	default:
		campaign = askCampaign(os.Stdin, os.Stdout)
	}
	if *platforms != "" {
		campaign.Platforms = splitList(*platforms)
	}

	rep, err := a.Pipeline.Generate(ctx, campaign, queries, func(p models.Progress) {
		slog.Info("progress", "stage", p.Stage, "completed", p.Completed, "total", p.Total, "count", p.Count)
	})
	if err != nil {
		slog.Error("campaign failed", "error", err)
		if rep == nil {
			return 1
		}
	}
	printSummary(os.Stdout, rep, cfg.Output.ResultsDir)
	if err != nil {
		return 1
	}
	return 0
}

// askCampaign reads the campaign interactively, one answer per line.
func askCampaign(in io.Reader, out io.Writer) models.Campaign {
	sc := bufio.NewScanner(in)
	ask := func(label string) string {
		fmt.Fprintf(out, "%s: ", label)
		if !sc.Scan() {
			return ""
		}
		return strings.TrimSpace(sc.Text())
	}
	return models.Campaign{
		Business:  ask("Business"),
		Services:  ask("Services"),
		Audience:  ask("Target audience"),
		Budget:    ask("Budget range"),
		Geography: ask("Geography"),
	}
}

func readLines(path string) ([]string, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(body), "\n") {
		if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
			out = append(out, line)
		}
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printSummary(w io.Writer, rep *models.RunReport, dir string) {
	s := rep.Stats
	fmt.Fprintf(w, "\n%d queries (%d failed, %d rate limited), %d unique results, %d selected, %d scraped\n",
		s.Queries, s.Failed, s.RateLimited, s.Unique, s.Selected, s.Scraped)
	fmt.Fprintf(w, "%d leads written to %s\n\n", s.Leads, dir)
	for i, l := range rep.Leads {
		fmt.Fprintf(w, "%2d. [%s] %s  %s\n", i+1, models.Priority(l.Provenance.Score), l.Company, l.Contacts.Website)
	}
}
