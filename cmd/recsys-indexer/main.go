package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/andrew/hybrid-recsys/pkg/app"
	"github.com/andrew/hybrid-recsys/pkg/config"
	"github.com/andrew/hybrid-recsys/pkg/indexer"
	"github.com/andrew/hybrid-recsys/pkg/logging"
	"github.com/andrew/hybrid-recsys/pkg/models"
)

var (
	configPath = flag.String("config", "", "Path to a YAML config file (default: $CONFIG_PATH or ./config.yaml)")
	graphFile  = flag.String("graph", "", "Interaction file (user,item,weight)")
	textFile   = flag.String("text", "", "Item text file (id,title,description)")
	similarTo  = flag.String("similar", "", "After indexing, print items similar to this item id")
	k          = flag.Int("k", 5, "Number of similar items to print")
)

func main() {
	flag.Parse()

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	boldRed := color.New(color.FgRed, color.Bold).SprintFunc()

	fail := func(format string, args ...any) {
		fmt.Fprintln(os.Stderr, boldRed("Error: ")+fmt.Sprintf(format, args...))
		os.Exit(1)
	}

	if *graphFile == "" && *textFile == "" {
		fmt.Fprintln(os.Stderr, "At least one of -graph or -text is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fail("loading configuration: %v", err)
	}
	logging.Init(app.LoggingConfig(cfg))

	// Initialize context with cancellation
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Dial(cfg)
	if err != nil {
		fail("connecting: %v", err)
	}
	defer deps.Close()

	fmt.Printf("Qdrant: %s\n", boldCyan(fmt.Sprintf("%s:%d", cfg.Qdrant.Host, cfg.Qdrant.Port)))
	dims := deps.Pipeline.Dims()
	fmt.Printf("Vector size: %d (text %d + graph %d)\n", dims.Total(), dims.Text, dims.Graph)

	report, err := ingest(ctx, deps.Pipeline, *graphFile, *textFile)
	if err != nil {
		fail("%v", err)
	}

	fmt.Println(boldGreen("Indexed collection ") + boldCyan(report.Collection))
	fmt.Printf("  points:      %d\n", report.Points)
	fmt.Printf("  text items:  %d\n", report.TextItems)
	fmt.Printf("  graph items: %d\n", report.GraphItems)
	fmt.Printf("  elapsed:     %s\n", report.Elapsed)

	if *similarTo == "" {
		return
	}

	items, err := deps.Retrieval.FindSimilar(ctx, report.Collection, models.ItemID(*similarTo), *k)
	if err != nil {
		fail("similarity search: %v", err)
	}
	fmt.Println()
	fmt.Println(boldGreen("Similar to ") + boldCyan(*similarTo))
	if len(items) == 0 {
		fmt.Println("  (no results)")
	}
	for _, it := range items {
		fmt.Printf("  %s  %.4f  %s\n", boldCyan(string(it.ID)), it.Score, it.Title)
	}
}

func ingest(ctx context.Context, p *indexer.Pipeline, graphPath, textPath string) (indexer.IngestReport, error) {
	var graph, text *os.File
	var err error
	if graphPath != "" {
		if graph, err = os.Open(graphPath); err != nil {
			return indexer.IngestReport{}, err
		}
		defer graph.Close()
	}
	if textPath != "" {
		if text, err = os.Open(textPath); err != nil {
			return indexer.IngestReport{}, err
		}
		defer text.Close()
	}

	switch {
	case graph != nil && text != nil:
		return p.IngestBoth(ctx, indexer.Source{Name: graphPath, Body: graph}, indexer.Source{Name: textPath, Body: text})
	case graph != nil:
		return p.IngestGraph(ctx, indexer.Source{Name: graphPath, Body: graph})
	default:
		return p.IngestText(ctx, indexer.Source{Name: textPath, Body: text})
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}
