// Command stockalert asks the catalog service for products at or below
// their restock threshold and prints them.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/example/neomart/pkg/config"
	"github.com/example/neomart/pkg/discovery"
	catalogrpc "github.com/example/neomart/pkg/grpc"
	"github.com/example/neomart/pkg/logging"
	"github.com/example/neomart/pkg/models"
	"github.com/example/neomart/pkg/sales"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	withSales := flag.Bool("sales", false, "also print today's and this month's sales")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	var disc catalogrpc.Discoverer
	if cfg.Etcd.Enabled {
		sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, logger.Named("discovery"))
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else {
			defer sd.Close()
			disc = sd
		}
	}

	client, err := catalogrpc.NewCatalogClient(&cfg.Server, disc, logger)
	if err != nil {
		logger.Fatal("Failed to create catalog client", zap.Error(err))
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	low, err := client.LowStock(ctx)
	if err != nil {
		logger.Fatal("Failed to fetch low stock", zap.Error(err))
	}
	printLowStock(os.Stdout, low)

	if *withSales {
		summary, err := client.SalesSummary(ctx)
		if err != nil {
			logger.Fatal("Failed to fetch sales summary", zap.Error(err))
		}
		printSummary(os.Stdout, summary)
	}
}

func printLowStock(w io.Writer, products []models.Product) {
	if len(products) == 0 {
		fmt.Fprintln(w, "All products are above their restock threshold.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQTY\tALERT\tSTATUS")
	for _, p := range products {
		status := "low"
		if p.OutOfStock() {
			status = "out of stock"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", p.ID, p.Name, p.Quantity, p.LowQuantityAlert, status)
	}
	tw.Flush()
}

func printSummary(w io.Writer, s sales.Summary) {
	fmt.Fprintf(w, "\nToday: %d orders, revenue %s, profit %s\n",
		s.Today.Orders, s.Today.Revenue.StringFixed(2), s.Today.Profit.StringFixed(2))
	fmt.Fprintf(w, "Month: %d orders, revenue %s, profit %s\n",
		s.Month.Orders, s.Month.Revenue.StringFixed(2), s.Month.Profit.StringFixed(2))
}
