package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hanpama/chainql/internal/eventbus"
	"github.com/hanpama/chainql/internal/inmem"
	"github.com/hanpama/chainql/internal/load"
	"github.com/hanpama/chainql/internal/logging"
	"github.com/hanpama/chainql/internal/otel"
	"github.com/hanpama/chainql/internal/runner"
	"github.com/hanpama/chainql/internal/server"
	"github.com/hanpama/chainql/internal/store"
)

const rootUsage = `chainql - GraphQL query runner for indexed subgraphs

USAGE:
  chainql <command> [flags]

COMMANDS:
  serve            Run the HTTP GraphQL endpoint over an in-memory dev store
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -server.addr <addr>              HTTP listen address (default: :8000)
  -server.metrics-addr <addr>      Prometheus metrics listen address (default: :8040)
  -server.timeout <duration>       Per-request timeout, e.g. 10s (default: 10s)
  -server.pretty                   Pretty-print JSON responses
  -graphql.max-complexity <n>      Query complexity limit, 0 = unbounded (default: 0)
  -graphql.max-depth <n>           Query depth limit (default: 255)
  -graphql.max-first <n>           Pagination 'first' cap (default: 1000)
  -graphql.max-skip <n>            Pagination 'skip' cap (default: 100000)
  -graphql.query-timeout <dur>     Per-partition execution deadline, 0 = none
  -graphql.allow-deployment-change Disable the reorg consistency check
  -otel.endpoint <addr>            OTLP collector endpoint
  -otel.service <name>             OpenTelemetry service name (default: chainql)
  -log.level <level>               Log level (default: info)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("chainql", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Print(serveUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("server.addr", ":8000", "")
	metricsAddr := fs.String("server.metrics-addr", ":8040", "")
	timeout := fs.Duration("server.timeout", 10*time.Second, "")
	pretty := fs.Bool("server.pretty", false, "")
	maxComplexity := fs.Uint64("graphql.max-complexity", 0, "")
	maxDepth := fs.Int("graphql.max-depth", 255, "")
	maxFirst := fs.Int("graphql.max-first", 1000, "")
	maxSkip := fs.Int("graphql.max-skip", 100000, "")
	queryTimeout := fs.Duration("graphql.query-timeout", 0, "")
	allowChange := fs.Bool("graphql.allow-deployment-change", false, "")
	otelEndpoint := fs.String("otel.endpoint", "", "")
	otelService := fs.String("otel.service", "chainql", "")
	logLevel := fs.String("log.level", "info", "")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	logger := logging.New(*logLevel)
	defer logger.Sync()

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(*otelEndpoint, *otelService)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer shutdown(context.Background())

	st := devStore()
	eng := inmem.NewEngine()

	opts := []runner.Option{
		runner.WithMaxComplexity(*maxComplexity),
		runner.WithMaxDepth(*maxDepth),
		runner.WithMaxFirst(*maxFirst),
		runner.WithMaxSkip(*maxSkip),
		runner.WithQueryTimeout(*queryTimeout),
	}
	if *allowChange {
		opts = append(opts, runner.WithoutConsistencyCheck())
	}
	r := runner.New(logger, st, eng, eng, st, load.NopDecider{}, prometheus.DefaultRegisterer, opts...)

	go func() {
		logger.Infow("serving metrics", "addr", *metricsAddr)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			logger.Errorw("metrics server stopped", "err", err)
		}
	}()

	serverOpts := []server.Option{
		server.WithTimeout(*timeout),
		server.WithCORS("*"),
	}
	if *pretty {
		serverOpts = append(serverOpts, server.WithPretty())
	}
	h := server.New(r, serverOpts...)
	logger.Infow("serving GraphQL", "addr", *addr)
	return http.ListenAndServe(*addr, h)
}

// devStore seeds the in-memory store with a small demo deployment so
// the dev gateway is queryable out of the box.
func devStore() *inmem.Store {
	st := inmem.NewStore()
	st.Add(&inmem.Deployment{
		Name:    "example",
		Network: "devnet",
		SchemaSDL: `
input Block_height { number: Int hash: String number_gte: Int }
enum _SubgraphErrorPolicy_ { allow deny }
type Token { id: ID! symbol: String supply: Int }
type Query {
  tokens(first: Int, skip: Int, block: Block_height, subgraphError: _SubgraphErrorPolicy_): [Token!]!
}
`,
		State: store.DeploymentState{MaxReorgDepth: 16, LatestBlock: 100},
		Tables: map[string][]inmem.Row{
			"tokens": {
				{Block: 10, Value: map[string]any{"id": "t1", "symbol": "GNO", "supply": 10_000}},
				{Block: 42, Value: map[string]any{"id": "t2", "symbol": "DAI", "supply": 5_000_000}},
				{Block: 97, Value: map[string]any{"id": "t3", "symbol": "ETH", "supply": 120_000}},
			},
		},
	})
	return st
}
