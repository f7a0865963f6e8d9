package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"meshctl/internal/api"
	"meshctl/internal/channel"
	"meshctl/internal/config"
	"meshctl/internal/metrics"
	"meshctl/internal/model"
	"meshctl/internal/node"
	"meshctl/internal/schedule"
	"meshctl/internal/store"
	"meshctl/internal/stunutil"
)

const usage = `meshctl - radio mesh control plane

Usage:
  meshctl node run --config <path> [--peer host:port] [--listen :8889]
  meshctl schedule --policy single|spaced|fair --nodes 1,2,3 [--channels n] [--slots s] [--separation k]
  meshctl nodes --api <addr>
  meshctl flows --api <addr>
  meshctl links --api <addr>
  meshctl schedule-status --api <addr>
  meshctl probe --peer host:port[,host:port] [--timeout 2s]
  meshctl stats --metrics-path <csv> [--window 5m]
  meshctl roster add --path <roster.yaml> --id <n> [--name <name>] [--lat x --lon y --alt z]
  meshctl roster list --path <roster.yaml>
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd := os.Args[1]
	switch cmd {
	case "-h", "--help", "help":
		fmt.Print(usage)
	case "node":
		handleNode(os.Args[2:])
	case "schedule":
		handleSchedule(os.Args[2:])
	case "nodes", "flows", "links", "schedule-status":
		handleQuery(cmd, os.Args[2:])
	case "probe":
		handleProbe(os.Args[2:])
	case "stats":
		handleStats(os.Args[2:])
	case "roster":
		handleRoster(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func handleNode(args []string) {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, "node subcommand required\n")
		os.Exit(2)
	}
	switch args[0] {
	case "run":
		nodeRun(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown node subcommand %q\n", args[0])
		os.Exit(2)
	}
}

func nodeRun(args []string) {
	fs := flag.NewFlagSet("node run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	peer := fs.String("peer", "", "peer/server control endpoint")
	listen := fs.String("listen", "", "control socket listen address")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	if cfg.Node == nil {
		fatal(errors.New("node config required"))
	}
	overrideNode(cfg.Node, *peer, *listen)
	config.ApplyDefaults(&cfg)
	if err := config.Validate(cfg); err != nil {
		fatal(err)
	}
	setupLogging(cfg.Log)

	ctx, cancel := signalContext()
	defer cancel()

	if err := node.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		fatal(err)
	}
}

func handleSchedule(args []string) {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	policy := fs.String("policy", schedule.PolicySpaced, "single|spaced|fair")
	nodes := fs.String("nodes", "", "comma-separated roster, in order")
	channels := fs.Int("channels", 1, "number of channels")
	slots := fs.Int("slots", 1, "slots per channel")
	separation := fs.Int("separation", 1, "channel separation")
	_ = fs.Parse(args)

	roster, err := parseNodeIDs(*nodes)
	if err != nil {
		fatal(err)
	}
	p := schedule.Policy{Name: *policy, Channels: *channels, Slots: *slots, Separation: *separation}
	g, _, err := p.Compute(roster, nil)
	if err != nil {
		fatal(err)
	}
	printGrid(g)
}

func handleQuery(cmd string, args []string) {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	addr := fs.String("api", "127.0.0.1:8890", "node API address")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := api.NewClient(*addr)

	switch cmd {
	case "nodes":
		resp, err := client.Nodes(ctx)
		if err != nil {
			fatal(err)
		}
		for _, n := range resp.Nodes {
			self := ""
			if n.ID == resp.Self {
				self = " (self)"
			}
			if n.Location == nil {
				fmt.Fprintf(os.Stdout, "%d%s location=unknown\n", n.ID, self)
				continue
			}
			fmt.Fprintf(os.Stdout, "%d%s lat=%.6f lon=%.6f alt=%.1f at=%.3f\n", n.ID, self, n.Location.Latitude, n.Location.Longitude, n.Location.Altitude, n.Location.Timestamp)
		}
	case "flows":
		resp, err := client.Flows(ctx)
		if err != nil {
			fatal(err)
		}
		if len(resp.Flows) == 0 {
			fmt.Fprintln(os.Stdout, "no flow stats")
			return
		}
		for _, f := range resp.Flows {
			fmt.Fprintf(os.Stdout, "flow=%d latency=%.3fms throughput=%.0fbps bytes=%d window=%.1fs\n", f.Flow, f.Latency*1000, f.Throughput, f.Bytes, f.Window)
		}
	case "links":
		resp, err := client.Links(ctx)
		if err != nil {
			fatal(err)
		}
		for _, l := range resp.Links {
			fmt.Fprintf(os.Stdout, "flow=%d %d -> %d\n", l.Flow, l.Src, l.Dest)
		}
	case "schedule-status":
		resp, err := client.Schedule(ctx)
		if err != nil {
			fatal(err)
		}
		if !resp.Installed {
			fmt.Fprintln(os.Stdout, "no schedule installed")
			return
		}
		fmt.Fprintf(os.Stdout, "seq=%d channels=%d slots=%d\n", resp.Seq, resp.Channels, resp.Slots)
		g := make(schedule.Grid, len(resp.Grid))
		for ch, row := range resp.Grid {
			g[ch] = make([]model.NodeID, len(row))
			for slot, id := range row {
				g[ch][slot] = model.NodeID(id)
			}
		}
		printGrid(g)
	}
}

func handleProbe(args []string) {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	peers := fs.String("peer", "", "comma-separated peer control endpoints")
	timeout := fs.Duration("timeout", 2*time.Second, "per-peer timeout")
	_ = fs.Parse(args)

	list := splitList(*peers)
	if len(list) == 0 {
		fatal(errors.New("--peer is required"))
	}

	results, nat, err := stunutil.Probe(context.Background(), list, channel.DefaultPort, *timeout)
	if err != nil {
		fatal(err)
	}
	for _, r := range results {
		fmt.Fprintf(os.Stdout, "peer=%s mapped=%s rtt=%.2fms\n", r.Peer, r.Mapped, float64(r.RTT.Microseconds())/1000)
	}
	fmt.Fprintf(os.Stdout, "nat=%s\n", nat)
}

func handleStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	window := fs.Duration("window", 5*time.Minute, "time window")
	path := fs.String("metrics-path", "", "flow sample CSV path")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}

	metricsPath := selectMetricsPath(cfg, *path)
	if metricsPath == "" {
		fatal(errors.New("metrics path required"))
	}

	items, err := metrics.ReadCSV(metricsPath)
	if err != nil {
		fatal(err)
	}

	cutoff := time.Now().UTC().Add(-*window)
	summaries := metrics.Summarize(items, cutoff)
	if len(summaries) == 0 {
		fmt.Fprintln(os.Stdout, "no samples in window")
		return
	}

	for _, s := range summaries {
		fmt.Fprintf(os.Stdout, "flow=%d samples=%d from=%s to=%s\n", s.Flow, s.Count, s.From.Format(time.RFC3339), s.To.Format(time.RFC3339))
		fmt.Fprintf(os.Stdout, "  latency avg=%.2fms p95=%.2fms max=%.2fms throughput avg=%.0fbps bytes=%d\n", s.AvgLatency*1000, s.P95Latency*1000, s.MaxLatency*1000, s.AvgThroughput, s.LastBytes)
	}
}

func handleRoster(args []string) {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, "roster subcommand required\n")
		os.Exit(2)
	}
	switch args[0] {
	case "add":
		rosterAdd(args[1:])
	case "list":
		rosterList(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown roster subcommand %q\n", args[0])
		os.Exit(2)
	}
}

func rosterAdd(args []string) {
	fs := flag.NewFlagSet("roster add", flag.ExitOnError)
	path := fs.String("path", "", "roster YAML path")
	id := fs.Uint("id", 0, "node id")
	name := fs.String("name", "", "node name")
	lat := fs.Float64("lat", 0, "latitude")
	lon := fs.Float64("lon", 0, "longitude")
	alt := fs.Float64("alt", 0, "altitude")
	_ = fs.Parse(args)

	if *path == "" {
		fatal(errors.New("--path is required"))
	}
	r, err := store.LoadRoster(*path)
	if err != nil {
		fatal(err)
	}
	info := store.NodeInfo{ID: uint32(*id), Name: *name}
	located := false
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lat", "lon", "alt":
			located = true
		}
	})
	if located {
		info.Location = &store.LocationInfo{Latitude: *lat, Longitude: *lon, Altitude: *alt}
	}

	if err := addToRoster(r, info); err != nil {
		fatal(err)
	}
	if err := store.SaveRoster(*path, r); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stdout, "roster %s: %d nodes\n", *path, len(r.Nodes))
}

func rosterList(args []string) {
	fs := flag.NewFlagSet("roster list", flag.ExitOnError)
	path := fs.String("path", "", "roster YAML path")
	_ = fs.Parse(args)

	if *path == "" {
		fatal(errors.New("--path is required"))
	}
	r, err := store.LoadRoster(*path)
	if err != nil {
		fatal(err)
	}
	for _, n := range r.Nodes {
		line := fmt.Sprintf("%d", n.ID)
		if n.Name != "" {
			line += " name=" + n.Name
		}
		if n.Location != nil {
			line += fmt.Sprintf(" lat=%.6f lon=%.6f alt=%.1f", n.Location.Latitude, n.Location.Longitude, n.Location.Altitude)
		}
		fmt.Fprintln(os.Stdout, line)
	}
}

// addToRoster replaces an existing entry with the same id or appends info.
func addToRoster(r *store.Roster, info store.NodeInfo) error {
	if info.ID == 0 {
		return errors.New("--id must be non-zero")
	}
	for i := range r.Nodes {
		if r.Nodes[i].ID == info.ID {
			r.Nodes[i] = info
			return nil
		}
	}
	r.Nodes = append(r.Nodes, info)
	return r.Validate()
}

func printGrid(g schedule.Grid) {
	for ch, row := range g {
		fmt.Fprintf(os.Stdout, "ch%d %s\n", ch, schedule.Schedule(row))
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Config{}, nil
	}
	return config.Load(path)
}

func overrideNode(cfg *config.NodeConfig, peer, listen string) {
	if peer != "" {
		cfg.Peer = peer
	}
	if listen != "" {
		cfg.Listen = listen
	}
}

func selectMetricsPath(cfg config.Config, override string) string {
	if override != "" {
		return override
	}
	if cfg.Node != nil {
		return cfg.Node.MetricsPath
	}
	return ""
}

func setupLogging(cfg *config.LogConfig) {
	if cfg == nil || cfg.File == "" {
		return
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	})
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseNodeIDs(value string) ([]model.NodeID, error) {
	parts := splitList(value)
	ids := make([]model.NodeID, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid node id %q", p)
		}
		ids = append(ids, model.NodeID(v))
	}
	return ids, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()
	return ctx, cancel
}

func fatal(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
