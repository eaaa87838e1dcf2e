package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/84hero/ens-namer/pkg/chain"
	"github.com/84hero/ens-namer/pkg/config"
	"github.com/84hero/ens-namer/pkg/confirm"
	"github.com/84hero/ens-namer/pkg/conn"
	"github.com/84hero/ens-namer/pkg/ens"
	"github.com/84hero/ens-namer/pkg/namer"
	"github.com/84hero/ens-namer/pkg/rpc"
	"github.com/84hero/ens-namer/pkg/sink"
	"github.com/84hero/ens-namer/pkg/storage"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
)

// dialFunc opens a signing connection to one chain. The returned func
// releases it.
type dialFunc func(ctx context.Context, name string, nodes []rpc.NodeConfig, cc conn.Config) (namer.Chain, func(), error)

type app struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string

	dial        dialFunc
	openJournal func(config.JournalConfig) (storage.Journal, error)
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:      stdout,
		stderr:      stderr,
		dial:        dialChain,
		openJournal: openJournal,
	}
}

func dialChain(ctx context.Context, name string, nodes []rpc.NodeConfig, cc conn.Config) (namer.Chain, func(), error) {
	client, err := rpc.NewClient(ctx, nodes)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	c, err := conn.New(ctx, client, cc)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return c, client.Close, nil
}

func openJournal(cfg config.JournalConfig) (storage.Journal, error) {
	switch cfg.Backend {
	case "", "memory":
		return storage.NewMemoryStore(cfg.Prefix), nil
	case "postgres":
		return storage.NewPostgresStore(cfg.URL, cfg.Prefix)
	case "redis":
		store, err := storage.NewRedisStore(cfg.Addr, cfg.Password, cfg.DB, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		return store.WithTTL(cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Backend)
	}
}

func isMemoryJournal(cfg config.JournalConfig) bool {
	return cfg.Backend == "" || cfg.Backend == "memory"
}

// loadConfig reads the config file. Without --config or CONFIG_FILE a missing
// ./config.yaml just means defaults plus environment.
func (a *app) loadConfig() (*config.Config, error) {
	path := a.configPath
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	setupLogger(a.stderr, cfg.Log.Level)
	if err := cfg.RegisterProfiles(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type nameOptions struct {
	contract string
	chain    string
	noMetric bool
}

func (a *app) runName(ctx context.Context, rawName string, opts nameOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	// Everything that can be rejected without a network round trip goes first.
	name, err := ens.Normalize(rawName)
	if err != nil {
		return err
	}
	if _, err := ens.ParseAddress(opts.contract); err != nil {
		return err
	}

	paired := chain.ResolvePairedChains(opts.chain)
	l1Profile, err := chain.GetProfile(paired.L1)
	if err != nil {
		return err
	}
	if paired.Fallback {
		log.Warn("Chain has no L2 pairing, naming on it directly", "chain", opts.chain)
	}
	l1Nodes, err := nodesFor(cfg, l1Profile.Name)
	if err != nil {
		return err
	}

	var (
		l2Profile chain.Profile
		l2Nodes   []rpc.NodeConfig
	)
	if paired.HasL2() {
		if l2Profile, err = chain.GetProfile(paired.L2); err != nil {
			return err
		}
		if l2Nodes, err = nodesFor(cfg, l2Profile.Name); err != nil {
			return err
		}
	}

	key, err := cfg.PrivateKey()
	if err != nil {
		return err
	}
	connCfg := func(chainName string) conn.Config {
		return conn.Config{
			Name: chainName,
			Key:  key,
			Confirm: confirm.Config{
				Interval:      cfg.PollInterval,
				Confirmations: cfg.Confirmations,
			},
		}
	}

	req := namer.Request{
		Name:          name,
		Contract:      opts.contract,
		CorrelationID: uuid.NewString(),
	}

	l1, closeL1, err := a.dial(ctx, l1Profile.Name, l1Nodes, connCfg(l1Profile.Name))
	if err != nil {
		return err
	}
	defer closeL1()
	req.L1 = namer.Target{Chain: l1, Profile: l1Profile}

	if paired.HasL2() {
		l2, closeL2, err := a.dial(ctx, l2Profile.Name, l2Nodes, connCfg(l2Profile.Name))
		if err != nil {
			return err
		}
		defer closeL2()
		req.L2 = &namer.Target{Chain: l2, Profile: l2Profile}
	}

	var reporter namer.Reporter
	if cfg.Metrics.Enabled && !opts.noMetric {
		outputs, err := sink.BuildOutputs(cfg.Metrics.Outputs)
		if err != nil {
			log.Warn("Some metrics outputs are unavailable", "err", err)
		}
		d := sink.NewDispatcher(outputs, sink.DispatcherConfig{
			Async:      cfg.Metrics.Async,
			BufferSize: cfg.Metrics.BufferSize,
			Timeout:    cfg.Metrics.Timeout,
		})
		defer d.Close()
		reporter = d
	}

	engine := namer.New(namer.Options{Reporter: reporter, OpType: cfg.OpType})
	res, runErr := engine.Run(ctx, req)

	if res != nil {
		printResult(a.stdout, res)
		a.journal(ctx, cfg, opts.chain, res, runErr)
	}
	return runErr
}

var errNoNodes = errors.New("no rpc_nodes configured")

func nodesFor(cfg *config.Config, name string) ([]rpc.NodeConfig, error) {
	nodes, ok := cfg.Nodes(name)
	if !ok {
		return nil, fmt.Errorf("%w for chain %q", errNoNodes, name)
	}
	return nodes, nil
}

// journal records the outcome; failures here never change the exit status.
func (a *app) journal(ctx context.Context, cfg *config.Config, chainArg string, res *namer.Result, runErr error) {
	j, err := a.openJournal(cfg.Journal)
	if err != nil {
		log.Warn("Run journal unavailable", "err", err)
		return
	}
	defer j.Close()

	if err := j.Save(ctx, toRecord(chainArg, res, runErr)); err != nil {
		log.Warn("Failed to record run", "err", err)
	}
}

func toRecord(chainArg string, res *namer.Result, runErr error) storage.Record {
	rec := storage.Record{
		CorrelationID: res.CorrelationID,
		Chain:         chainArg,
		Contract:      res.Contract.Hex(),
		Name:          res.Name,
		ContractType:  string(res.ContractType),
		Transactions:  make(map[string]string, len(res.Transactions)),
		ExplorerURL:   res.ExplorerURL,
		FinishedAt:    time.Now().UTC(),
	}
	for step, h := range res.Transactions {
		rec.Transactions[string(step)] = h.Hex()
	}
	if res.Reverse != nil {
		rec.Notes = append(rec.Notes, fmt.Sprintf("%s: %v", namer.StepReverseResolution, res.Reverse))
	}
	if res.L2Reverse != nil {
		rec.Notes = append(rec.Notes, fmt.Sprintf("%s: %v", namer.StepL2ReverseResolution, res.L2Reverse))
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	return rec
}

func printResult(w io.Writer, res *namer.Result) {
	fmt.Fprintf(w, "Name:          %s\n", res.Name)
	fmt.Fprintf(w, "Contract:      %s\n", res.Contract.Hex())
	fmt.Fprintf(w, "Contract type: %s\n", res.ContractType)
	for _, step := range namer.Steps {
		if h, ok := res.Tx(step); ok {
			fmt.Fprintf(w, "  %-20s %s\n", step, h.Hex())
		}
	}
	if res.Reverse != nil {
		fmt.Fprintf(w, "Reverse resolution skipped: %v\n", res.Reverse)
	}
	if res.L2Reverse != nil {
		fmt.Fprintf(w, "L2 reverse resolution skipped: %v\n", res.L2Reverse)
	}
	if res.Writes() == 0 && res.Reverse == nil {
		fmt.Fprintln(w, "Nothing to do, on-chain state already matches")
	}
	if res.ExplorerURL != "" {
		fmt.Fprintf(w, "Explorer:      %s\n", res.ExplorerURL)
	}
}

func (a *app) runChains() error {
	if _, err := a.loadConfig(); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%-18s %-10s %-18s %s\n", "CHAIN", "ID", "SETTLES ON", "NAME WRAPPER")
	for _, name := range chain.Names() {
		p, _ := chain.Get(name)
		settles := "-"
		if p.IsL2() {
			settles = p.Settlement
		}
		wrapper := "no"
		if _, ok := p.NameWrapperAddress(); ok {
			wrapper = "yes"
		}
		fmt.Fprintf(a.stdout, "%-18s %-10d %-18s %s\n", name, p.ChainID, settles, wrapper)
	}
	return nil
}

func (a *app) runHistory(ctx context.Context, chainArg, contract string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if isMemoryJournal(cfg.Journal) {
		log.Warn("The memory journal does not outlive a run; set journal.backend to postgres or redis to keep history")
	}
	j, err := a.openJournal(cfg.Journal)
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.Load(ctx, chainArg, contract)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Fprintf(a.stdout, "No run recorded for %s on %s\n", contract, chainArg)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Run %s at %s\n", rec.CorrelationID, rec.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(a.stdout, "Name:          %s\n", rec.Name)
	fmt.Fprintf(a.stdout, "Contract type: %s\n", rec.ContractType)
	for _, step := range namer.Steps {
		if h, ok := rec.Transactions[string(step)]; ok {
			fmt.Fprintf(a.stdout, "  %-20s %s\n", step, h)
		}
	}
	for _, n := range rec.Notes {
		fmt.Fprintf(a.stdout, "Note: %s\n", n)
	}
	if rec.Error != "" {
		fmt.Fprintf(a.stdout, "Error: %s\n", rec.Error)
	}
	return nil
}
