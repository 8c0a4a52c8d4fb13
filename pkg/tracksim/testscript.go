package tracksim

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/fieldworks-labs/trackmock/internal/testutil"
)

// TestScriptCmd implements the "mock" testscript command. Scripts use it
// to start a simulator, toggle it, and inspect its request log and state.
func TestScriptCmd(ts *testscript.TestScript, neg bool, args []string) {
	if len(args) == 0 {
		ts.Fatalf("mock: missing subcommand")
	}
	sub := args[0]
	switch sub {
	case "start":
		mockStart(ts, neg, args[1:])
	case "snapshot":
		mockSnapshot(ts, neg, args[1:])
	case "log":
		mockLog(ts, neg, args[1:])
	case "clear-log":
		mockClearLog(ts, neg, args[1:])
	case "enable":
		mockEnable(ts, neg, args[1:])
	case "disable":
		mockDisable(ts, neg, args[1:])
	default:
		ts.Fatalf("mock: unknown subcommand %q", sub)
	}
}

func mockStart(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("mock start: negation not supported")
	}
	if _, ok := getMockInstance(ts); ok {
		ts.Fatalf("mock start: simulator already running")
	}

	fs := flag.NewFlagSet("mock start", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "path to the simulator TOML configuration")
	datasetPath := fs.String("dataset", "", "path to the dataset file (overrides the configuration)")
	portFlag := fs.Int("port", 0, "port to listen on (default random)")
	apiKey := fs.String("api-key", "", "api key clients must present (overrides the configuration)")
	latency := fs.Duration("latency", 0, "artificial delay before each response")
	if err := fs.Parse(args); err != nil {
		ts.Fatalf("mock start: %v", err)
	}
	if *configPath == "" && *datasetPath == "" {
		ts.Fatalf("mock start: -config or -dataset is required")
	}

	port := *portFlag
	if port == 0 {
		p, err := testutil.FreePort()
		if err != nil {
			ts.Fatalf("mock start: acquire port: %v", err)
		}
		port = p
	}
	listen := fmt.Sprintf("127.0.0.1:%d", port)

	var cfg *Config
	if *configPath != "" {
		loaded, err := LoadConfig(ts.MkAbs(*configPath))
		if err != nil {
			ts.Fatalf("mock start: load config: %v", err)
		}
		cfg = loaded
	} else {
		cfg = &Config{}
	}
	cfg.Server.Listen = listen
	if *datasetPath != "" {
		cfg.Dataset.Path = ts.MkAbs(*datasetPath)
	}
	if *apiKey != "" {
		cfg.Server.APIKey = *apiKey
	}
	if *latency > 0 {
		cfg.Server.Latency = Duration(*latency)
	}
	if err := cfg.Validate(); err != nil {
		ts.Fatalf("mock start: validate config: %v", err)
	}

	sim, stop, err := StartServer(context.Background(), cfg)
	if err != nil {
		ts.Fatalf("mock start: %v", err)
	}

	baseURL := fmt.Sprintf("http://%s", listen)
	success := false
	defer func() {
		if success {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := stop(ctx); err != nil {
			ts.Logf("mock: cleanup error: %v", err)
		}
	}()

	ts.Setenv("TRACKMOCK_URL", baseURL)
	if cfg.Server.APIKey != "" {
		ts.Setenv("TRACKMOCK_KEY", cfg.Server.APIKey)
	}

	inst := &mockInstance{sim: sim, stop: stop, baseURL: baseURL, cfg: cfg}
	setMockInstance(ts, inst)
	ts.Defer(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := inst.stop(ctx); err != nil {
			ts.Logf("mock: shutdown error: %v", err)
		}
		clearMockInstance(ts)
	})

	success = true
	ts.Logf("mock simulator listening on %s", baseURL)
}

func mockSnapshot(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("mock snapshot: negation not supported")
	}
	if len(args) != 0 {
		ts.Fatalf("mock snapshot: unexpected arguments: %v", args)
	}
	inst, ok := getMockInstance(ts)
	if !ok {
		ts.Fatalf("mock snapshot: simulator not running")
	}

	snap := inst.sim.Snapshot()
	data, err := snap.MarshalTOML()
	if err != nil {
		ts.Fatalf("mock snapshot: marshal: %v", err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	if _, err := ts.Stdout().Write(data); err != nil {
		ts.Fatalf("mock snapshot: write stdout: %v", err)
	}
}

func mockLog(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("mock log: negation not supported")
	}
	if len(args) != 0 {
		ts.Fatalf("mock log: unexpected arguments: %v", args)
	}
	inst, ok := getMockInstance(ts)
	if !ok {
		ts.Fatalf("mock log: simulator not running")
	}
	for _, e := range inst.sim.Requests() {
		fmt.Fprintf(ts.Stdout(), "%s %s %d\n", e.Method, e.Path, e.Status)
	}
}

func mockClearLog(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("mock clear-log: negation not supported")
	}
	inst, ok := getMockInstance(ts)
	if !ok {
		ts.Fatalf("mock clear-log: simulator not running")
	}
	inst.sim.ClearRequests()
}

func mockEnable(ts *testscript.TestScript, neg bool, args []string) {
	inst, ok := getMockInstance(ts)
	if !ok {
		ts.Fatalf("mock enable: simulator not running")
	}
	path := inst.cfg.Dataset.Path
	if len(args) > 0 {
		path = ts.MkAbs(args[0])
	}
	if path == "" {
		ts.Fatalf("mock enable: no dataset path")
	}
	err := inst.sim.Enable(path)
	if neg {
		if err == nil {
			ts.Fatalf("mock enable: unexpected success")
		}
		return
	}
	if err != nil {
		ts.Fatalf("mock enable: %v", err)
	}
}

func mockDisable(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("mock disable: negation not supported")
	}
	inst, ok := getMockInstance(ts)
	if !ok {
		ts.Fatalf("mock disable: simulator not running")
	}
	inst.sim.Disable()
}

func setMockInstance(ts *testscript.TestScript, inst *mockInstance) {
	mockMu.Lock()
	defer mockMu.Unlock()
	mockInstances[ts] = inst
}

func getMockInstance(ts *testscript.TestScript) (*mockInstance, bool) {
	mockMu.Lock()
	defer mockMu.Unlock()
	inst, ok := mockInstances[ts]
	return inst, ok
}

func clearMockInstance(ts *testscript.TestScript) {
	mockMu.Lock()
	defer mockMu.Unlock()
	delete(mockInstances, ts)
}

type mockInstance struct {
	sim     *Simulator
	stop    func(context.Context) error
	baseURL string
	cfg     *Config
}

var (
	mockMu        sync.Mutex
	mockInstances = make(map[*testscript.TestScript]*mockInstance)
)
