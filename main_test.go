package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/fieldworks-labs/trackmock/pkg/tracker"
	"github.com/fieldworks-labs/trackmock/pkg/tracksim"
)

func TestMain(m *testing.M) {
	testscript.Main(m, map[string]func(){
		"trackmock": main,
	})
}

func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata",
		Cmds: map[string]func(ts *testscript.TestScript, neg bool, args []string){
			"mock":  tracksim.TestScriptCmd,
			"fetch": fetchCmd,
		},
	})
}

// fetchCmd issues one HTTP request and writes "HTTP <code>" plus the
// response body to stdout. Negation expects the request to fail, either
// in transport or with a status of 400 or above.
func fetchCmd(ts *testscript.TestScript, neg bool, args []string) {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	method := fs.String("method", http.MethodGet, "request method")
	key := fs.String("key", "", "api key sent in the request header")
	body := fs.String("body", "", "request body")
	if err := fs.Parse(args); err != nil {
		ts.Fatalf("fetch: %v", err)
	}
	if fs.NArg() != 1 {
		ts.Fatalf("fetch: expected exactly one URL argument")
	}
	url := fs.Arg(0)

	var reqBody io.Reader
	if *body != "" {
		reqBody = strings.NewReader(*body)
	}
	req, err := http.NewRequest(*method, url, reqBody) //nolint:noctx
	if err != nil {
		ts.Fatalf("fetch: build request: %v", err)
	}
	if *body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if *key != "" {
		req.Header.Set(tracker.APIKeyHeader, *key)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		if neg {
			ts.Logf("fetch: request failed as expected: %v", err)
			return
		}
		ts.Fatalf("fetch: %v", err)
	}
	defer res.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(res.Body)
	if err != nil {
		ts.Fatalf("fetch: read body: %v", err)
	}
	fmt.Fprintf(ts.Stdout(), "HTTP %d\n", res.StatusCode)
	if len(data) > 0 {
		_, _ = ts.Stdout().Write(data)
		if data[len(data)-1] != '\n' {
			fmt.Fprintln(ts.Stdout())
		}
	}

	failed := res.StatusCode >= 400
	if neg && !failed {
		ts.Fatalf("fetch: unexpected success: HTTP %d", res.StatusCode)
	}
	if !neg && failed {
		ts.Fatalf("fetch: HTTP %d", res.StatusCode)
	}
}
