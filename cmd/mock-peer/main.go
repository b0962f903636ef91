// Command mock-peer is a small JSON-RPC peer for trying out the harness locally. By default it
// serves stdio; with --http it serves the REST API instead.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/grauwen/utlx-conformance-harness/framework"
	"github.com/grauwen/utlx-conformance-harness/jsonrpc"
	"github.com/grauwen/utlx-conformance-harness/mockpeer"
)

func main() {
	framing := pflag.String("framing", string(jsonrpc.FramingHeader), "stdio framing: header or line")
	httpAddr := pflag.String("http", "", "serve the REST API on this address instead of stdio")
	verbose := pflag.BoolP("verbose", "v", false, "log traffic to stderr")
	pflag.Parse()

	logger := framework.NullLogger()
	if *verbose {
		logger = log.New(os.Stderr, "[mock-peer] ", log.LstdFlags)
	}

	if *httpAddr != "" {
		server := &http.Server{
			Addr:              *httpAddr,
			Handler:           mockpeer.NewRESTService(logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		fmt.Fprintf(os.Stderr, "mock-peer listening on %s\n", *httpAddr)
		if err := server.ListenAndServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	codec, err := jsonrpc.NewCodec(jsonrpc.Framing(*framing), os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	status, err := mockpeer.Serve(codec, mockpeer.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(status.Code())
}
