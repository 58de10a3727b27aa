// Command harness-mocks runs the REST and SOAP mock services on their own,
// for poking at them with curl or a SOAP client outside a scenario.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/scenariokit/harness/internal/domain/mock"
	"github.com/scenariokit/harness/internal/logger"
)

func main() {
	fs := flag.NewFlagSet("harness-mocks", flag.ExitOnError)
	host := fs.String("host", "127.0.0.1", "interface to bind")
	restPort := fs.Int("rest-port", 8089, "REST mock port, 0 to disable")
	soapURL := fs.String("soap-url", "http://localhost:8088/calculator", "SOAP mock endpoint URL, empty to disable")
	fs.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *host, *restPort, *soapURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run starts the requested mocks and blocks until ctx is done.
func run(ctx context.Context, host string, restPort int, soapURL string) error {
	mgr := mock.NewManager(host)
	defer mgr.StopAll(context.Background())

	if restPort > 0 {
		if err := mgr.REST().Start(ctx, restPort); err != nil {
			return fmt.Errorf("rest mock: %w", err)
		}
		logger.AddScopedLog("INFO", "mock", fmt.Sprintf("REST mock at %s", mgr.REST().URL()))
	}
	if soapURL != "" {
		if err := mgr.SOAP().StartURL(ctx, soapURL); err != nil {
			return fmt.Errorf("soap mock: %w", err)
		}
		logger.AddScopedLog("INFO", "mock", fmt.Sprintf("SOAP mock at %s (WSDL: %s?wsdl)", mgr.SOAP().URL(), mgr.SOAP().URL()))
	}

	<-ctx.Done()
	return nil
}
