package main

import (
	"context"
	"flag"
	"fmt"
	"slices"
	"strings"

	"github.com/google/subcommands"
	"github.com/inbucket/mailroute/pkg/rest/client"
)

type statusCmd struct{}

func (*statusCmd) Name() string {
	return "status"
}

func (*statusCmd) Synopsis() string {
	return "show server version and extension listeners"
}

func (*statusCmd) Usage() string {
	return `status:
	print server build information and registered extension listeners
`
}

func (*statusCmd) SetFlags(f *flag.FlagSet) {}

func (*statusCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	// Setup rest client
	c, err := client.New(baseURL())
	if err != nil {
		return fatal("Couldn't build client", err)
	}

	status, err := c.Status(ctx)
	if err != nil {
		return fatal("REST call failed", err)
	}

	fmt.Printf("Version: %s (%s)\n", status.Version, status.BuildDate)
	fmt.Printf("Store: %s\n", status.StoreBackend)
	fmt.Printf("Relay: %s\n", status.RelayAddr)
	events := make([]string, 0, len(status.Listeners))
	for e := range status.Listeners {
		events = append(events, e)
	}
	slices.Sort(events)
	for _, e := range events {
		fmt.Printf("%s: %s\n", e, strings.Join(status.Listeners[e], ", "))
	}

	return subcommands.ExitSuccess
}
