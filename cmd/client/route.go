package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/inbucket/mailroute/pkg/rest/client"
)

// exitTempFail matches EX_TEMPFAIL from sysexits.h, so MTA pipe transports retry the message.
const exitTempFail subcommands.ExitStatus = 75

type routeCmd struct {
	from string
	file string
}

func (*routeCmd) Name() string {
	return "route"
}

func (*routeCmd) Synopsis() string {
	return "route a message to its destinations"
}

func (*routeCmd) Usage() string {
	return `route [flags] <recipient>:
	submit a raw message read from stdin (or -file) for routing to recipient,
	then print the decision
`
}

func (r *routeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.from, "from", "", "envelope sender of the message")
	f.StringVar(&r.file, "file", "-", "message source file, - for stdin")
}

func (r *routeCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	to := f.Arg(0)
	if to == "" {
		return usage("recipient required")
	}

	// Read message source
	var in io.Reader = os.Stdin
	if r.file != "-" {
		fh, err := os.Open(r.file)
		if err != nil {
			return fatal("Couldn't open message", err)
		}
		defer fh.Close()
		in = fh
	}
	source, err := io.ReadAll(in)
	if err != nil {
		return fatal("Couldn't read message", err)
	}

	// Setup rest client
	c, err := client.New(baseURL())
	if err != nil {
		return fatal("Couldn't build client", err)
	}

	d, err := c.Route(ctx, r.from, to, source)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Temporary {
			fmt.Fprintf(os.Stderr, "Routing deferred: %v\n", apiErr.Message)
			return exitTempFail
		}
		return fatal("REST call failed", err)
	}

	switch {
	case d.Forwarded():
		fmt.Printf("%s (%s): %s\n", d.Action, d.Phase, strings.Join(d.Addresses, ", "))
	default:
		fmt.Printf("%s: %s\n", d.Action, d.Reason)
	}

	return subcommands.ExitSuccess
}
