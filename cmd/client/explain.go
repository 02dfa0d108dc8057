package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/inbucket/mailroute/pkg/rest/client"
	"github.com/inbucket/mailroute/pkg/rest/model"
)

type explainCmd struct{}

func (*explainCmd) Name() string {
	return "explain"
}

func (*explainCmd) Synopsis() string {
	return "show how mail to an address would be routed"
}

func (*explainCmd) Usage() string {
	return `explain <address>:
	print admission, destinations and reject reason for address without
	delivering anything
`
}

func (*explainCmd) SetFlags(f *flag.FlagSet) {}

func (*explainCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	address := f.Arg(0)
	if address == "" {
		return usage("address required")
	}

	// Setup rest client
	c, err := client.New(baseURL())
	if err != nil {
		return fatal("Couldn't build client", err)
	}

	plan, err := c.Explain(ctx, address)
	if err != nil {
		return fatal("REST call failed", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Address:\t%s\n", plan.Address)
	if plan.Parsed {
		fmt.Fprintf(tw, "User:\t%s\n", plan.User)
		fmt.Fprintf(tw, "Subaddress:\t%s\n", plan.Subaddress)
		fmt.Fprintf(tw, "Overridden:\t%v\n", plan.Overridden)
		fmt.Fprintf(tw, "Admitted:\t%v\n", plan.Admitted)
		printDestinations(tw, "Accept", plan.Accept)
		printDestinations(tw, "Reject forward", plan.RejectForward)
	} else {
		fmt.Fprintf(tw, "Parsed:\tfalse\n")
	}
	fmt.Fprintf(tw, "Reject reason:\t%s\n", plan.RejectReason)
	_ = tw.Flush()

	return subcommands.ExitSuccess
}

func printDestinations(tw *tabwriter.Writer, label string, d *model.JSONDestinationsV1) {
	if d == nil {
		return
	}
	groups := make([]string, len(d.Groups))
	for i, g := range d.Groups {
		groups[i] = strings.Join(g, " : ")
	}
	fmt.Fprintf(tw, "%s:\t%s\n", label, strings.Join(groups, " , "))
	if len(d.Invalid) > 0 {
		fmt.Fprintf(tw, "  invalid:\t%s\n", strings.Join(d.Invalid, ", "))
	}
	if len(d.Duplicate) > 0 {
		fmt.Fprintf(tw, "  duplicate:\t%s\n", strings.Join(d.Duplicate, ", "))
	}
	if len(d.Unverified) > 0 {
		fmt.Fprintf(tw, "  unverified:\t%s\n", strings.Join(d.Unverified, ", "))
	}
}
