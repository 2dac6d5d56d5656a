package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/twinrouter/noc/packet"
	"github.com/sarchlab/twinrouter/noc/platform"
	"github.com/sarchlab/twinrouter/noc/routing"
	"github.com/sarchlab/twinrouter/sim"
)

var routeCmd = &cobra.Command{
	Use:   "route [A|B]",
	Short: "Print the routing table and the lane matrix of a router.",
	Long: "`route A` prints the routing table and the lanes of router A. " +
		"`route --from 0 --to 4` prints the routers that a packet visits.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("from") || flags.Changed("to") {
			from, _ := flags.GetUint8("from")
			to, _ := flags.GetUint8("to")

			return printPath(cmd.OutOrStdout(),
				packet.NodeID(from), packet.NodeID(to))
		}

		half := routing.HalfA
		if len(args) == 1 {
			var err error

			half, err = routing.ParseHalf(args[0])
			if err != nil {
				return err
			}
		}

		printTable(cmd.OutOrStdout(), half)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(routeCmd)
	routeCmd.Flags().Uint8("from", 0, "Source node of the path to print")
	routeCmd.Flags().Uint8("to", 0, "Destination node of the path to print")
}

func printTable(out io.Writer, half routing.Half) {
	table := routing.NewHalfTable(half)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(w, "Router %s\n\n", half)
	fmt.Fprintln(w, "Node\tPort")

	for n := packet.NodeID(0); n < packet.NumNodes; n++ {
		fmt.Fprintf(w, "%d\t%d\n", n, table.FindPort(n))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output\tLane 0\tLane 1\tLane 2")

	for out := 0; out < routing.NumPorts; out++ {
		fmt.Fprintf(w, "%d", out)

		for lane := 0; lane < routing.NumLanes; lane++ {
			fmt.Fprintf(w, "\tfrom %d", routing.InputPortOf(lane, out))
		}

		fmt.Fprintln(w)
	}

	w.Flush()
}

func printPath(out io.Writer, src, dst packet.NodeID) error {
	if _, err := packet.New(src, dst, 0); err != nil {
		return err
	}

	if src == dst {
		return errors.Errorf("node %d cannot send to itself", src)
	}

	fabric := platform.MakeBuilder().
		WithEngine(sim.NewSerialEngine()).
		Build("Fabric")

	fmt.Fprintf(out, "%d -> %d: %v, %d links\n",
		src, dst, fabric.Route(src, dst),
		platform.ShortestHops(fabric.Topology(), src, dst))

	return nil
}
