package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowgraph/flowgraph"
	"github.com/flowgraph/flowgraph/examples"
	"github.com/flowgraph/flowgraph/extensions"
)

var level uint8

var rootCmd = &cobra.Command{
	Use:   "flowgraph",
	Short: "Build and execute a small flowgraph example graph",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the example n1->n2->n3 doubling chain and print n3's value",
	RunE: func(cmd *cobra.Command, args []string) error {
		g := newExampleGraph()
		g.AddOptimizationPass(&flowgraph.NodeFusion[float64]{})

		if err := g.Execute(context.Background(), level); err != nil {
			return err
		}

		outputs := g.GetOutputNodes()
		if len(outputs) == 0 {
			return fmt.Errorf("no output node after optimization")
		}
		output := outputs[0]
		if errState, ok := g.GetNodeError(output.Name); ok {
			return errState
		}

		v, err := flowgraph.NewHandle(output).GetLevel(context.Background(), level)
		if err != nil {
			return err
		}
		fmt.Printf("result: %v\n", v)
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [node]",
	Short: "Print an ASCII dependency tree rooted at node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g := newExampleGraph()
		viz, err := g.Visualize(args[0])
		if err != nil {
			return err
		}
		fmt.Println(viz)
		return nil
	},
}

func newExampleGraph() *flowgraph.Graph[float64] {
	logger := slog.New(extensions.NewHumanHandler(os.Stderr, slog.LevelWarn))
	g := flowgraph.NewGraph[float64](flowgraph.WithLogger[float64](logger))
	g.AddObserver(extensions.NewLoggingObserver[float64](logger))
	_ = examples.BuildChain(g)
	return g
}

func main() {
	rootCmd.PersistentFlags().Uint8Var(&level, "level", 0, "precision level to compute/display")
	rootCmd.AddCommand(runCmd, inspectCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
