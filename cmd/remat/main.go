// Command remat trains MLPs with activation recomputation on the CPU.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"
	"k8s.io/klog/v2"
)

func main() {
	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	defer klog.Flush()

	app := &cli.Command{
		Name:  "remat",
		Usage: "Train models with activation recomputation",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "v",
				Usage: "log verbosity",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.IsSet("v") {
				if err := klogFlags.Set("v", strconv.FormatInt(cmd.Int64("v"), 10)); err != nil {
					return ctx, err
				}
			}
			return ctx, nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			trainCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		klog.Flush()
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
