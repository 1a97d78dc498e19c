package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/go-edge-perf/internal/onnx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := run(ctx, os.Args[1:], os.Stdout)

	stop()

	shutdownErr := onnx.Shutdown()
	if shutdownErr != nil && err == nil {
		err = shutdownErr
	}

	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)

		os.Exit(1)
	}
}

// run scans args for options the command does not know, then executes the
// command tree with what is left.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	root := NewRootCmd()
	root.SetOut(stdout)
	root.SetArgs(scanArgs(root, args, stdout))

	return root.ExecuteContext(ctx)
}
