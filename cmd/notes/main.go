// Command notes is a CLI client for the notekeeper service.
package main

import (
	"errors"
	"fmt"
	"os"

	"google.golang.org/grpc/status"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errorColor.Fprintln(os.Stderr, describeErr(err))
		os.Exit(1)
	}
}

// describeErr turns RPC failures into "code: message".
func describeErr(err error) string {
	if s, ok := status.FromError(err); ok && s.Code() != 0 {
		return fmt.Sprintf("rpc error: %s: %s", s.Code(), s.Message())
	}
	if errors.Is(err, errNoToken) {
		return err.Error() + " (run `notes login`)"
	}
	return err.Error()
}
