// Command distr checks deployments on a distr hub for newer application
// versions, updates them, and serves the same operations over a local API.
package main

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/glasskube/distr-sub001/internal/core/domain"
	"github.com/glasskube/distr-sub001/internal/shell/distr"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCode(err)
	}
	return ExitSuccess
}

// exitCode classifies err into a process exit code.
func exitCode(err error) int {
	var exitErr *ExitError
	var apiErr *distr.APIError
	var urlErr *url.Error
	var partial *domain.PartialFailureError

	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.ExitCode
	case errors.Is(err, domain.ErrInvalidArgument):
		return ExitInvalidArgument
	case errors.Is(err, domain.ErrReferenceNotFound):
		return ExitNotFound
	case errors.Is(err, domain.ErrPreconditionFailed):
		return ExitPreconditionFailed
	case errors.As(err, &partial), errors.As(err, &apiErr), errors.As(err, &urlErr):
		return ExitRemoteError
	default:
		return ExitFailure
	}
}
