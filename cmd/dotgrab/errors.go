package main

import "github.com/spf13/cobra"

// Exit codes.
const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

type cliError struct {
	Code      int
	Err       error
	ShowUsage bool
	Cmd       *cobra.Command
}

func (e *cliError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *cliError) Unwrap() error { return e.Err }

var errExit0 = &cliError{Code: exitOK}

func usageErr(cmd *cobra.Command, err error) error {
	return &cliError{Code: exitUsage, Err: err, ShowUsage: true, Cmd: cmd}
}

func fatalErr(cmd *cobra.Command, err error) error {
	return &cliError{Code: exitFatal, Err: err, Cmd: cmd}
}
