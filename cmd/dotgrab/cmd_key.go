package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/benithors/dotgrab/internal/config"
	"github.com/benithors/dotgrab/internal/gateway/ovh"
)

func newKeyCmd(o *options) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "key",
		Short: "Request a new OVH consumer key with access to orders and payments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig(cmd, false, false)
			if err != nil {
				return err
			}
			client, err := ovh.NewClient(ovh.Options{
				Endpoint:          cfg.OVH.Endpoint,
				ApplicationKey:    cfg.OVH.ApplicationKey,
				ApplicationSecret: cfg.OVH.ApplicationSecret,
				Timeout:           o.Timeout,
				Logger:            o.entry("ovh"),
			})
			if err != nil {
				return &cliError{Code: exitUsage, Err: err, Cmd: cmd}
			}

			v, err := client.RequestConsumerKey()
			if err != nil {
				return fatalErr(cmd, fmt.Errorf("consumer key request failed: %w", err))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "1. Please visit %s to authenticate.\n", v.ValidationURL)
			if term.IsTerminal(int(os.Stdin.Fd())) {
				fmt.Fprintln(out, "2. Press Enter to continue...")
				if err := waitForEnter(os.Stdin); err != nil {
					return fatalErr(cmd, err)
				}
				me, err := client.Me(cmd.Context())
				if err != nil {
					// The key is still valid once the visit happens; do not lose it.
					o.entry("key").WithError(err).Warn("could not read account, was the validation URL visited?")
				} else {
					fmt.Fprintf(out, "Welcome %s!\n", me.FirstName)
				}
			}
			fmt.Fprintf(out, "Your consumer key is '%s'\n", v.ConsumerKey)

			if save {
				if err := config.SaveConsumerKey(cfg.Path, v.ConsumerKey); err != nil {
					return fatalErr(cmd, err)
				}
				fmt.Fprintf(out, "Saved to %s\n", cfg.Path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Write the new key into the config file")
	return cmd
}

func waitForEnter(r io.Reader) error {
	_, err := bufio.NewReader(r).ReadString('\n')
	if err == io.EOF {
		return nil
	}
	return err
}
