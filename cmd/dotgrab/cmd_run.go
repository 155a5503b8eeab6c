package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/benithors/dotgrab/internal/config"
	"github.com/benithors/dotgrab/internal/gateway/ovh"
	"github.com/benithors/dotgrab/internal/metrics"
	"github.com/benithors/dotgrab/internal/notify"
	"github.com/benithors/dotgrab/internal/outcome"
	"github.com/benithors/dotgrab/internal/purchase"
	"github.com/benithors/dotgrab/internal/rdap"
	"github.com/benithors/dotgrab/internal/watchlist"
	"github.com/benithors/dotgrab/internal/whois"
)

func newRunCmd(o *options) *cobra.Command {
	var (
		file      string
		payment   string
		noNotify  bool
		keepGoing bool
		precheck  bool
		retries   int
	)

	cmd := &cobra.Command{
		Use:   "run [domain...]",
		Short: "Try once to buy every watched domain (args, --file, or stdin)",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, list, err := readEntries(args, file, os.Stdin)
			if err != nil {
				return fatalErr(cmd, fmt.Errorf("failed to read domains: %w", err))
			}
			if nonBlank(entries) == 0 {
				return usageErr(cmd, errors.New("no domains: pass them as arguments, with --file, or on stdin"))
			}
			if retries < 0 {
				return usageErr(cmd, errors.New("--retries must not be negative"))
			}

			cfg, err := o.loadConfig(cmd, true, !noNotify)
			if err != nil {
				return err
			}
			if payment == "" {
				payment = cfg.Purchase.Payment
			}

			client, err := ovh.NewClient(ovh.Options{
				Endpoint:          cfg.OVH.Endpoint,
				ApplicationKey:    cfg.OVH.ApplicationKey,
				ApplicationSecret: cfg.OVH.ApplicationSecret,
				ConsumerKey:       cfg.OVH.ConsumerKey,
				Subsidiary:        cfg.OVH.Subsidiary,
				Timeout:           o.Timeout,
				Retries:           retries,
				Logger:            o.entry("ovh"),
			})
			if err != nil {
				return &cliError{Code: exitUsage, Err: err, Cmd: cmd}
			}

			var notifier notify.Notifier
			if !noNotify {
				notifier, err = newNotifier(cfg, o.Timeout)
				if err != nil {
					return &cliError{Code: exitUsage, Err: err, Cmd: cmd}
				}
			}

			m := metrics.NewRun()
			popts := purchase.Options{
				PaymentMean: payment,
				Metrics:     m,
				Logger:      o.entry("purchase"),
			}
			if precheck {
				popts.Precheck = purchase.Prechecks{
					rdap.NewClient(rdap.Options{Timeout: o.Timeout, Logger: o.entry("rdap")}),
					whois.NewClient(whois.Options{Timeout: o.Timeout, Retries: 2, Logger: o.entry("whois")}),
				}
			}

			tracker := outcome.NewTracker()
			runner := &purchase.Runner{
				Orchestrator: purchase.NewOrchestrator(client, popts),
				Tracker:      tracker,
				Metrics:      m,
				Logger:       o.entry("runner").WithField("gateway", client.Name()),
				KeepGoing:    keepGoing,
			}

			res := &runResult{
				tracker:  tracker,
				list:     list,
				original: entries,
				notifier: notifier,
				metrics:  m,
				log:      o.entry("run"),
			}
			res.runErr = runner.Run(cmd.Context(), entries)
			return res.finish(cmd, o)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Watch-list file, one domain per line; purchased domains are removed from it")
	cmd.Flags().StringVarP(&payment, "payment", "p", "", "Preferred payment mean: bankAccount|creditCard|fidelityAccount|ovhAccount|paypal")
	cmd.Flags().BoolVarP(&noNotify, "no-notify", "n", false, "Do not send the end-of-run notification")
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Continue with the next domain after a failed order")
	cmd.Flags().BoolVar(&precheck, "precheck", false, "Skip domains that RDAP (or WHOIS) still reports as registered")
	cmd.Flags().IntVar(&retries, "retries", 3, "Retries for read-only API calls on transient errors")

	return cmd
}

// runResult carries what the end of a run needs, fatal or not.
type runResult struct {
	tracker  *outcome.Tracker
	list     *watchlist.File
	original []string
	notifier notify.Notifier
	metrics  *metrics.Run
	log      *log.Entry
	runErr   error
}

// finish rewrites the watch list, notifies the owner, prints the report and
// writes metrics. All of it happens even after a fatal failure so that
// purchases already made are never bought twice.
func (r *runResult) finish(cmd *cobra.Command, o *options) error {
	var ioErrs []error

	if err := r.saveWatchList(); err != nil {
		r.log.WithError(err).Error("could not rewrite watch list")
		ioErrs = append(ioErrs, err)
	}

	r.sendSummary(cmd.Context(), o.Timeout)

	if err := writeReport(cmd.OutOrStdout(), o.outFormat, r.tracker.Records()); err != nil {
		ioErrs = append(ioErrs, fmt.Errorf("write report: %w", err))
	}

	r.metrics.Finish(time.Now())
	if o.MetricsFile != "" {
		if err := r.metrics.WriteTextfile(o.MetricsFile); err != nil {
			r.log.WithError(err).Error("could not write metrics")
			ioErrs = append(ioErrs, err)
		}
	}

	counts := r.tracker.Counts()
	r.log.WithFields(log.Fields{
		"purchased":   counts[outcome.StatusPurchased],
		"unavailable": counts[outcome.StatusUnavailable],
		"failed":      counts[outcome.StatusFailed],
	}).Info("run complete")

	if r.runErr != nil {
		return fatalErr(cmd, r.runErr)
	}
	if len(ioErrs) > 0 {
		return fatalErr(cmd, errors.Join(ioErrs...))
	}
	return nil
}

func (r *runResult) saveWatchList() error {
	if r.list == nil || len(r.tracker.Purchased()) == 0 {
		return nil
	}
	remaining := r.tracker.Remaining(r.original)
	if err := r.list.Save(remaining); err != nil {
		return err
	}
	r.log.WithFields(log.Fields{"path": r.list.Path, "remaining": len(remaining)}).Info("watch list updated")
	return nil
}

// sendSummary sends one aggregated message when anything was bought or
// failed. Delivery problems are logged only.
func (r *runResult) sendSummary(ctx context.Context, timeout time.Duration) {
	if r.notifier == nil {
		return
	}
	lines := r.tracker.Summary()
	if len(lines) == 0 {
		return
	}
	// An interrupted run still deserves its notification.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	subject := notify.Subject(len(r.tracker.Purchased()) > 0)
	if err := r.notifier.Send(ctx, subject, notify.Body(lines)); err != nil {
		r.log.WithError(err).WithField("notifier", r.notifier.Name()).Error("notification failed")
		return
	}
	r.log.WithField("notifier", r.notifier.Name()).Debug("notification sent")
}

func newNotifier(cfg *config.Config, timeout time.Duration) (notify.Notifier, error) {
	var m notify.Multi
	if cfg.EmailEnabled() {
		e, err := notify.NewEmail(notify.EmailOptions{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.SendFrom,
			To:       cfg.SMTP.SendTo,
			Timeout:  timeout,
		})
		if err != nil {
			return nil, err
		}
		m = append(m, e)
	}
	if cfg.SMSEnabled() {
		s, err := notify.NewSMS(notify.SMSOptions{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			From:       cfg.Twilio.From,
			To:         cfg.Twilio.To,
			Timeout:    timeout,
		})
		if err != nil {
			return nil, err
		}
		m = append(m, s)
	}
	if len(m) == 0 {
		return nil, errors.New("no notifier configured")
	}
	return m, nil
}
