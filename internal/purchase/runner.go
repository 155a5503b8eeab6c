package purchase

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/benithors/dotgrab/internal/domain"
	"github.com/benithors/dotgrab/internal/metrics"
	"github.com/benithors/dotgrab/internal/outcome"
)

// Runner processes a watch list strictly in order, one entry at a time, so
// that no two purchases for the same account ever overlap.
type Runner struct {
	Orchestrator *Orchestrator
	Tracker      *outcome.Tracker
	Metrics      *metrics.Run
	Logger       *log.Entry

	// KeepGoing isolates failures per domain instead of stopping the run
	// at the first one. The run still reports every failure at the end.
	KeepGoing bool
}

// Run returns the fatal error that stopped the run, or with KeepGoing the
// joined failures of all entries. Outcomes are in the tracker either way.
func (r *Runner) Run(ctx context.Context, entries []string) error {
	logger := r.Logger
	if logger == nil {
		logger = log.New().WithField("component", "runner")
	}
	logger.WithField("domains", len(entries)).Info("start")

	seen := make(map[string]struct{}, len(entries))
	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			logger.WithError(err).Warn("run interrupted")
			return errors.Join(append(errs, err)...)
		}

		if strings.TrimSpace(entry) == "" {
			continue
		}

		// The same name twice in one run would mean a second cart for it.
		if name, err := domain.Normalize(entry); err == nil {
			if _, dup := seen[name]; dup {
				logger.WithField("domain", entry).Debug("duplicate entry, already processed")
				continue
			}
			seen[name] = struct{}{}
		}

		rec, err := r.Orchestrator.Process(ctx, entry)
		r.Tracker.Record(rec)
		if r.Metrics != nil {
			r.Metrics.RecordDomain(string(rec.Status))
		}
		if err == nil {
			continue
		}
		if !r.KeepGoing {
			return err
		}
		errs = append(errs, err)
	}

	logger.Info("finished")
	return errors.Join(errs...)
}
