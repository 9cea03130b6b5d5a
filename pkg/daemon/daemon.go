package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/fluxcd/seedy/pkg/cluster"
	fluxerr "github.com/fluxcd/seedy/pkg/errors"
	"github.com/fluxcd/seedy/pkg/event"
	fluxmetrics "github.com/fluxcd/seedy/pkg/metrics"
	"github.com/fluxcd/seedy/pkg/queue"
	"github.com/fluxcd/seedy/pkg/registry"
	"github.com/fluxcd/seedy/pkg/update"
)

// Outcome is what became of a single message.
type Outcome string

const (
	// Not an image push (or not a successful one).
	Skipped Outcome = "skipped"
	// A push, but of an image no service runs.
	Unmatched Outcome = "unmatched"
	Updated   Outcome = "updated"
	// Something is wrong with the message or the service, that
	// trying again won't fix.
	Dropped Outcome = "dropped"
	// Left on the queue, to be delivered again once its visibility
	// timeout has expired.
	Retry Outcome = "retry"
)

// Acked says whether the message should be deleted from the queue.
func (o Outcome) Acked() bool {
	return o != Retry
}

// When iterations fail to poll the queue or list services, the loop
// slows down from one iteration per DefaultBackoff, to (at slowest)
// one per DefaultMaxBackoff.
const (
	DefaultBackoff    = 5 * time.Second
	DefaultMaxBackoff = 2 * time.Minute
)

// Daemon moves services onto images as they are pushed.
type Daemon struct {
	Queue    queue.Queue
	Cluster  cluster.Cluster
	Registry registry.Registry
	// Only services the filter lets through are candidates for
	// updates; nil means all services.
	Filter cluster.Filter
	// Only images the includer includes are acted on; nil means
	// all images.
	Includer cluster.Includer
	Logger   log.Logger
	// Limits how quickly we go around the loop when things are
	// failing. Nil means the defaults above.
	Backoff *Backoff
}

// Iterate does one round: receive a batch of messages, list the
// services, and process each message in turn. An error is returned
// only if the batch as a whole could not be dealt with; failures for
// individual messages are logged, and decide whether the message is
// acked.
func (d *Daemon) Iterate(ctx context.Context) error {
	msgs, err := d.Queue.Receive(ctx)
	if err != nil {
		iterationErrors.With(fluxmetrics.LabelStage, "poll").Add(1)
		return err
	}
	batchSize.Observe(float64(len(msgs)))
	if len(msgs) == 0 {
		return nil
	}

	services, err := d.Cluster.ListServices(ctx)
	if err != nil {
		iterationErrors.With(fluxmetrics.LabelStage, "list").Add(1)
		return err
	}
	catalog := cluster.BuildCatalog(services, d.Filter, d.Includer)
	level.Debug(d.Logger).Log("messages", len(msgs), "services", len(services), "candidates", catalog.Len())
	if refs := catalog.Ambiguous(); len(refs) > 0 {
		level.Debug(d.Logger).Log("msg", "images run by more than one service", "refs", fmt.Sprint(refs))
	}

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger := log.With(d.Logger, "message", msg.ID)
		outcome := d.processMessage(ctx, logger, catalog, msg)
		messageOutcomes.With(fluxmetrics.LabelOutcome, string(outcome)).Add(1)
		if !outcome.Acked() {
			continue
		}
		if err := d.Queue.Delete(ctx, msg.ReceiptHandle); err != nil {
			level.Error(logger).Log("outcome", outcome, "err", err)
		}
	}
	return nil
}

func (d *Daemon) processMessage(ctx context.Context, logger log.Logger, catalog *cluster.Catalog, msg queue.Message) Outcome {
	level.Debug(logger).Log("body", msg.Body)
	ev, err := event.Decode([]byte(msg.Body))
	if err != nil {
		level.Error(logger).Log("msg", "dropping invalid message", "err", err)
		return Dropped
	}
	if ev == nil {
		level.Debug(logger).Log("msg", "skipping message, not a successful image push")
		return Skipped
	}

	ref := ev.CanonicalRef()
	logger = log.With(logger, "ref", ref)
	svc, err := catalog.Lookup(ref)
	switch {
	case fluxerr.IsMissing(err):
		level.Debug(logger).Log("msg", "no service matching image")
		return Unmatched
	case err != nil:
		level.Error(logger).Log("msg", "not updating", "err", err)
		return Dropped
	}

	logger = log.With(logger, "service", svc.ID)
	plan, err := update.MakePlan(svc, *ev)
	if err != nil {
		return failed(logger, err)
	}
	creds, err := d.Registry.Credentials(ctx, ev.AccountID, ev.Region)
	if err != nil {
		return failed(logger, err)
	}

	started := time.Now()
	err = d.Cluster.UpdateService(ctx, plan.ServiceID, plan.Version, plan.Spec, creds)
	updateDuration.With(
		fluxmetrics.LabelSuccess, fmt.Sprint(err == nil),
	).Observe(time.Since(started).Seconds())
	if err != nil {
		return failed(logger, err)
	}
	level.Info(logger).Log("msg", "updated service", "name", plan.ServiceName, "image", plan.Image)
	return Updated
}

func failed(logger log.Logger, err error) Outcome {
	if fluxerr.Retryable(err) {
		level.Warn(logger).Log("msg", "leaving message to be retried", "err", err)
		return Retry
	}
	level.Error(logger).Log("msg", "dropping message", "err", err)
	return Dropped
}
