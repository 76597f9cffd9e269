// Package metrics exposes queue state as Prometheus metrics.
package metrics

import (
	"errors"
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/neocomx/CommentQueueService/task"
)

// Exporter is a prometheus.Collector reading the store at scrape time, so
// the queue path pays no metrics cost on its hot operations.
type Exporter struct {
	store *task.Store

	pendingComments *prom.Desc
	received        *prom.Desc
	posted          *prom.Desc
	failed          *prom.Desc
}

var _ prom.Collector = (*Exporter)(nil)

// NewExporter creates and registers the collector. Registering the same
// store twice on one registry returns the existing exporter instead of
// failing.
func NewExporter(namespace string, store *task.Store, reg prom.Registerer) (*Exporter, error) {
	if namespace == "" {
		namespace = "commentqueue"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	e := &Exporter{
		store: store,
		pendingComments: prom.NewDesc(
			prom.BuildFQName(namespace, "", "pending_comments"),
			"Number of comments currently waiting in the queue.",
			nil, nil,
		),
		received: prom.NewDesc(
			prom.BuildFQName(namespace, "", "comments_received_total"),
			"Total comments ever enqueued.",
			nil, nil,
		),
		posted: prom.NewDesc(
			prom.BuildFQName(namespace, "", "comments_posted_total"),
			"Total comments posted successfully.",
			nil, nil,
		),
		failed: prom.NewDesc(
			prom.BuildFQName(namespace, "", "comments_failed_total"),
			"Total comments that failed to post.",
			nil, nil,
		),
	}

	return registerCollector(reg, e)
}

func (e *Exporter) Describe(ch chan<- *prom.Desc) {
	ch <- e.pendingComments
	ch <- e.received
	ch <- e.posted
	ch <- e.failed
}

func (e *Exporter) Collect(ch chan<- prom.Metric) {
	received, success, fail := e.store.Counters()

	ch <- prom.MustNewConstMetric(e.pendingComments, prom.GaugeValue, float64(e.store.Len()))
	ch <- prom.MustNewConstMetric(e.received, prom.CounterValue, float64(received))
	ch <- prom.MustNewConstMetric(e.posted, prom.CounterValue, float64(success))
	ch <- prom.MustNewConstMetric(e.failed, prom.CounterValue, float64(fail))
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
