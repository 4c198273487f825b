package metrics

import (
	"net/http"
	"sync/atomic"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/ragchat/answerrelay/server/internal/store"
)

// Recorder accumulates HTTP-level relay counters. The zero value is ready to
// use and safe for concurrent use.
type Recorder struct {
	pushesRejected atomic.Int64
	polls          atomic.Int64
	pollsEmpty     atomic.Int64
}

// PushRejected counts a webhook push refused with 400.
func (r *Recorder) PushRejected() { r.pushesRejected.Add(1) }

// Poll counts one served poll; found is false for a "no_messages" reply.
func (r *Recorder) Poll(found bool) {
	r.polls.Add(1)
	if !found {
		r.pollsEmpty.Add(1)
	}
}

// Handler serves the metric families for st and rec.
type Handler struct {
	store *store.Store
	rec   *Recorder
}

// New creates a metrics Handler.
func New(st *store.Store, rec *Recorder) *Handler {
	return &Handler{store: st, rec: rec}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	w.WriteHeader(http.StatusOK)

	enc := expfmt.NewEncoder(w, format)
	for _, mf := range h.Families() {
		if err := enc.Encode(mf); err != nil {
			return
		}
	}
}

// Families builds the current metric families.
func (h *Handler) Families() []*dto.MetricFamily {
	s := h.store.Stats()
	return []*dto.MetricFamily{
		gauge("relay_answers_pending", "Unclaimed answers currently held.", float64(h.store.Count())),
		counter("relay_answers_stored_total", "Answers accepted from producers.", float64(s.Stored)),
		counter("relay_answers_replaced_total", "Unclaimed answers discarded by a newer push for the same user.", float64(s.Replaced)),
		counter("relay_answers_claimed_total", "Answers delivered to a poll.", float64(s.Claimed)),
		counter("relay_answers_expired_total", "Unclaimed answers removed after the max age.", float64(s.Expired)),
		counter("relay_pushes_rejected_total", "Webhook pushes rejected as invalid.", float64(h.rec.pushesRejected.Load())),
		counter("relay_polls_total", "Polls served.", float64(h.rec.polls.Load())),
		counter("relay_polls_empty_total", "Polls answered with no_messages.", float64(h.rec.pollsEmpty.Load())),
	}
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(v)}}},
	}
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(v)}}},
	}
}
