package receiver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ragchat/answerrelay/pkg/relay"
	"github.com/ragchat/answerrelay/server/internal/httpx"
	"github.com/ragchat/answerrelay/server/internal/metrics"
	"github.com/ragchat/answerrelay/server/internal/store"
)

// maxBodyBytes bounds a single webhook body.
const maxBodyBytes = 1 << 20

// Receiver is the http.Handler for POST /webhook.
type Receiver struct {
	store *store.Store
	rec   *metrics.Recorder
	now   func() time.Time
}

// New creates a Receiver that writes accepted answers to st.
func New(st *store.Store, rec *metrics.Recorder) *Receiver {
	return &Receiver{store: st, rec: rec, now: time.Now}
}

func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	log := httpx.Logger(req.Context())

	var body relay.PushRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes)).Decode(&body); err != nil {
		r.rec.PushRejected()
		log.Warn("receiver: invalid webhook body", "err", err)
		httpx.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	userID := body.EffectiveUserID()
	log.Info("receiver: webhook received",
		"user_id", userID,
		"answer_length", len(body.Answer),
		"timestamp", body.Timestamp,
	)

	if userID == "" || body.Answer == "" {
		r.rec.PushRejected()
		log.Warn("receiver: webhook missing required fields", "user_id", userID)
		httpx.Error(w, http.StatusBadRequest, "Missing required fields: user_id, answer")
		return
	}

	if replaced := r.store.Put(userID, body.Answer, body.Timestamp); replaced {
		log.Warn("receiver: unclaimed answer replaced", "user_id", userID)
	}

	log.Debug("receiver: answer stored", "user_id", userID, "stored", r.store.Count())

	httpx.JSON(w, http.StatusOK, relay.PushResponse{
		Status:    relay.StatusReceived,
		Timestamp: r.now().UTC().Format(relay.TimeFormat),
	})
}
