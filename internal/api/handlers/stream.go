package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/account"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/errors"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/utils"
)

const (
	defaultHeartbeat = 15 * time.Second
	streamBuffer     = 8
)

// StreamHandler pushes account snapshots to the client as server-sent events
type StreamHandler struct {
	service   account.Service
	logger    *logger.Logger
	heartbeat time.Duration
}

// NewStreamHandler creates a new stream handler. A heartbeat of zero uses 15s.
func NewStreamHandler(service account.Service, log *logger.Logger, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &StreamHandler{service: service, logger: log, heartbeat: heartbeat}
}

// Stream sends the current account, then every newer committed state, until
// the client disconnects.
// @Summary Stream account updates
// @Tags Account
// @Produce text/event-stream
// @Success 200 {object} account.Account "event: account"
// @Failure 404 {object} utils.ErrorResponse "Account not found"
// @Security BearerAuth
// @Router /me/account/stream [get]
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteError(w, errors.Internal("Streaming unsupported", nil))
		return
	}

	ctx := r.Context()
	updates := make(chan *account.Account, streamBuffer)
	handle, err := h.service.Watch(ctx, userID, func(a *account.Account) {
		// a slow client only ever needs the newest snapshot
		for {
			select {
			case updates <- a:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	if err != nil {
		utils.WriteErr(w, err, "Failed to watch account")
		return
	}
	defer handle.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := h.logger.WithUser(userID)
	log.Debug("Account stream opened")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("Account stream closed")
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case a := <-updates:
			if err := writeEvent(w, "account", a.Version, a); err != nil {
				log.WithError(err).Debug("Account stream write failed")
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, id int64, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", event, id, payload)
	return err
}
