package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/ris-hl7-service/internal/services"
)

// maxInboundBytes bounds the inbound message body
const maxInboundBytes = 1 << 20

// InboundHandler receives wire messages from counterpart systems
type InboundHandler struct {
	protocol *services.ProtocolService
}

func NewInboundHandler(protocol *services.ProtocolService) *InboundHandler {
	return &InboundHandler{protocol: protocol}
}

// Receive handles one inbound message and answers with its acknowledgment
func (h *InboundHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxInboundBytes))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	ack, err := h.protocol.HandleInbound(r.Context(), string(body))
	if err != nil {
		if errors.Is(err, services.ErrInvalidMessage) {
			http.Error(w, "Unparseable message", http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Msg("Failed to process inbound message")
		http.Error(w, "Failed to process message", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/hl7")
	w.Write([]byte(ack))
}
