// Package metrics exposes Prometheus instrumentation for the interchange
// pipeline and the scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InboundMessages counts received interchange messages by type
	InboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ris_hl7_inbound_messages_total",
		Help: "Total inbound HL7 messages by message type",
	}, []string{"type"})

	// Acknowledgments counts acknowledgments returned by code
	Acknowledgments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ris_hl7_acknowledgments_total",
		Help: "Total acknowledgments returned by ack code",
	}, []string{"code"})

	// DispatchResults counts dispatch outcomes by message type and result
	DispatchResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ris_hl7_dispatch_results_total",
		Help: "Total dispatch outcomes by message type and result",
	}, []string{"type", "result"})

	// OutboundMessages counts messages sent to counterparts by type
	OutboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ris_hl7_outbound_messages_total",
		Help: "Total outbound HL7 messages by message type and counterpart",
	}, []string{"type", "counterpart"})

	// SchedulingRequests counts slot searches and bookings by outcome
	SchedulingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ris_scheduling_requests_total",
		Help: "Total scheduling operations by operation and outcome",
	}, []string{"operation", "outcome"})

	// BookingConflicts counts bookings rejected because the slot was taken
	BookingConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ris_scheduling_booking_conflicts_total",
		Help: "Total bookings rejected because the slot was already held or taken",
	})
)
