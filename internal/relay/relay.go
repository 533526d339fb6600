package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/selene/internal/appmessage"
	"github.com/UnknownOlympus/selene/internal/channel"
	"github.com/UnknownOlympus/selene/internal/location"
	"github.com/UnknownOlympus/selene/internal/metrics"
	"github.com/UnknownOlympus/selene/internal/models"
)

// Relay answers device requests with the phone's current coordinates.
// Every inbound app message starts one independent location request; when it
// resolves, or fails, exactly one coordinate pair is sent back.
type Relay struct {
	log          *slog.Logger     // Logger for logging relay activities
	channel      channel.Channel  // Channel to the paired device
	locator      location.Locator // Locator answering position requests
	providerName string           // Name of the provider for metrics labeling
	metrics      *metrics.Metrics // Metrics for tracking relay outcomes
	options      location.Options // Options used for every position request
	inflight     sync.WaitGroup   // Tracks requests that have not sent yet

	mu     sync.Mutex // mu orders request admission against Wait
	closed bool       // closed is set once Wait has been called
}

// NewRelay creates a new instance of Relay. Handlers are not attached until Register is called.
func NewRelay(
	log *slog.Logger,
	ch channel.Channel,
	locator location.Locator,
	providerName string,
	metrics *metrics.Metrics,
) *Relay {
	return &Relay{
		log:          log,
		channel:      ch,
		locator:      locator,
		providerName: providerName,
		metrics:      metrics,
		options:      location.DefaultOptions(),
	}
}

// Register attaches the relay to the channel's ready and appmessage events.
func (r *Relay) Register() {
	r.channel.On(appmessage.EventReady, r.onReady)
	r.channel.On(appmessage.EventAppMessage, r.onAppMessage)
}

// Wait stops admitting new requests and blocks until every request started
// so far has finished sending. Events delivered after Wait are logged and dropped.
func (r *Relay) Wait() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.inflight.Wait()
}

// onReady only logs. Location is fetched once the device actually asks for it.
func (r *Relay) onReady(ctx context.Context, evt appmessage.Event) {
	r.metrics.EventsReceived.WithLabelValues(string(evt.Type)).Inc()
	r.log.InfoContext(ctx, "Device channel ready", "session", evt.Session)
}

func (r *Relay) onAppMessage(ctx context.Context, evt appmessage.Event) {
	r.metrics.EventsReceived.WithLabelValues(string(evt.Type)).Inc()
	r.log.InfoContext(ctx, "Received message", "session", evt.Session, "keys", len(evt.Payload))

	r.RequestAndRelayLocation(ctx)
}

// RequestAndRelayLocation issues one location request and returns immediately.
// The outcome is delivered to onLocationResolved or onLocationFailed on another goroutine.
func (r *Relay) RequestAndRelayLocation(ctx context.Context) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.log.WarnContext(ctx, "Relay is shutting down, dropping location request")
		return
	}
	r.inflight.Add(1)
	r.mu.Unlock()

	r.metrics.InflightRequests.Inc()

	go func() {
		defer r.inflight.Done()
		defer r.metrics.InflightRequests.Dec()

		startTime := time.Now()
		pos, err := r.locator.CurrentPosition(ctx, r.options)
		duration := time.Since(startTime).Seconds()
		r.metrics.LocationSeconds.WithLabelValues(r.providerName).Observe(duration)

		switch {
		case err != nil:
			r.onLocationFailed(ctx, err)
		case pos == nil:
			// A nil fix would mean sending no coordinates at all.
			r.onLocationFailed(ctx, &location.PositionError{
				Code:    location.CodePositionUnavailable,
				Message: "locator returned no position",
			})
		default:
			r.onLocationResolved(ctx, pos)
		}
	}()
}

// onLocationResolved forwards the fix exactly as received.
func (r *Relay) onLocationResolved(ctx context.Context, pos *models.Position) {
	r.metrics.LocationRequests.WithLabelValues("resolved").Inc()
	r.log.DebugContext(ctx, "Location resolved",
		"lat", pos.Coords.Latitude, "lon", pos.Coords.Longitude, "accuracy", pos.Accuracy)

	r.send(ctx, pos.Coords)
}

// onLocationFailed falls back to FallbackCoordinates whatever the cause.
func (r *Relay) onLocationFailed(ctx context.Context, err error) {
	r.metrics.LocationRequests.WithLabelValues("failed").Inc()
	r.log.WarnContext(ctx, "Error requesting location, sending fallback coordinates", "error", err)

	r.send(ctx, models.FallbackCoordinates())
}

// send submits the pair to the device. Failures are logged and dropped.
func (r *Relay) send(ctx context.Context, coords models.Coordinates) {
	if err := r.channel.SendAppMessage(ctx, appmessage.EncodeCoordinates(coords)); err != nil {
		r.metrics.MessagesSent.WithLabelValues("failure").Inc()
		r.log.ErrorContext(ctx, "Error sending coordinates to device",
			"lat", coords.Latitude, "lon", coords.Longitude, "error", err)
		return
	}

	r.metrics.MessagesSent.WithLabelValues("success").Inc()
	r.log.InfoContext(ctx, "Coordinates sent to device successfully",
		"lat", coords.Latitude, "lon", coords.Longitude)
}
