package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/UnknownOlympus/selene/internal/appmessage"
	"github.com/UnknownOlympus/selene/internal/channel"
	"github.com/UnknownOlympus/selene/internal/location"
	"github.com/UnknownOlympus/selene/internal/metrics"
	"github.com/UnknownOlympus/selene/internal/models"
	"github.com/UnknownOlympus/selene/internal/relay"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingProvider struct{}

func (failingProvider) Locate(context.Context) (*models.Position, error) {
	return nil, errors.New("no satellites in view")
}

func startRelay(t *testing.T, provider location.Provider) string {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ch := channel.NewWebSocketChannel(":0", time.Second, logger)
	locationRelay := relay.NewRelay(logger, ch, location.NewGeolocator(provider, logger), "test",
		metrics.NewMetrics(prometheus.NewRegistry()))
	locationRelay.Register()

	srv := httptest.NewServer(ch.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(locationRelay.Wait)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + channel.DevicePath
}

func TestRequestLocation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("resolved fix", func(t *testing.T) {
		sydney := models.Coordinates{Latitude: -33.8688, Longitude: 151.2093}
		url := startRelay(t, location.NewStaticProvider(sydney))

		ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
		defer cancel()

		coords, err := requestLocation(ctx, url, logger)
		require.NoError(t, err)
		assert.Equal(t, sydney, coords)
	})

	t.Run("fallback on failure", func(t *testing.T) {
		url := startRelay(t, failingProvider{})

		ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
		defer cancel()

		coords, err := requestLocation(ctx, url, logger)
		require.NoError(t, err)
		assert.Equal(t, models.FallbackCoordinates(), coords)
	})

	t.Run("unreachable relay", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
		defer cancel()

		_, err := requestLocation(ctx, "ws://127.0.0.1:1"+channel.DevicePath, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect")
	})
}

func TestRequestLocation_NacksMalformedReply(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	replies := make(chan channel.Frame, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var request channel.Frame
		if err = conn.ReadJSON(&request); err != nil {
			return
		}
		_ = conn.WriteJSON(channel.Frame{Type: channel.FrameAck})
		_ = conn.WriteJSON(channel.Frame{
			Type:          channel.FrameAppMessage,
			TransactionID: 7,
			Payload:       appmessage.Dictionary{appmessage.KeyLatitude: "north"},
		})

		var reply channel.Frame
		if err = conn.ReadJSON(&reply); err == nil {
			replies <- reply
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	_, err := requestLocation(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), logger)
	require.ErrorIs(t, err, appmessage.ErrInvalidValue)

	select {
	case reply := <-replies:
		assert.Equal(t, channel.FrameNack, reply.Type)
		assert.Equal(t, uint32(7), reply.TransactionID)
	case <-time.After(2 * time.Second):
		t.Fatal("no reply from device simulator")
	}
}

func TestPrintCoordinates(t *testing.T) {
	var buf bytes.Buffer
	printCoordinates(&buf, models.Coordinates{Latitude: 43, Longitude: 76})

	assert.Contains(t, buf.String(), "latitude:   43.0000 (43)")
	assert.Contains(t, buf.String(), "longitude:  76.0000 (76)")
	assert.Contains(t, buf.String(), "hemisphere: northern")
}

func TestHemisphere(t *testing.T) {
	assert.Equal(t, "northern", hemisphere(51.5074))
	assert.Equal(t, "southern", hemisphere(-33.8688))
	assert.Equal(t, "northern", hemisphere(0))
	// The watch truncates to whole degrees before comparing.
	assert.Equal(t, "northern", hemisphere(-0.5))
}

func TestShutdownWhileDeviceIsSending(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ch := channel.NewWebSocketChannel(listener.Addr().String(), time.Second, logger)
	appMetrics := metrics.NewMetrics(prometheus.NewRegistry())
	provider := location.NewStaticProvider(models.Coordinates{Latitude: 51.5074, Longitude: -0.1278})
	locationRelay := relay.NewRelay(logger, ch, location.NewGeolocator(provider, logger), "static", appMetrics)
	locationRelay.Register()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- ch.Serve(ctx, listener) }()

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+listener.Addr().String()+channel.DevicePath, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err)
	defer conn.Close()

	go func() {
		for {
			if conn.WriteJSON(channel.Frame{Type: channel.FrameAppMessage}) != nil {
				return
			}
		}
	}()
	go func() {
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(appMetrics.EventsReceived.WithLabelValues("appmessage")) > 5
	}, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err = <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("device channel did not stop")
	}

	waited := make(chan struct{})
	go func() {
		locationRelay.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not drain")
	}
	assert.InDelta(t, 0, testutil.ToFloat64(appMetrics.InflightRequests), 0)
}
