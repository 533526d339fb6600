// Command devicesim plays the watch side of the device channel: it asks the
// relay for a location once, acknowledges the reply and prints it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/selene/internal/appmessage"
	"github.com/UnknownOlympus/selene/internal/channel"
	"github.com/UnknownOlympus/selene/internal/models"
	"github.com/gorilla/websocket"
)

func main() {
	url := flag.String("url", "ws://localhost:9000"+channel.DevicePath, "websocket address of the relay device channel")
	timeout := flag.Duration("timeout", 30*time.Second, "how long to wait for coordinates")
	verbose := flag.Bool("v", false, "log frames")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	coords, err := requestLocation(ctx, *url, logger)
	if err != nil {
		log.Fatalf("Failed to get coordinates: %v", err)
	}

	printCoordinates(os.Stdout, coords)
}

// requestLocation sends a location request and waits for the first coordinate record.
func requestLocation(ctx context.Context, url string, log *slog.Logger) (models.Coordinates, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer conn.Close()

	// ReadJSON does not observe ctx.
	stopWatch := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopWatch()

	request := channel.Frame{
		Type:    channel.FrameAppMessage,
		Payload: appmessage.Dictionary{appmessage.KeyRequestLocation: 1},
	}
	if err = conn.WriteJSON(request); err != nil {
		return models.Coordinates{}, fmt.Errorf("failed to send location request: %w", err)
	}
	log.DebugContext(ctx, "Location request sent")

	for {
		var frame channel.Frame
		if err = conn.ReadJSON(&frame); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return models.Coordinates{}, ctxErr
			}
			return models.Coordinates{}, fmt.Errorf("failed to read reply: %w", err)
		}

		if frame.Type != channel.FrameAppMessage {
			log.DebugContext(ctx, "Ignoring frame", "type", frame.Type)
			continue
		}

		coords, decodeErr := appmessage.DecodeCoordinates(frame.Payload)
		if decodeErr != nil {
			nack := channel.Frame{Type: channel.FrameNack, TransactionID: frame.TransactionID}
			return models.Coordinates{}, errors.Join(decodeErr, conn.WriteJSON(nack))
		}

		ack := channel.Frame{Type: channel.FrameAck, TransactionID: frame.TransactionID}
		if err = conn.WriteJSON(ack); err != nil {
			return models.Coordinates{}, fmt.Errorf("failed to acknowledge coordinates: %w", err)
		}
		log.DebugContext(ctx, "Coordinates acknowledged", "transaction_id", frame.TransactionID)

		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))

		return coords, nil
	}
}

// printCoordinates reports the pair the way the watch reads it: whole degrees,
// with a negative latitude flipping the moon for the southern hemisphere.
func printCoordinates(out io.Writer, coords models.Coordinates) {
	fmt.Fprintf(out, "latitude:   %.4f (%d)\n", coords.Latitude, int32(coords.Latitude))
	fmt.Fprintf(out, "longitude:  %.4f (%d)\n", coords.Longitude, int32(coords.Longitude))
	fmt.Fprintf(out, "hemisphere: %s\n", hemisphere(coords.Latitude))
}

func hemisphere(latitude float64) string {
	if int32(latitude) < 0 {
		return "southern"
	}

	return "northern"
}
