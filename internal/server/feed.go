package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/playperu/odysseus/internal/hunt"
)

// FeedFrame is a device-to-server message on the location feed. A frame
// with Error set reports that positioning failed.
type FeedFrame struct {
	LocationRequest
	Error string `json:"error,omitempty"`
}

// FeedMessage is a server-to-device message: the status after each fix,
// or an engine event as it happens.
type FeedMessage struct {
	Type   string          `json:"type"`
	Status *hunt.Status    `json:"status,omitempty"`
	Event  json.RawMessage `json:"event,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// handleFeed upgrades to a websocket that carries location fixes in and
// status frames out. It closes when the session ends.
func handleFeed(broker *Broker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		participant := participantFrom(r)

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithTimeout(r.Context(), 4*time.Hour)
		defer cancel()

		events := broker.Subscribe(participant)
		defer broker.Unsubscribe(participant, events)

		frames := make(chan FeedFrame)
		readErr := make(chan error, 1)
		go func() {
			for {
				var f FeedFrame
				if err := wsjson.Read(ctx, conn, &f); err != nil {
					readErr <- err
					return
				}
				select {
				case frames <- f:
				case <-ctx.Done():
					return
				}
			}
		}()

		if err := writeStatus(ctx, conn, sess); err != nil {
			logger.Debug("websocket write failed", "error", err)
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-sess.Done():
				conn.Close(websocket.StatusNormalClosure, "attempt closed")
				return
			case err := <-readErr:
				logger.Debug("websocket read ended", "error", err)
				return
			case data := <-events:
				if err := wsjson.Write(ctx, conn, FeedMessage{Type: "event", Event: data}); err != nil {
					logger.Debug("websocket write failed", "error", err)
					return
				}
			case f := <-frames:
				if err := applyFrame(ctx, sess, f); err != nil {
					if errors.Is(err, hunt.ErrSessionClosed) {
						conn.Close(websocket.StatusNormalClosure, "attempt closed")
						return
					}
					if err := wsjson.Write(ctx, conn, FeedMessage{Type: "error", Error: err.Error()}); err != nil {
						return
					}
					continue
				}
				if err := writeStatus(ctx, conn, sess); err != nil {
					logger.Debug("websocket write failed", "error", err)
					return
				}
			}
		}
	}
}

func applyFrame(ctx context.Context, sess *hunt.Session, f FeedFrame) error {
	if f.Error != "" {
		return sess.Do(ctx, func(a *hunt.Attempt) error {
			a.LocationFailed(f.Error)
			return nil
		})
	}
	loc, err := f.location()
	if err != nil {
		return err
	}
	return sess.Do(ctx, func(a *hunt.Attempt) error {
		a.UpdateLocation(loc)
		return nil
	})
}

func writeStatus(ctx context.Context, conn *websocket.Conn, sess *hunt.Session) error {
	st, err := sess.Status(ctx)
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, conn, FeedMessage{Type: "status", Status: &st})
}
