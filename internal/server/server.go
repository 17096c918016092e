package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sjawhar/soundman/internal/audio"
	"github.com/sjawhar/soundman/internal/logger"
)

const shutdownTimeout = 5 * time.Second

// Deps are the collaborators behind the HTTP API. Sounds, Devices and
// Warnings are optional.
type Deps struct {
	Hub      *Hub
	Store    RecordingStore
	Capture  CaptureControl
	Sounds   SoundPlayer
	Devices  func() ([]audio.DeviceInfo, error)
	Warnings func() []string
	Log      *logrus.Entry
}

func Handler(deps Deps) http.Handler {
	log := logger.OrDiscard(deps.Log)
	if deps.Hub == nil {
		deps.Hub = NewHub(log)
	}

	mux := http.NewServeMux()

	registerWSRoute(mux, deps.Hub, log)
	registerAPIRoutes(mux, deps)

	return mux
}

// Serve runs the API on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, deps Deps) error {
	log := logger.OrDiscard(deps.Log)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           Handler(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	log.WithField("addr", ln.Addr().String()).Info("http api listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown error")
		return err
	}
	return nil
}
