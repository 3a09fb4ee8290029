package feedback

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
)

// Client is the subset of a socket.io connection the bridge uses.
type Client interface {
	On(event string, fn func(args ...any))
	Emit(event string, args ...any)
	Close()
}

// Config describes how to reach the render host.
type Config struct {
	URL                string `validate:"required,url"`
	Namespace          string `validate:"omitempty,startswith=/"`
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration `validate:"min=0"`
}

const defaultConnectTimeout = 15 * time.Second

// Dial connects to the render host and waits for the handshake.
func Dial(ctx context.Context, cfg Config) (Client, error) {
	logger := ctxlog.FromContext(ctx).With("component", "feedback", "url", cfg.URL)
	logger.Info("Connecting to render host.")

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification.")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to render host.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		logger.Debug("Render host connection failed.", "error", err)
		connectChan <- err
	})

	io.Connect()

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return &socketClient{io: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-timer.C:
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}
}

type socketClient struct {
	io *socket.Socket
}

func (c *socketClient) On(event string, fn func(args ...any)) {
	c.io.On(types.EventName(event), fn)
}

func (c *socketClient) Emit(event string, args ...any) {
	c.io.Emit(event, args...)
}

func (c *socketClient) Close() {
	c.io.Disconnect()
}
