package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/imf-gadgets/gadget-core/internal/infrastructure/config"
)

// Timeouts for InfluxDB round trips.
const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
)

// Client records gadget lifecycle points in an InfluxDB v2 bucket.
//
// Points are buffered and written in batches by the underlying write API,
// so WriteGadgetEvent never blocks a request on the network. Write failures
// are delivered asynchronously to the SetOnError callback.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	bucket   string

	// connected is cleared by Close; writes after that are dropped.
	connected bool
	mu        sync.RWMutex

	onError func(err error)
}

// Connect establishes a connection to the InfluxDB server.
//
// It pings the server before returning so a misconfigured URL or token fails
// startup instead of the first lifecycle write. Batching comes from
// cfg.WriteBatchSize and cfg.WriteFlushInterval.
//
// Returns ErrDisabled when cfg.Enabled is false and ErrConnectionFailed when
// the server cannot be reached or reports itself unhealthy.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrConnectionFailed, cfg.URL, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: %s not healthy", ErrConnectionFailed, cfg.URL)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	c := &Client{
		client:    client,
		writeAPI:  writeAPI,
		bucket:    cfg.Bucket,
		connected: true,
	}
	go c.forwardWriteErrors(writeAPI.Errors())

	return c, nil
}

// writeOptions maps the batching config onto the client options. The
// client library takes the flush interval in milliseconds.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	flushMillis := cfg.WriteFlushInterval().Milliseconds()
	return influxdb2.DefaultOptions().
		SetBatchSize(cfg.WriteBatchSize()).
		SetFlushInterval(uint(flushMillis)) //nolint:gosec // WriteFlushInterval is always positive
}

// forwardWriteErrors hands asynchronous write failures to the current
// callback until the write API closes the channel.
func (c *Client) forwardWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()

		if callback != nil {
			callback(fmt.Errorf("writing to bucket %s: %w", c.bucket, err))
		}
	}
}

// Close flushes buffered lifecycle points and closes the client.
// Safe to call on a nil Client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server. It returns ErrNotConnected after Close.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// IsConnected reports whether Close has not yet been called. It reflects
// local state only; use HealthCheck for an active ping.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError sets the callback for asynchronous write failures. The error
// passed to it names the bucket.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush blocks until buffered points are sent. No-op after Close.
func (c *Client) Flush() {
	if c.writeAPI == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}
