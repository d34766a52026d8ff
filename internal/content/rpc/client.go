package rpc

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"debatecoach/agent/internal/content"
	"debatecoach/agent/internal/types"
)

var metricReconnects = promauto.NewCounter(prometheus.CounterOpts{
	Name: "content_rpc_reconnects_total",
	Help: "Successful reconnects to the content service",
})

// Client is a content.Generator backed by a remote content service.
type Client struct {
	addr string
	opts []grpc.DialOption

	mu   sync.RWMutex
	conn *grpc.ClientConn
}

// NewClient does not dial; the connection is made on first use.
func NewClient(addr string, opts ...grpc.DialOption) *Client {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
	return &Client{addr: addr, opts: append(base, opts...)}
}

// getConn returns the persistent connection, lazily initialized.
func (c *Client) getConn() (*grpc.ClientConn, error) {
	c.mu.RLock()
	if c.conn != nil {
		defer c.mu.RUnlock()
		return c.conn, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := grpc.NewClient(c.addr, c.opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return conn, nil
}

// reconnect closes the current connection and re-dials after an
// exponential backoff with jitter.
func (c *Client) reconnect(ctx context.Context, attempt int) error {
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	base := 200 * time.Millisecond
	sleep := time.Duration(1<<uint(min(attempt, 5))) * base
	jitter := time.Duration(rand.Int64N(int64(base)))
	t := time.NewTimer(sleep + jitter)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	if _, err := c.getConn(); err != nil {
		return err
	}
	metricReconnects.Inc()
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// invoke makes one unary call, retrying once through a reconnect when the
// service reports Unavailable. Failures wrap content.ErrUnavailable.
func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var conn *grpc.ClientConn
		conn, err = c.getConn()
		if err != nil {
			break
		}
		err = conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, grpc.CallContentSubtype("json"))
		if err == nil {
			return nil
		}
		if status.Code(err) != codes.Unavailable || attempt > 0 {
			break
		}
		if rerr := c.reconnect(ctx, attempt); rerr != nil {
			break
		}
	}
	return content.Unavailable(method, err)
}

func (c *Client) StructureNotes(ctx context.Context, motion string, role types.Role, notes string) (string, error) {
	var out TextReply
	err := content.Instrument(ctx, "grpc", "structure_notes", func(ctx context.Context) error {
		return c.invoke(ctx, "StructureNotes", &StructureNotesRequest{Motion: motion, Role: role, Notes: notes}, &out)
	})
	return out.Text, err
}

func (c *Client) GeneratePOI(ctx context.Context, req content.POIRequest) (string, error) {
	var out TextReply
	err := content.Instrument(ctx, "grpc", "generate_poi", func(ctx context.Context) error {
		return c.invoke(ctx, "GeneratePOI", &req, &out)
	})
	return out.Text, err
}

func (c *Client) GradeRound(ctx context.Context, speeches []types.Speech, motion string, level types.SkillLevel) (types.Report, error) {
	var out ReportReply
	err := content.Instrument(ctx, "grpc", "grade_round", func(ctx context.Context) error {
		return c.invoke(ctx, "GradeRound", &GradeRoundRequest{Speeches: speeches, Motion: motion, SkillLevel: level}, &out)
	})
	return out.Report, err
}

func (c *Client) GenerateSpeech(ctx context.Context, req content.SpeechRequest) (string, error) {
	var out TextReply
	err := content.Instrument(ctx, "grpc", "generate_speech", func(ctx context.Context) error {
		return c.invoke(ctx, "GenerateSpeech", &req, &out)
	})
	return out.Text, err
}

// Ping asks the service's health endpoint whether the content service is
// serving.
func (c *Client) Ping(ctx context.Context) error {
	conn, err := c.getConn()
	if err != nil {
		return err
	}
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return status.Errorf(codes.Unavailable, "content service %s", resp.GetStatus())
	}
	return nil
}
