// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"time"

	"sqlaunch/cli/internal/job"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// DefaultPort is used when a gateway address has no port.
const DefaultPort = "7070"

// Client talks to a gateway.
type Client struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// Dial creates a client for addr. With useTLS the server name is taken from
// addr's host. Extra options are appended, which tests use to swap the dialer.
func Dial(addr string, useTLS bool, extra ...grpc.DialOption) (*Client, error) {
	host := addr
	target := addr
	switch h, _, err := net.SplitHostPort(addr); {
	case strings.Contains(addr, "://"):
		// resolver target such as passthrough:///name; used as is
	case err == nil:
		host = h
	default:
		target = net.JoinHostPort(addr, DefaultPort)
	}

	creds := insecure.NewCredentials()
	if useTLS {
		creds = credentials.NewTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	}
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, extra...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, health: healthpb.NewHealthClient(conn)}, nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Check asks the health service whether the gateway is serving.
func (c *Client) Check(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return errors.New("gateway is " + resp.GetStatus().String())
	}
	return nil
}

// Submit sends one statement. Inline statements come back finished with an
// empty ID; asynchronous ones describe the job as it was at submission.
func (c *Client) Submit(ctx context.Context, statement string) (job.Info, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, submitMethod, wrapperspb.String(statement), out); err != nil {
		return job.Info{}, err
	}
	return fromStruct(out)
}

// Job fetches a job's current state.
func (c *Client) Job(ctx context.Context, id string) (job.Info, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, jobMethod, wrapperspb.String(id), out); err != nil {
		return job.Info{}, err
	}
	return fromStruct(out)
}

// Wait polls a job every interval until it is terminal or ctx is done.
func (c *Client) Wait(ctx context.Context, id string, interval time.Duration) (job.Info, error) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		info, err := c.Job(ctx, id)
		if err != nil || info.Status.Terminal() {
			return info, err
		}
		select {
		case <-ctx.Done():
			return info, ctx.Err()
		case <-t.C:
		}
	}
}
