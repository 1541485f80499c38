// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package gateway

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"time"

	"sqlaunch/cli/internal/job"
	"sqlaunch/cli/internal/launcher"
	"sqlaunch/cli/internal/metrics"
	"sqlaunch/cli/internal/runtime"
	"sqlaunch/cli/internal/tableenv"

	"github.com/pterm/pterm"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Registry looks up jobs by id.
type Registry interface {
	Job(id string) (job.Info, bool)
}

// Server serves the gateway service and the standard health service.
type Server struct {
	bridge launcher.Bridge
	jobs   Registry
	out    io.Writer
	log    *pterm.Logger

	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
}

// NewServer builds a gateway over bridge. Statements received are announced
// on out exactly like those given on the command line.
func NewServer(bridge launcher.Bridge, jobs Registry, out io.Writer, log *pterm.Logger) *Server {
	if log == nil {
		log = pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)
	}
	s := &Server{bridge: bridge, jobs: jobs, out: out, log: log, health: health.NewServer()}
	s.grpc = grpc.NewServer(grpc.UnaryInterceptor(s.observe))
	s.grpc.RegisterService(&serviceDesc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Listen binds addr. Serve must be called afterwards.
func (s *Server) Listen(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = lis
	return nil
}

// Addr is the bound address, or "" before Listen.
func (s *Server) Addr() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// Serve blocks until Stop. A listener passed in replaces the one from Listen.
func (s *Server) Serve(lis net.Listener) error {
	if lis == nil {
		lis = s.lis
	}
	if lis == nil {
		return stderrors.New("gateway: no listener")
	}
	err := s.grpc.Serve(lis)
	if stderrors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Stop drains in-flight calls until ctx is done, then closes connections.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
		<-done
	}
}

func (s *Server) Submit(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	cmds := launcher.Commands([]string{in.GetValue()})
	if len(cmds) == 0 {
		return nil, status.Error(codes.InvalidArgument, tableenv.ErrEmptyStatement.Error())
	}

	var res *tableenv.TableResult
	l := &launcher.Launcher{
		Out:       s.out,
		Bridge:    s.bridge,
		Await:     launcher.AwaitNone,
		Submitted: func(_ string, r *tableenv.TableResult) { res = r },
	}
	if err := l.Run(ctx, cmds); err != nil {
		return nil, toStatus(err)
	}

	if res.Job == nil {
		return nil, status.Error(codes.Internal, "bridge returned no job")
	}
	return toStruct(res.Job.Info())
}

func (s *Server) Job(_ context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	info, ok := s.jobs.Job(in.GetValue())
	if !ok {
		return nil, status.Errorf(codes.NotFound, "job %q not found", in.GetValue())
	}
	return toStruct(info)
}

func (s *Server) observe(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	metrics.GatewayRequests.WithLabelValues(info.FullMethod, code.String()).Inc()
	s.log.Debug("gateway call", s.log.Args("method", info.FullMethod, "code", code.String(), "took", time.Since(start).String()))
	return resp, err
}

// toStatus maps bridge errors to gRPC codes; the engine's message is kept.
func toStatus(err error) error {
	switch {
	case stderrors.Is(err, tableenv.ErrEmptyStatement):
		return status.Error(codes.InvalidArgument, err.Error())
	case stderrors.Is(err, runtime.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	case stderrors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case stderrors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Aborted, err.Error())
}

func toStruct(info job.Info) (*structpb.Struct, error) {
	b, err := json.Marshal(info)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(b, st); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return st, nil
}

func fromStruct(st *structpb.Struct) (job.Info, error) {
	b, err := protojson.Marshal(st)
	if err != nil {
		return job.Info{}, err
	}
	var info job.Info
	err = json.Unmarshal(b, &info)
	return info, err
}
