package scoring

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/banshee-data/nanocall/internal/fault"
	"github.com/banshee-data/nanocall/internal/matrix"
	"github.com/banshee-data/nanocall/internal/models"
	"github.com/banshee-data/nanocall/internal/monitoring"
)

func init() {
	encoding.RegisterCodec(codec{})
}

const scoreMethod = "/nanocall.scoring.Scorer/Score"

// MaxMessageSize bounds request and response messages on both ends. A
// transducer posterior for a long read runs well past gRPC's 4 MiB default.
const MaxMessageSize = 64 << 20

// ServerOptions returns the options a scoring server needs to accept and
// return full-size windows.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.MaxRecvMsgSize(MaxMessageSize),
		grpc.MaxSendMsgSize(MaxMessageSize),
	}
}

// ScorerServer is the server side of the remote scoring service.
type ScorerServer interface {
	Score(context.Context, *ScoreRequest) (*ScoreResponse, error)
}

func scoreHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ScoreRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScorerServer).Score(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: scoreMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScorerServer).Score(ctx, req.(*ScoreRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes the nanocall.scoring.Scorer service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "nanocall.scoring.Scorer",
	HandlerType: (*ScorerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Score", Handler: scoreHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/scoring/pb/scoring.proto",
}

// RegisterScorerServer registers srv with s.
func RegisterScorerServer(s grpc.ServiceRegistrar, srv ScorerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Server exposes a Registry over gRPC.
type Server struct {
	registry Registry
}

var _ ScorerServer = (*Server)(nil)

// NewServer creates a server backed by reg.
func NewServer(reg Registry) *Server {
	return &Server{registry: reg}
}

// Score implements ScorerServer.
func (s *Server) Score(ctx context.Context, req *ScoreRequest) (*ScoreResponse, error) {
	model, err := models.ParseModel(req.Model)
	if err != nil {
		return nil, toStatus(err)
	}
	m, err := s.registry.Score(ctx, model, req.Samples, Options{
		MinProb:    req.MinProb,
		TempWeight: req.TempWeight,
		TempBias:   req.TempBias,
		UseLog:     req.UseLog,
	})
	if err != nil {
		monitoring.Logf("scoring: %s: %v", req.Model, err)
		return nil, toStatus(err)
	}
	defer m.Release()

	resp := &ScoreResponse{
		Rows:   uint32(m.Rows()),
		Cols:   uint32(m.Cols()),
		Scores: make([]float32, 0, m.Rows()*m.Cols()),
	}
	for i := 0; i < m.Rows(); i++ {
		resp.Scores = append(resp.Scores, m.Row(i)...)
	}
	return resp, nil
}

func toStatus(err error) error {
	switch fault.KindOf(err) {
	case fault.KindUnrecognizedModel:
		return status.Error(codes.NotFound, err.Error())
	case fault.KindInvalidArgument:
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func fromStatus(op string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fault.Wrapf(fault.KindUnrecognizedModel, op, err, "remote")
	case codes.InvalidArgument:
		return fault.Wrapf(fault.KindInvalidArgument, op, err, "remote")
	}
	return fault.Wrapf(fault.KindScoringFailure, op, err, "remote")
}

// Client is a connection to a remote scoring service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target. The connection is plaintext unless opts
// override the transport credentials.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	all := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(MaxMessageSize),
			grpc.MaxCallSendMsgSize(MaxMessageSize),
		),
	}, opts...)
	conn, err := grpc.NewClient(target, all...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error { return c.conn.Close() }

// Scorer returns a Scorer for model backed by the remote service.
func (c *Client) Scorer(model models.Model) *RemoteScorer {
	return &RemoteScorer{conn: c.conn, model: model}
}

// Registry returns a Registry routing every listed model to the remote
// service.
func (c *Client) Registry(ms ...models.Model) Registry {
	reg := make(Registry, len(ms))
	for _, m := range ms {
		reg[m] = c.Scorer(m)
	}
	return reg
}

// RemoteScorer scores windows for one model over gRPC.
type RemoteScorer struct {
	conn  grpc.ClientConnInterface
	model models.Model
}

var _ Scorer = (*RemoteScorer)(nil)

// Score implements Scorer.
func (s *RemoteScorer) Score(ctx context.Context, window []float32, opts Options) (*matrix.Matrix, error) {
	const op = "scoring.RemoteScorer.Score"
	req := &ScoreRequest{
		Model:      s.model.String(),
		Samples:    window,
		MinProb:    opts.MinProb,
		TempWeight: opts.TempWeight,
		TempBias:   opts.TempBias,
		UseLog:     opts.UseLog,
	}
	resp := new(ScoreResponse)
	if err := s.conn.Invoke(ctx, scoreMethod, req, resp, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, fromStatus(op, err)
	}

	rows, cols := int(resp.Rows), int(resp.Cols)
	if len(resp.Scores) != rows*cols {
		return nil, fault.New(fault.KindScoringFailure, op,
			"%d scores for a %dx%d matrix", len(resp.Scores), rows, cols)
	}
	m := matrix.New(rows, cols)
	for i := 0; i < rows; i++ {
		copy(m.Row(i), resp.Scores[i*cols:(i+1)*cols])
	}
	return m, nil
}
