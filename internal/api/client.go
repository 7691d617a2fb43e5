package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/evaluation"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/report"
)

// #region client-struct
// Client talks to a remote evaluation service.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}
// #endregion client-struct

// #region constructor
// NewClient connects to the evaluation gRPC server at addr.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client over an existing connection.
// Used for testing with in-memory transports.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}
// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
// #endregion close

// #region calls
// Evaluate asks the server to evaluate a zone and store a new version.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (evaluation.Version, error) {
	var v evaluation.Version
	err := c.call(ctx, MethodEvaluate, req, &v)
	return v, err
}

// GetLatest returns the latest version of an output.
func (c *Client) GetLatest(ctx context.Context, outputID string) (evaluation.Version, error) {
	var v evaluation.Version
	err := c.call(ctx, MethodGetLatest, VersionRequest{OutputID: outputID}, &v)
	return v, err
}

// GetVersion returns one version of an output; number 0 means the latest.
func (c *Client) GetVersion(ctx context.Context, outputID string, number int) (evaluation.Version, error) {
	var v evaluation.Version
	err := c.call(ctx, MethodGetVersion, VersionRequest{OutputID: outputID, Number: number}, &v)
	return v, err
}

// ListVersions returns every version of an output, oldest first.
func (c *Client) ListVersions(ctx context.Context, outputID string) ([]evaluation.Version, error) {
	var list VersionList
	err := c.call(ctx, MethodListVersions, VersionRequest{OutputID: outputID}, &list)
	return list.Versions, err
}

// RenderReport returns the report of one version.
func (c *Client) RenderReport(ctx context.Context, outputID string, number int) (report.Document, error) {
	var doc report.Document
	err := c.call(ctx, MethodRenderReport, VersionRequest{OutputID: outputID, Number: number}, &doc)
	return doc, err
}

// Preview returns an unsaved report over live datapoints.
func (c *Client) Preview(ctx context.Context, req EvaluateRequest) (report.Document, error) {
	var doc report.Document
	err := c.call(ctx, MethodPreview, req, &doc)
	return doc, err
}

func (c *Client) call(ctx context.Context, method string, req, out any) error {
	in, err := toStruct(req)
	if err != nil {
		return fmt.Errorf("%s rpc: %w", method, err)
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, resp); err != nil {
		return fmt.Errorf("%s rpc: %w", method, fromStatus(err))
	}
	if err := fromStruct(resp, out); err != nil {
		return fmt.Errorf("%s rpc: %w", method, err)
	}
	return nil
}
// #endregion calls
