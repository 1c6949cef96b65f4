package firehosepb

import (
	"context"

	"google.golang.org/grpc"
)

// FirehoseClient is the generated-style client stub for the Firehose
// service defined in firehose.proto.
type FirehoseClient interface {
	GetBlockByHeight(ctx context.Context, req *BlockByHeightRequest, opts ...grpc.CallOption) (*Block, error)
	GetBestHeight(ctx context.Context, req *Empty, opts ...grpc.CallOption) (*BestHeightResponse, error)
}

type firehoseClient struct {
	cc *grpc.ClientConn
}

// NewFirehoseClient builds a FirehoseClient over an established connection.
// Every method adds grpc.CallContentSubtype(codecName) to its call options,
// so requests are encoded with this package's codec without any dial option.
func NewFirehoseClient(cc *grpc.ClientConn) FirehoseClient {
	return &firehoseClient{cc: cc}
}

func (c *firehoseClient) GetBlockByHeight(ctx context.Context, req *BlockByHeightRequest, opts ...grpc.CallOption) (*Block, error) {
	out := new(Block)
	opts = append(opts, grpc.CallContentSubtype(codecName))
	if err := c.cc.Invoke(ctx, "/firehose.Firehose/GetBlockByHeight", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *firehoseClient) GetBestHeight(ctx context.Context, req *Empty, opts ...grpc.CallOption) (*BestHeightResponse, error) {
	out := new(BestHeightResponse)
	opts = append(opts, grpc.CallContentSubtype(codecName))
	if err := c.cc.Invoke(ctx, "/firehose.Firehose/GetBestHeight", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
