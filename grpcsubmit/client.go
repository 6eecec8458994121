package grpcsubmit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"claimwire.io/claimwire/submission"
	"claimwire.io/claimwire/verify"
)

// Client submits envelopes to a Submissions service.
type Client struct {
	cc     *grpc.ClientConn
	client SubmissionsClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero. Artifacts
	// ride inside the request message, so this bounds artifact size.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewSubmissionsClient(cc), Timeout: 0}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// Submit sends one complete envelope and returns the server's receipt.
//
// A *verify.RejectionError means the submission itself was refused and
// resending it unchanged cannot succeed; any other error is a transport
// failure and may be retried.
func (c *Client) Submit(ctx context.Context, env *submission.Envelope) (*verify.Receipt, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("grpcsubmit: client not connected")
	}
	framed, err := env.Marshal()
	if err != nil {
		return nil, err
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	reply, err := c.client.Submit(ctx, wrapperspb.Bytes(framed))
	if err != nil {
		return nil, mapRPC(err)
	}

	var body receiptJSON
	if err := json.Unmarshal([]byte(reply.GetValue()), &body); err != nil {
		return nil, fmt.Errorf("grpcsubmit: undecodable receipt: %w", err)
	}
	return &verify.Receipt{
		ClaimCID:    body.ClaimCID,
		ArtifactCID: body.ArtifactCID,
		MinerID:     body.MinerID,
		TaskID:      body.TaskID,
	}, nil
}
