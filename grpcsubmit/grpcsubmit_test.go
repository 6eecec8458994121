package grpcsubmit

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"claimwire.io/claimwire/artifact"
	"claimwire.io/claimwire/claim"
	"claimwire.io/claimwire/keys"
	"claimwire.io/claimwire/storage/memory"
	"claimwire.io/claimwire/submission"
	"claimwire.io/claimwire/verify"
)

var testNow = time.Unix(1700000000, 0)

type fixedRand struct{ b byte }

func (r fixedRand) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
	}
	return len(p), nil
}

func startServer(t *testing.T) (*Client, *submission.Builder) {
	t.Helper()

	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	id, err := keys.NewEd25519Identity(seed)
	require.NoError(t, err)

	dir, err := keys.NewDirectory(map[int64]string{1: id.PublicKeyString()})
	require.NoError(t, err)

	verifier, err := verify.NewVerifier(dir, verify.NewMemoryNonceStore(10*time.Minute))
	require.NoError(t, err)
	verifier.Now = func() time.Time { return testNow }
	verifier.Ledger = memory.New()

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterSubmissionsServer(s, &Server{Verifier: verifier})
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })

	builder, err := submission.NewBuilder(id)
	require.NoError(t, err)
	builder.Rand = fixedRand{b: 0x42}
	builder.Now = func() time.Time { return testNow }

	return &Client{cc: cc, client: NewSubmissionsClient(cc)}, builder
}

func buildEnvelope(t *testing.T, b *submission.Builder) *submission.Envelope {
	t.Helper()
	env, _, err := b.Build(submission.Request{
		TaskID:      "t1",
		MinerID:     1,
		Performance: 0.92,
		Hyperparameters: claim.Map(
			claim.Entry{Key: "lr", Value: claim.Float(0.001)},
		),
		Files: []artifact.File{
			{Name: "train.py", Content: []byte("hello")},
		},
	})
	require.NoError(t, err)
	return env
}

func TestSubmit_EndToEnd(t *testing.T) {
	client, builder := startServer(t)
	env := buildEnvelope(t, builder)

	receipt, err := client.Submit(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, int64(1), receipt.MinerID)
	require.Equal(t, "t1", receipt.TaskID)
	require.True(t, strings.HasPrefix(receipt.ClaimCID, "b"), "expected CIDv1 base32, got %s", receipt.ClaimCID)
	require.NotEmpty(t, receipt.ArtifactCID)
}

func TestSubmit_ReplayRejectedWithReason(t *testing.T) {
	client, builder := startServer(t)
	env := buildEnvelope(t, builder)

	_, err := client.Submit(context.Background(), env)
	require.NoError(t, err)

	_, err = client.Submit(context.Background(), env)
	require.Error(t, err)
	var rej *verify.RejectionError
	require.True(t, errors.As(err, &rej), "expected RejectionError, got %v", err)
	require.Equal(t, verify.ReasonReplay, rej.Reason)
}

func TestSubmit_TamperedPayloadRejected(t *testing.T) {
	client, builder := startServer(t)
	env := buildEnvelope(t, builder)
	env.Payload = []byte(strings.Replace(string(env.Payload), "0.92", "0.99", 1))

	_, err := client.Submit(context.Background(), env)
	reason, ok := verify.ReasonOf(err)
	require.True(t, ok, "expected rejection, got %v", err)
	require.Equal(t, verify.ReasonBadSignature, reason)
}

func TestSubmit_IncompleteRejectedClientSide(t *testing.T) {
	client, builder := startServer(t)
	env := buildEnvelope(t, builder)
	env.Signature = ""

	// Marshal refuses an incomplete envelope before any RPC happens.
	_, err := client.Submit(context.Background(), env)
	require.ErrorIs(t, err, submission.ErrIncomplete)
}

func TestRejectionStatusRoundTrip(t *testing.T) {
	reasons := []verify.Reason{
		verify.ReasonIncomplete,
		verify.ReasonMalformedPayload,
		verify.ReasonUnknownMiner,
		verify.ReasonBadHash,
		verify.ReasonBadSignature,
		verify.ReasonStaleTimestamp,
		verify.ReasonReplay,
	}
	for _, want := range reasons {
		wire := mapRejection(&verify.RejectionError{Reason: want, Message: "detail"})
		back := mapRPC(wire)
		var rej *verify.RejectionError
		require.True(t, errors.As(back, &rej), "reason %s did not round trip: %v", want, back)
		require.Equal(t, want, rej.Reason)
	}
}

func TestMapRejection_InternalErrorsAreOpaque(t *testing.T) {
	wire := mapRejection(errors.New("ledger disk full"))
	require.NotContains(t, wire.Error(), "disk full")
	back := mapRPC(wire)
	require.False(t, verify.IsRejection(back), "internal failure misreported as rejection")
}
