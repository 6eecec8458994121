package grpcsubmit

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"claimwire.io/claimwire/verify"
)

// receiptJSON is the reply body for an accepted submission.
type receiptJSON struct {
	ClaimCID    string `json:"claim_cid"`
	ArtifactCID string `json:"artifact_cid"`
	MinerID     int64  `json:"miner_id"`
	TaskID      string `json:"task_id"`
}

// Server exposes a verify.Verifier over the Submissions gRPC service.
type Server struct {
	UnimplementedSubmissionsServer
	Verifier *verify.Verifier
}

func (s *Server) Submit(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	_ = ctx
	if s == nil || s.Verifier == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing verifier")
	}

	receipt, err := s.Verifier.VerifyFramed(in.GetValue())
	if err != nil {
		if reason, ok := verify.ReasonOf(err); ok {
			log.WithFields(log.Fields{"reason": reason}).Info("submission rejected")
		} else {
			log.WithError(err).Error("verification failed internally")
		}
		return nil, mapRejection(err)
	}

	log.WithFields(log.Fields{
		"miner_id":  receipt.MinerID,
		"task_id":   receipt.TaskID,
		"claim_cid": receipt.ClaimCID,
	}).Info("submission accepted")

	body, err := json.Marshal(receiptJSON{
		ClaimCID:    receipt.ClaimCID,
		ArtifactCID: receipt.ArtifactCID,
		MinerID:     receipt.MinerID,
		TaskID:      receipt.TaskID,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode receipt")
	}
	return wrapperspb.String(string(body)), nil
}
