package grpcsubmit

import (
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"claimwire.io/claimwire/verify"
)

// Each rejection reason gets a distinct gRPC code where one exists;
// incomplete and malformed submissions share InvalidArgument and are
// disambiguated by the reason prefix in the status message.
var reasonCodes = map[verify.Reason]codes.Code{
	verify.ReasonIncomplete:       codes.InvalidArgument,
	verify.ReasonMalformedPayload: codes.InvalidArgument,
	verify.ReasonUnknownMiner:     codes.NotFound,
	verify.ReasonBadHash:          codes.DataLoss,
	verify.ReasonBadSignature:     codes.Unauthenticated,
	verify.ReasonStaleTimestamp:   codes.OutOfRange,
	verify.ReasonReplay:           codes.AlreadyExists,
}

var codeReasons = map[codes.Code]verify.Reason{
	codes.NotFound:        verify.ReasonUnknownMiner,
	codes.DataLoss:        verify.ReasonBadHash,
	codes.Unauthenticated: verify.ReasonBadSignature,
	codes.OutOfRange:      verify.ReasonStaleTimestamp,
	codes.AlreadyExists:   verify.ReasonReplay,
}

// mapRejection converts a verify outcome into a gRPC status error. Internal
// failures (not rejections) become codes.Internal without detail leakage.
func mapRejection(err error) error {
	if err == nil {
		return nil
	}
	reason, ok := verify.ReasonOf(err)
	if !ok {
		return status.Error(codes.Internal, "verification unavailable")
	}
	code, ok := reasonCodes[reason]
	if !ok {
		code = codes.InvalidArgument
	}
	return status.Error(code, err.Error())
}

// mapRPC is the client-side dual of mapRejection: it reconstructs a
// *verify.RejectionError from the status code, falling back to the reason
// prefix in the message for codes shared by several reasons.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	if reason, ok := codeReasons[st.Code()]; ok {
		return &verify.RejectionError{Reason: reason, Message: trimReasonPrefix(st.Message(), reason)}
	}
	if st.Code() == codes.InvalidArgument {
		for _, reason := range []verify.Reason{verify.ReasonIncomplete, verify.ReasonMalformedPayload} {
			if strings.HasPrefix(st.Message(), string(reason)) {
				return &verify.RejectionError{Reason: reason, Message: trimReasonPrefix(st.Message(), reason)}
			}
		}
		return &verify.RejectionError{Reason: verify.ReasonMalformedPayload, Message: st.Message()}
	}
	return err
}

func trimReasonPrefix(msg string, reason verify.Reason) string {
	msg = strings.TrimPrefix(msg, string(reason))
	return strings.TrimPrefix(msg, ": ")
}
