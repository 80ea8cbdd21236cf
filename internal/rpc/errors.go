package rpc

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/internet-banking/internal/ledger"
)

// ErrorDomain tags the ErrorInfo detail attached to every ledger failure.
const ErrorDomain = "banking.ledger"

// fail converts a ledger error into a status carrying the ledger code as ErrorInfo.Reason.
// Errors outside the taxonomy are logged and reported as a bare Internal.
func (s *Server) fail(ctx context.Context, err error) error {
	var le *ledger.Error
	if !errors.As(err, &le) {
		s.logger.ErrorContext(ctx, "rpc failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
	if le.Kind == ledger.KindUnavailable {
		s.logger.WarnContext(ctx, "storage unavailable", "error", err)
	}

	st := status.New(codeForKind(le.Kind), le.Detail())
	if withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: string(le.Code),
		Domain: ErrorDomain,
	}); derr == nil {
		st = withInfo
	}
	return st.Err()
}

func codeForKind(k ledger.Kind) codes.Code {
	switch k {
	case ledger.KindValidation:
		return codes.InvalidArgument
	case ledger.KindNotFound:
		return codes.NotFound
	case ledger.KindConflict:
		return codes.AlreadyExists
	case ledger.KindBusinessRule:
		return codes.FailedPrecondition
	case ledger.KindUnavailable:
		return codes.Unavailable
	}
	return codes.Internal
}

// Reason extracts the ledger code from an error returned by a BankingService client.
func Reason(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.Domain == ErrorDomain {
			return info.Reason
		}
	}
	return ""
}
