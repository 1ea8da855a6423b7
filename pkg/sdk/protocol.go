package sdk

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/celerix-dev/negmarket/internal/market"
	"github.com/celerix-dev/negmarket/pkg/engine"
)

// Error codes carried on "ERR <code> <message>" replies.
const (
	CodeInsufficientCredits = "insufficient_credits"
	CodeListingNotFound     = "listing_not_found"
	CodeAccountNotFound     = "account_not_found"
	CodeUploadCanceled      = "upload_canceled"
	CodeBadRequest          = "bad_request"
	CodeInternal            = "internal"
)

// ErrBadRequest is returned for commands the daemon could not parse.
var ErrBadRequest = errors.New("bad request")

// creditsDetail is the message body of an insufficient_credits reply.
type creditsDetail struct {
	ListingID string `json:"listing_id"`
	Balance   int64  `json:"balance"`
	Price     int64  `json:"price"`
}

// ErrorCode classifies err for the wire. The message is JSON for
// insufficient credits and plain text otherwise.
func ErrorCode(err error) (code, message string) {
	var ice *engine.InsufficientCreditsError
	switch {
	case errors.As(err, &ice):
		body, _ := json.Marshal(creditsDetail{ListingID: ice.ListingID, Balance: ice.Balance, Price: ice.Price})
		return CodeInsufficientCredits, string(body)
	case errors.Is(err, engine.ErrListingNotFound):
		return CodeListingNotFound, err.Error()
	case errors.Is(err, engine.ErrAccountNotFound):
		return CodeAccountNotFound, err.Error()
	case errors.Is(err, market.ErrUploadCanceled):
		return CodeUploadCanceled, err.Error()
	case errors.Is(err, ErrBadRequest):
		return CodeBadRequest, err.Error()
	default:
		return CodeInternal, err.Error()
	}
}

// CodeError rebuilds an error from a wire code so callers can keep using
// errors.Is and errors.As against the engine sentinels.
func CodeError(code, message string) error {
	switch code {
	case CodeInsufficientCredits:
		var d creditsDetail
		if err := json.Unmarshal([]byte(message), &d); err != nil {
			return fmt.Errorf("%w: %s", engine.ErrInsufficientCredits, message)
		}
		return &engine.InsufficientCreditsError{ListingID: d.ListingID, Balance: d.Balance, Price: d.Price}
	case CodeListingNotFound:
		return remoteError(engine.ErrListingNotFound, message)
	case CodeAccountNotFound:
		return remoteError(engine.ErrAccountNotFound, message)
	case CodeUploadCanceled:
		return remoteError(market.ErrUploadCanceled, message)
	case CodeBadRequest:
		return remoteError(ErrBadRequest, message)
	default:
		return fmt.Errorf("remote error: %s", message)
	}
}

// remoteError wraps the daemon's message around sentinel. The message
// already carries the sentinel text.
func remoteError(sentinel error, message string) error {
	if message == "" || message == sentinel.Error() {
		return sentinel
	}
	return &wireError{sentinel: sentinel, message: message}
}

type wireError struct {
	sentinel error
	message  string
}

func (e *wireError) Error() string { return e.message }
func (e *wireError) Unwrap() error { return e.sentinel }
