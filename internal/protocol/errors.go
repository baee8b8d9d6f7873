package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Contract resolution.
	ErrUnknownContract = "E_UNKNOWN_CONTRACT"
	ErrUnknownFunction = "E_UNKNOWN_FUNCTION"
	ErrNotView         = "E_NOT_VIEW"
	ErrBadArgs         = "E_BAD_ARGS"

	// Reads.
	ErrNoData     = "E_NO_DATA"
	ErrCallFailed = "E_CALL_FAILED"

	ErrRateLimit = "E_RATE_LIMIT"
	ErrConflict  = "E_CONFLICT"
	ErrInternal  = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrUnknownContract: {},
	ErrUnknownFunction: {},
	ErrNotView:         {},
	ErrBadArgs:         {},
	ErrNoData:          {},
	ErrCallFailed:      {},
	ErrRateLimit:       {},
	ErrConflict:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
