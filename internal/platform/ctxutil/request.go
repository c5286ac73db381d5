package ctxutil

import "context"

type requestDataKey struct{}

// RequestData is the opaque API identity the auth collaborator resolves
// before any core operation reaches a handler. The core never interprets
// Scopes itself; it forwards APIKeyID into Job records for ownership
// checks and leaves scope enforcement to the auth collaborator.
type RequestData struct {
	APIKeyID int64
	Scopes   []string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey{})
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}
