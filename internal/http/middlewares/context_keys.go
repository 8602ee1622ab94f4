package middlewares

type ctxKey string

const (
	CtxUserID    ctxKey = "userID"
	CtxEmail     ctxKey = "email"
	CtxRequestID ctxKey = "requestID"
)
