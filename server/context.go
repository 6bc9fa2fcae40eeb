package server

import "context"

type contextKey int

const ctxKeySubject contextKey = 0

// contextWithSubject records the login name from the token. The actor itself
// travels under api.WithActor.
func contextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ctxKeySubject, subject)
}

func subjectFrom(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeySubject).(string)
	return s
}
