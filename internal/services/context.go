package services

import "context"

// Scope is the request-scoped subject of an engine call: which job, which
// target stage, which shop and which client request. Zero fields are unset.
type Scope struct {
	JobID     int64
	Stage     string
	ShopID    string
	RequestID string
}

type scopeKey struct{}

// ScopeFromContext returns the scope carried by ctx, or the zero Scope.
func ScopeFromContext(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

// WithScope replaces the scope carried by ctx.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

func amend(ctx context.Context, edit func(*Scope)) context.Context {
	s := ScopeFromContext(ctx)
	edit(&s)
	return WithScope(ctx, s)
}

// WithJobID sets the repair job. Ids are positive; other values leave ctx
// untouched.
func WithJobID(ctx context.Context, id int64) context.Context {
	if id <= 0 {
		return ctx
	}
	return amend(ctx, func(s *Scope) { s.JobID = id })
}

func JobIDFromContext(ctx context.Context) (int64, bool) {
	id := ScopeFromContext(ctx).JobID
	return id, id > 0
}

// WithStage sets the stage code being moved into.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return amend(ctx, func(s *Scope) { s.Stage = stage })
}

func StageFromContext(ctx context.Context) (string, bool) {
	stage := ScopeFromContext(ctx).Stage
	return stage, stage != ""
}

func WithShopID(ctx context.Context, shop string) context.Context {
	if shop == "" {
		return ctx
	}
	return amend(ctx, func(s *Scope) { s.ShopID = shop })
}

func ShopIDFromContext(ctx context.Context) (string, bool) {
	shop := ScopeFromContext(ctx).ShopID
	return shop, shop != ""
}

// WithRequestID sets the correlation id echoed in logs and responses.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return amend(ctx, func(s *Scope) { s.RequestID = id })
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	rid := ScopeFromContext(ctx).RequestID
	return rid, rid != ""
}
