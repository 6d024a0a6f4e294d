package audit

import "context"

type actorKey struct{}

// WithActor tags ctx with the name of whoever is acting, for audit entries.
func WithActor(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, actorKey{}, name)
}

func ActorFrom(ctx context.Context) string {
	name, _ := ctx.Value(actorKey{}).(string)
	return name
}
