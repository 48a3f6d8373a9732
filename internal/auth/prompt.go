package auth

import "context"

// Prompter delivers a consent URL to whoever must approve it.
type Prompter func(ctx context.Context, authURL string) error

type prompterKey struct{}

// WithPrompter attaches p to ctx. The loopback authorizer calls it in
// addition to printing the URL, so the chat that triggered an upload also
// receives the consent link.
func WithPrompter(ctx context.Context, p Prompter) context.Context {
	return context.WithValue(ctx, prompterKey{}, p)
}

func prompterFrom(ctx context.Context) Prompter {
	p, _ := ctx.Value(prompterKey{}).(Prompter)
	return p
}
