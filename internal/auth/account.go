package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// LookupAccount returns the email of the Google account behind ts.
func LookupAccount(ctx context.Context, ts oauth2.TokenSource) (string, error) {
	svc, err := googleoauth2.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return "", fmt.Errorf("creating oauth2 service: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("fetching user info: %w", err)
	}
	return info.Email, nil
}
