// Package org carries the tenant scope through request contexts. Every
// uniqueness and access check in the pipeline is scoped by org id.
package org

import "context"

type contextKey string

const orgKey contextKey = "org_id"

func WithID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgKey, orgID)
}

func IDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(orgKey).(string)
	return id
}
