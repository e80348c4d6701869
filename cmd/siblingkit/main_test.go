package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-sibling-kit/internal/riaktest"
	"github.com/c0deZ3R0/go-sibling-kit/siblingkit"
)

func TestRunPutGetDelete(t *testing.T) {
	srv := riaktest.New(t)
	t.Setenv("SIBLINGKIT_ENDPOINT", srv.URL())
	t.Setenv("LOG_LEVEL", "error")
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"put", "-bucket", "carts", "-key", "cart:1", "-value", "apple", "-type", "text/plain"}, &out))
	assert.Contains(t, out.String(), "siblings: 1")

	out.Reset()
	require.NoError(t, run(ctx, []string{"get", "-bucket", "carts", "-key", "cart:1"}, &out))
	assert.Contains(t, out.String(), "exists: true")
	assert.Contains(t, out.String(), "apple")

	out.Reset()
	require.NoError(t, run(ctx, []string{"delete", "-bucket", "carts", "-key", "cart:1"}, &out))
	assert.Equal(t, "deleted carts/cart:1\n", out.String())

	_, _, found := srv.Get("default", "carts", "cart:1")
	assert.False(t, found)
}

func TestRunResolve(t *testing.T) {
	srv := riaktest.New(t)
	t.Setenv("SIBLINGKIT_ENDPOINT", srv.URL())
	t.Setenv("LOG_LEVEL", "error")

	srv.Seed("default", "carts", "cart:1",
		siblingkit.RawContent{ContentType: "text/plain", Value: []byte("old")},
		siblingkit.RawContent{ContentType: "text/plain", Value: []byte("new")},
	)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"resolve", "-bucket", "carts", "-key", "cart:1"}, &out))
	assert.Contains(t, out.String(), "siblings: 1")

	siblings, _, found := srv.Get("default", "carts", "cart:1")
	require.True(t, found)
	assert.Len(t, siblings, 1)
}

func TestRunErrors(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	ctx := context.Background()

	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "no bucket", args: []string{"get", "-key", "k"}},
		{name: "unknown command", args: []string{"list", "-bucket", "carts", "-key", "k"}},
		{name: "get without key", args: []string{"get", "-bucket", "carts"}},
		{name: "unknown resolver", args: []string{"resolve", "-bucket", "carts", "-key", "k", "-resolver", "coin_flip"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := riaktest.New(t)
			t.Setenv("SIBLINGKIT_ENDPOINT", srv.URL())
			assert.Error(t, run(ctx, tt.args, &bytes.Buffer{}))
		})
	}
}
