package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchktools/hive/core/http"
)

func pong() any { return "pong" }

func TestDescribe(t *testing.T) {
	tests := []struct {
		name      string
		handler   any
		wantAsync bool
		wantArity int
	}{
		{"sync no args", func() any { return "a" }, false, 0},
		{"sync request", func(*http.Request) any { return "b" }, false, 1},
		{"async no args", func(context.Context) (any, error) { return "c", nil }, true, 0},
		{"async request", func(context.Context, *http.Request) (any, error) { return "d", nil }, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Describe(tt.handler)
			require.NoError(t, err)

			assert.Equal(t, tt.wantAsync, d.IsAsync)
			assert.Equal(t, tt.wantArity, d.Arity)
			assert.NotEmpty(t, d.Name)

			res, err := d.Fn(context.Background(), http.NewRequest("GET", "/"))
			require.NoError(t, err)
			assert.Equal(t, 200, res.StatusCode)
			assert.Equal(t, "text", res.Type)
		})
	}
}

func TestDescribe_PassesRequest(t *testing.T) {
	d, err := Describe(func(req *http.Request) any {
		return map[string]any{"body": req.Param("id")}
	})
	require.NoError(t, err)

	req := http.NewRequest("GET", "/users/9")
	req.PathParams["id"] = "9"

	res, err := d.Fn(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "9", res.Body)
}

func TestDescribe_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	d, err := Describe(func(context.Context, *http.Request) (any, error) { return nil, boom })
	require.NoError(t, err)

	_, err = d.Fn(context.Background(), http.NewRequest("GET", "/"))
	assert.ErrorIs(t, err, boom)
}

func TestDescribe_Rejects(t *testing.T) {
	_, err := Describe(nil)
	assert.ErrorIs(t, err, ErrNilHandler)

	var typedNil func() any
	_, err = Describe(typedNil)
	assert.ErrorIs(t, err, ErrNilHandler)

	_, err = Describe(func() string { return "x" })
	assert.ErrorIs(t, err, ErrUnsupportedHandler)

	_, err = Describe("not a func")
	assert.ErrorIs(t, err, ErrUnsupportedHandler)
}

func TestDescribeEvent(t *testing.T) {
	calls := 0

	d, err := DescribeEvent(func() { calls++ })
	require.NoError(t, err)
	assert.False(t, d.IsAsync)
	require.NoError(t, d.Fn(context.Background()))
	assert.Equal(t, 1, calls)

	d, err = DescribeEvent(func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.True(t, d.IsAsync)

	_, err = DescribeEvent(func(int) {})
	assert.ErrorIs(t, err, ErrUnsupportedHandler)
}

func TestNameOf(t *testing.T) {
	assert.Contains(t, NameOf(pong), "handler.pong")
	assert.Empty(t, NameOf(42))
}
