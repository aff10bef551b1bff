package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPath_Validate(t *testing.T) {
	tests := []struct {
		path    Path
		wantErr string
	}{
		{path: "/"},
		{path: "/users"},
		{path: "/users/{id}"},
		{path: "/posts/{slug}/comments/{id}"},
		{path: "/static/{*}"},
		{path: "users", wantErr: "must start with '/'"},
		{path: "/users/{id", wantErr: "mismatched braces"},
		{path: "/users/id-{id}", wantErr: "whole segment"},
		{path: "/users/{}", wantErr: "invalid parameter"},
		{path: "/users/{id:int}", wantErr: "invalid parameter"},
		{path: "/a/{id}/b/{id}", wantErr: "appears twice"},
		{path: "/static/{*}/more", wantErr: "must be the last segment"},
	}
	for _, tt := range tests {
		t.Run(string(tt.path), func(t *testing.T) {
			err := tt.path.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestPath_Format(t *testing.T) {
	tests := []struct {
		path  Path
		gin   string
		echo  string
		param []string
	}{
		{path: "/", gin: "/", echo: "/"},
		{path: "/users", gin: "/users", echo: "/users"},
		{path: "/users/", gin: "/users/", echo: "/users/"},
		{path: "/users/{id}", gin: "/users/:id", echo: "/users/:id", param: []string{"id"}},
		{path: "/static/{*}", gin: "/static/*path", echo: "/static/*", param: []string{"*"}},
		{
			path:  "/posts/{slug}/comments/{id}",
			gin:   "/posts/:slug/comments/:id",
			echo:  "/posts/:slug/comments/:id",
			param: []string{"slug", "id"},
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.path), func(t *testing.T) {
			assert.Equal(t, tt.gin, tt.path.Format(colonParam, "*"+ginWildcard))
			assert.Equal(t, tt.echo, tt.path.Format(colonParam, "*"))
			assert.Equal(t, tt.param, tt.path.Params())
		})
	}
}

func TestPath_Pattern(t *testing.T) {
	assert.Equal(t, Path("/users/{id}").pattern(), Path("/users/{name}").pattern())
	assert.NotEqual(t, Path("/users/{id}").pattern(), Path("/users/me").pattern())
}
