package identity

import (
	"context"
	"testing"
)

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver()
	r.Register("tok-1", Identity{ID: "u1", Name: "Ada"})

	tests := []struct {
		name  string
		token string
		want  Identity
	}{
		{"known token", "tok-1", Identity{ID: "u1", Name: "Ada"}},
		{"unknown token", "tok-9", Anonymous},
		{"empty token", "", Anonymous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Resolve(context.Background(), tt.token); got != tt.want {
				t.Errorf("Resolve(%q) = %+v, want %+v", tt.token, got, tt.want)
			}
		})
	}
}

func TestAnonymousIsReusable(t *testing.T) {
	r := NewStaticResolver()
	a := r.Resolve(context.Background(), "")
	b := r.Resolve(context.Background(), "other")
	if a != b {
		t.Errorf("anonymous resolutions differ: %+v vs %+v", a, b)
	}
}
