package resolver

import (
	"context"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// tokenSource — SA-токен client_credentials с возможностью сброса.
// oauth2 кэширует токен до истечения, reset нужен, когда Records API
// отклонил токен раньше срока.
type tokenSource struct {
	cfg *clientcredentials.Config
	ctx context.Context

	mu  sync.Mutex
	src oauth2.TokenSource
}

func newTokenSource(ctx context.Context, cfg *clientcredentials.Config) *tokenSource {
	return &tokenSource{cfg: cfg, ctx: ctx, src: cfg.TokenSource(ctx)}
}

// Token реализует oauth2.TokenSource.
func (s *tokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	src := s.src
	s.mu.Unlock()
	return src.Token()
}

func (s *tokenSource) reset() {
	s.mu.Lock()
	s.src = s.cfg.TokenSource(s.ctx)
	s.mu.Unlock()
}
