package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// The fragment never reaches the server, so the redirect page posts it back.
const callbackPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>subfeed</title></head>
<body>
<p id="status">Completing sign-in...</p>
<script>
fetch("/token", {
  method: "POST",
  headers: {"Content-Type": "application/x-www-form-urlencoded"},
  body: window.location.hash.substring(1)
}).then(function (r) { return r.text(); })
  .then(function (t) { document.getElementById("status").textContent = t; })
  .catch(function () { document.getElementById("status").textContent = "Sign-in failed, return to the terminal."; });
</script>
</body>
</html>`

type callbackResult struct {
	grant *Grant
	err   error
}

// CallbackServer receives the implicit-grant redirect on the loopback
// interface.
type CallbackServer struct {
	port int

	mu       sync.Mutex
	listener net.Listener
}

func NewCallbackServer(port int) *CallbackServer {
	return &CallbackServer{port: port}
}

// Listen binds the server. WaitForCallback calls it when needed.
func (s *CallbackServer) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}
	s.listener = ln
	return nil
}

// Port returns the bound port, or the configured one before Listen.
func (s *CallbackServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().(*net.TCPAddr).Port
	}
	return s.port
}

// RedirectURL is the URL to register with the authorization server.
func (s *CallbackServer) RedirectURL() string {
	return fmt.Sprintf("http://localhost:%d/callback", s.Port())
}

// WaitForCallback serves the redirect page until a grant carrying
// expectedState arrives, the server reports an error, or the timeout or
// ctx expires. The listener is closed on return.
func (s *CallbackServer) WaitForCallback(ctx context.Context, expectedState string, timeout time.Duration) (*Grant, error) {
	if err := s.Listen(); err != nil {
		return nil, err
	}

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           s.router(expectedState, results),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	go func() { _ = srv.Serve(ln) }()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.mu.Lock()
		s.listener = nil
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case r := <-results:
		return r.grant, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("timed out waiting for authorization: %w", ctx.Err())
	}
}

func (s *CallbackServer) router(expectedState string, results chan<- callbackResult) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	deliver := func(res callbackResult) {
		select {
		case results <- res:
		default:
		}
	}

	r.GET("/callback", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(callbackPage))
	})

	r.POST("/token", func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.String(http.StatusBadRequest, "Could not read the authorization response.")
			return
		}

		grant, err := ParseFragment(string(body))
		var authErr *AuthError
		switch {
		case errors.As(err, &authErr) && authErr.State != expectedState:
			// Only the redirect we started may end the wait.
			c.String(http.StatusBadRequest, "State mismatch, please retry from the terminal.")
			return
		case authErr != nil:
			deliver(callbackResult{err: err})
			c.String(http.StatusBadRequest, "Sign-in was not completed: %s", authErr.Code)
			return
		case err != nil:
			// A stray request without a token, keep waiting.
			c.String(http.StatusBadRequest, "No access token in the response.")
			return
		case grant.State != expectedState:
			deliver(callbackResult{err: ErrInvalidState})
			c.String(http.StatusBadRequest, "State mismatch, please retry from the terminal.")
			return
		}

		deliver(callbackResult{grant: grant})
		c.String(http.StatusOK, "Signed in. You can close this window.")
	})

	return r
}
