package auth

import (
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// AuthorizeTimeout is how long to wait for the OAuth callback before the
// authorization attempt is aborted.
const AuthorizeTimeout = 5 * time.Minute

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

// CallbackResult represents the result of an OAuth callback.
type CallbackResult struct {
	// Code is the authorization code from the OAuth provider.
	Code string

	// State is the state parameter to verify against the original request.
	State string

	// Error is the error code if the authorization failed.
	Error string

	// ErrorDescription is a human-readable error description.
	ErrorDescription string
}

// IsError returns true if the callback result represents an error.
func (r *CallbackResult) IsError() bool {
	return r.Error != ""
}

// CallbackServer is a temporary local HTTP server for receiving the OAuth
// callback. It binds to the host, port, and path of the configured redirect
// URI, accepts exactly one callback, and then shuts down.
type CallbackServer struct {
	host     string
	port     int
	path     string
	server   *http.Server
	listener net.Listener
	resultCh chan *CallbackResult
	errorCh  chan error
	once     sync.Once
}

// NewCallbackServer creates a callback server for the given redirect URI.
// The URI must be a loopback http URL, e.g. http://localhost:3000/callback.
func NewCallbackServer(redirectURI string) (*CallbackServer, error) {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return nil, &ValidationError{Field: "redirectUri", Reason: err.Error()}
	}
	if parsed.Scheme != "http" {
		return nil, &ValidationError{Field: "redirectUri", Reason: "must use the http scheme for the loopback callback"}
	}
	if parsed.Hostname() == "" {
		return nil, &ValidationError{Field: "redirectUri", Reason: "missing host"}
	}

	port := 80
	if p := parsed.Port(); p != "" {
		if _, err := fmt.Sscanf(p, "%d", &port); err != nil {
			return nil, &ValidationError{Field: "redirectUri", Reason: "invalid port"}
		}
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}

	return &CallbackServer{
		host:     parsed.Hostname(),
		port:     port,
		path:     path,
		resultCh: make(chan *CallbackResult, 1),
		errorCh:  make(chan error, 1),
	}, nil
}

// Start starts the callback server and begins listening for the OAuth
// callback. The server stops automatically when the context is cancelled.
func (s *CallbackServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// WaitForCallback waits for the OAuth callback or context cancellation.
func (s *CallbackServer) WaitForCallback(ctx context.Context) (*CallbackResult, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// handleCallback handles the OAuth callback request.
// At most one callback is processed per server lifetime.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	var handled bool
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})

	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

// processCallback processes the OAuth callback request.
// This is called exactly once via sync.Once.
func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	query := r.URL.Query()
	result := &CallbackResult{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}

	var tmpl *template.Template
	var data interface{}

	if result.IsError() {
		tmpl = template.Must(template.New("error").Parse(callbackErrorHTML))
		data = map[string]string{
			"Error":       result.Error,
			"Description": result.ErrorDescription,
		}
	} else {
		tmpl = template.Must(template.New("success").Parse(callbackSuccessHTML))
		data = map[string]string{}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}

	select {
	case s.resultCh <- result:
	default:
	}

	// Shut down after giving the response time to reach the browser.
	go func() {
		time.Sleep(1 * time.Second)
		s.Stop()
	}()
}

// Stop gracefully shuts down the callback server.
// Safe to call multiple times and from any exit path.
func (s *CallbackServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// RedirectURI returns the redirect URI the server is actually bound to.
// This differs from the configured URI only when port 0 was requested.
func (s *CallbackServer) RedirectURI() string {
	return fmt.Sprintf("http://%s:%d%s", s.host, s.port, s.path)
}

// Port returns the port the server is listening on.
func (s *CallbackServer) Port() int {
	return s.port
}
