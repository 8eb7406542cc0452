package ytuploader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"github.com/ausocean/utils/logging"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// AuthenticationError is fatal to a run: nothing is uploaded without a session.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string { return "authentication failed: " + e.Err.Error() }

func (e *AuthenticationError) Unwrap() error { return e.Err }

// Authenticator obtains an OAuth2 session for uploads. A cached token is used
// when present; otherwise the user is sent through the consent screen and the
// redirect is caught on a loopback listener.
type Authenticator struct {
	SecretsLocation string // client_secret.json path or gs:// object
	TokenLocation   string // where the token is cached, path or gs:// object
	Client          ClientOptions
	Log             logging.Logger

	// Out receives the consent URL. Defaults to os.Stdout.
	Out io.Writer

	// OpenURL opens the consent URL. Defaults to the system browser.
	OpenURL func(string) error
}

// Authenticate returns a client ready to upload, or an *AuthenticationError.
func (a *Authenticator) Authenticate(ctx context.Context) (*ClientYT, error) {
	secrets, err := readLocation(ctx, a.SecretsLocation)
	if err != nil {
		return nil, &AuthenticationError{Err: fmt.Errorf("could not get client secrets: %w", err)}
	}
	cfg, err := google.ConfigFromJSON(secrets, youtube.YoutubeUploadScope)
	if err != nil {
		return nil, &AuthenticationError{Err: fmt.Errorf("could not create config from client secrets: %w", err)}
	}

	tok, err := a.loadToken(ctx)
	switch {
	case errors.Is(err, ErrLocationNotExist):
		a.Log.Info("no cached token, starting consent flow", "token", a.TokenLocation)
	case err != nil:
		a.Log.Warning("cached token unusable, starting consent flow", "token", a.TokenLocation, "error", err)
	}

	var src oauth2.TokenSource
	if tok != nil {
		src = a.tokenSource(ctx, cfg, tok)
		if _, err := src.Token(); err != nil {
			a.Log.Warning("token refresh failed, starting consent flow", "error", err)
			tok = nil
		}
	}
	if tok == nil {
		tok, err = a.consent(ctx, cfg)
		if err != nil {
			return nil, &AuthenticationError{Err: err}
		}
		if err := a.saveToken(ctx, tok); err != nil {
			a.Log.Warning("could not cache token", "token", a.TokenLocation, "error", err)
		}
		src = a.tokenSource(ctx, cfg, tok)
	}

	c, err := NewClient(ctx, a.Log, a.Client, option.WithHTTPClient(oauth2.NewClient(ctx, src)))
	if err != nil {
		return nil, &AuthenticationError{Err: err}
	}
	return c, nil
}

func (a *Authenticator) loadToken(ctx context.Context) (*oauth2.Token, error) {
	b, err := readLocation(ctx, a.TokenLocation)
	if err != nil {
		return nil, err
	}
	tok := new(oauth2.Token)
	if err := json.Unmarshal(b, tok); err != nil {
		return nil, fmt.Errorf("could not decode token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("token has neither access nor refresh token")
	}
	return tok, nil
}

func (a *Authenticator) saveToken(ctx context.Context, tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := writeLocation(ctx, a.TokenLocation, b, 0o600); err != nil {
		return err
	}
	a.Log.Debug("token saved", "token", a.TokenLocation)
	return nil
}

// tokenSource refreshes tok as needed and writes every new token back to the
// cache.
func (a *Authenticator) tokenSource(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token) oauth2.TokenSource {
	return &savingTokenSource{
		src:  cfg.TokenSource(ctx, tok),
		curr: tok,
		save: func(t *oauth2.Token) error { return a.saveToken(ctx, t) },
		log:  a.Log,
	}
}

// savingTokenSource calls save whenever the underlying source hands out a
// different access token.
type savingTokenSource struct {
	mu   sync.Mutex
	src  oauth2.TokenSource
	curr *oauth2.Token
	save func(*oauth2.Token) error
	log  logging.Logger
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curr == nil || s.curr.AccessToken != tok.AccessToken {
		s.curr = tok
		s.log.Info("token refreshed")
		if err := s.save(tok); err != nil {
			// The fresh token is still usable for this run.
			s.log.Warning("could not save refreshed token", "error", err)
		}
	}
	return tok, nil
}

type callbackResult struct {
	code string
	err  error
}

// consent runs the installed-app flow: the consent URL redirects to a
// listener on 127.0.0.1 which receives the authorization code.
func (a *Authenticator) consent(ctx context.Context, base *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("could not listen for oauth redirect: %w", err)
	}
	cfg := *base
	cfg.RedirectURL = "http://" + ln.Addr().String() + "/"

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	results := make(chan callbackResult, 1)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callbackResult
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		case q.Get("error") != "":
			res.err = fmt.Errorf("consent refused: %s", q.Get("error"))
			http.Error(w, "Authorisation was not granted. You can close this window.", http.StatusForbidden)
		case q.Get("code") == "":
			res.err = errors.New("redirect carried no authorization code")
			http.Error(w, "No authorization code received.", http.StatusBadRequest)
		default:
			res.code = q.Get("code")
			fmt.Fprintln(w, "Authorisation complete. You can close this window.")
		}
		select {
		case results <- res:
		default:
		}
	})}
	go srv.Serve(ln)
	defer srv.Close()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce, oauth2.S256ChallengeOption(verifier))
	out := a.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, "Open the following link in your browser to authorise uploads:\n%s\n", authURL)
	open := a.OpenURL
	if open == nil {
		open = openBrowser
	}
	if err := open(authURL); err != nil {
		a.Log.Warning("could not open browser", "error", err)
	}

	var res callbackResult
	select {
	case res = <-results:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := cfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("could not exchange authorization code: %w", err)
	}
	a.Log.Info("consent granted")
	return tok, nil
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
