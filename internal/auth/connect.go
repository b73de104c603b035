package auth

import (
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	autherrors "github.com/alexjbarnes/status-mcp/internal/errors"
	"github.com/alexjbarnes/status-mcp/internal/fields"
)

const pageStyle = `
  *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
    background: #f5f5f5;
    color: #1a1a1a;
    display: flex;
    align-items: center;
    justify-content: center;
    min-height: 100vh;
  }
  .card {
    background: #fff;
    border: 1px solid #e0e0e0;
    border-radius: 8px;
    padding: 2.5rem 2rem;
    width: 100%;
    max-width: 420px;
    box-shadow: 0 1px 3px rgba(0,0,0,0.06);
  }
  .card h1 { font-size: 1.25rem; font-weight: 600; margin-bottom: 0.25rem; }
  .card p.sub { font-size: 0.85rem; color: #666; margin-bottom: 1.5rem; }
  .error {
    background: #fef2f2;
    color: #991b1b;
    border: 1px solid #fecaca;
    border-radius: 6px;
    padding: 0.6rem 0.75rem;
    font-size: 0.85rem;
    margin-bottom: 1rem;
  }
  .error li { margin-left: 1rem; }
  label { display: block; font-size: 0.85rem; font-weight: 500; margin-bottom: 0.35rem; color: #333; }
  small { display: block; color: #666; margin: -0.75rem 0 1rem; font-size: 0.75rem; }
  input {
    width: 100%;
    padding: 0.55rem 0.7rem;
    border: 1px solid #d0d0d0;
    border-radius: 6px;
    font-size: 0.9rem;
    margin-bottom: 1rem;
  }
  button {
    width: 100%;
    padding: 0.6rem;
    background: #1a1a1a;
    color: #fff;
    border: none;
    border-radius: 6px;
    font-size: 0.9rem;
    cursor: pointer;
  }
`

// connectPage renders the connect form from the field table.
var connectPage = template.Must(template.New("connect").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>status-mcp</title>
<style>` + pageStyle + `</style>
</head>
<body>
<div class="card">
  <h1>Connect to status-mcp</h1>
  <p class="sub"><strong>{{if .ClientName}}{{.ClientName}}{{else}}{{.ClientID}}{{end}}</strong> is requesting access to your configuration.</p>
  {{if .Problems}}<div class="error"><ul>{{range .Problems}}<li>{{.}}</li>{{end}}</ul></div>{{end}}
  <form method="POST">
    <input type="hidden" name="client_id" value="{{.ClientID}}">
    <input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
    <input type="hidden" name="state" value="{{.State}}">
    <input type="hidden" name="code_challenge" value="{{.CodeChallenge}}">
    <input type="hidden" name="code_challenge_method" value="{{.CodeChallengeMethod}}">
    <label for="display_name">Display name</label>
    <input type="text" id="display_name" name="display_name" value="{{.DisplayName}}">
    {{range .Fields}}
    <label for="{{.Name}}">{{.Label}}{{if .Required}} *{{end}}</label>
    <input id="{{.Name}}" name="{{.Name}}" {{if .Secret}}type="password" autocomplete="off"{{else if eq .Format "email"}}type="email"{{else if eq .Format "url"}}type="url"{{else}}type="text"{{end}}{{if .Placeholder}} placeholder="{{.Placeholder}}"{{end}}{{if .Required}} required{{end}}>
    {{if .Help}}<small>{{.Help}}</small>{{end}}
    {{end}}
    <button type="submit">Connect</button>
  </form>
</div>
</body>
</html>`))

// errorPage lists the problems with a connect request that cannot be
// shown on the form, such as an unknown client or bad redirect URI.
var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>status-mcp: request rejected</title>
<style>` + pageStyle + `</style>
</head>
<body>
<div class="card">
  <h1>This connect request cannot continue</h1>
  <p class="sub">Return to the application and try again.</p>
  <div class="error"><ul>{{range .}}<li>{{.}}</li>{{end}}</ul></div>
</div>
</body>
</html>`))

type connectData struct {
	ClientID            string
	ClientName          string
	RedirectURI         string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	DisplayName         string
	Fields              []fields.Field
	Problems            []string
}

// HandleConnect returns the GET and POST /connect handler. GET checks
// the OAuth parameters and renders the form; POST validates the
// submission, creates the connection and redirects back to the client.
func HandleConnect(issuer *CodeIssuer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handleConnectGET(w, r, issuer, logger)
		case http.MethodPost:
			handleConnectPOST(w, r, issuer, logger)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func connectRequestFrom(r *http.Request) ConnectRequest {
	return ConnectRequest{
		ClientID:            r.FormValue("client_id"),
		RedirectURI:         r.FormValue("redirect_uri"),
		State:               r.FormValue("state"),
		CodeChallenge:       r.FormValue("code_challenge"),
		CodeChallengeMethod: r.FormValue("code_challenge_method"),
		DisplayName:         r.FormValue("display_name"),
		SourceIP:            remoteIP(r),
	}
}

func handleConnectGET(w http.ResponseWriter, r *http.Request, issuer *CodeIssuer, logger *slog.Logger) {
	req := connectRequestFrom(r)

	client, err := issuer.CheckParams(&req)
	if err != nil {
		renderConnectError(w, err, logger)
		return
	}

	renderForm(w, http.StatusOK, connectData{
		ClientID:            client.ClientID,
		ClientName:          client.ClientName,
		RedirectURI:         req.RedirectURI,
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Fields:              issuer.table.Fields,
	}, logger)
}

func handleConnectPOST(w http.ResponseWriter, r *http.Request, issuer *CodeIssuer, logger *slog.Logger) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		renderConnectError(w, &ParamError{Problems: []string{"invalid form data"}}, logger)
		return
	}

	req := connectRequestFrom(r)
	req.Config = issuer.table.Extract(r.PostForm.Get)

	// OAuth parameter problems cannot be fixed on the form.
	client, err := issuer.CheckParams(&req)
	if err != nil {
		renderConnectError(w, err, logger)
		return
	}

	redirect, err := issuer.Issue(r.Context(), req)
	if err != nil {
		var pe *ParamError
		if errors.As(err, &pe) {
			renderForm(w, http.StatusBadRequest, connectData{
				ClientID:            client.ClientID,
				ClientName:          client.ClientName,
				RedirectURI:         req.RedirectURI,
				State:               req.State,
				CodeChallenge:       req.CodeChallenge,
				CodeChallengeMethod: req.CodeChallengeMethod,
				DisplayName:         req.DisplayName,
				Fields:              issuer.table.Fields,
				Problems:            pe.Problems,
			}, logger)

			return
		}

		renderConnectError(w, err, logger)

		return
	}

	http.Redirect(w, r, redirect, http.StatusFound)
}

func renderForm(w http.ResponseWriter, status int, data connectData, logger *slog.Logger) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := connectPage.Execute(w, data); err != nil {
		logger.Error("rendering connect form", slog.String("error", err.Error()))
	}
}

func renderConnectError(w http.ResponseWriter, err error, logger *slog.Logger) {
	status := http.StatusBadRequest
	problems := []string{"internal server error"}

	var pe *ParamError
	if errors.As(err, &pe) {
		problems = pe.Problems
	} else {
		status = autherrors.HTTPStatus(err)
		logger.Error("connect failed", slog.String("error", err.Error()))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := errorPage.Execute(w, problems); err != nil {
		logger.Error("rendering connect error page", slog.String("error", err.Error()))
	}
}

// HandleConnectSchema returns the GET /connect/schema handler, which
// serves the field table the connect form is built from.
func HandleConnectSchema(table *fields.Table) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(table)
	}
}
