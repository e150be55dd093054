package auth

import (
	"embed"
	"html/template"

	"github.com/Masterminds/sprig/v3"
)

//go:embed templates/*.html
var pageFS embed.FS

const callbackPage = "callback.html"

var pageTemplates = template.Must(
	template.New("pages").Funcs(sprig.HtmlFuncMap()).ParseFS(pageFS, "templates/*.html"),
)

type pageData struct {
	Success bool
	Title   string
	Detail  string
	Email   string
	Hint    string
}

var (
	pageLoggedIn = pageData{
		Success: true,
		Title:   "Logged in!",
		Hint:    "You can close this tab and return to the terminal.",
	}
	pageStateMismatch = pageData{Title: "Authentication failed.", Detail: "Invalid state parameter."}
	pageMissingFields = pageData{Title: "Authentication failed.", Detail: "Missing token."}
	pageUntrusted     = pageData{Title: "Authentication failed.", Detail: "Invalid server URL."}
	pageAlreadyDone   = pageData{Title: "Login already finished.", Detail: "This login attempt has already completed."}
)
