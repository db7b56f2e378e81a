// Package bridgeweb holds the embedded browser-facing page that hosts the
// Telegram login widget.
package bridgeweb

import (
	"embed"
	"html/template"
	"io"
)

//go:embed *.html
var templatesFS embed.FS

var loginTemplate = template.Must(template.ParseFS(templatesFS, "login.html"))

type LoginPageData struct {
	BotID       string
	SessionID   string
	CallbackURL string
}

func RenderLogin(w io.Writer, data LoginPageData) error {
	return loginTemplate.Execute(w, data)
}
