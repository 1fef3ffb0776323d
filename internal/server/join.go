package server

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Makepad-fr/basket/internal/config"
	"github.com/Makepad-fr/basket/internal/store"
)

// joinTemplate is the page a share link opens in a browser.
var joinTemplate = template.Must(template.New("join").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>basket: {{.Room}}</title></head>
<body>
<h1>Shopping list "{{.Room}}"</h1>
<p>Join it from a terminal:</p>
<pre>basket --server {{.Server}} --room {{.Room}} tui</pre>
</body>
</html>
`))

func (s *Server) join(c *gin.Context) {
	room := c.DefaultQuery("room", config.DefaultRoom)
	if !store.ValidKey(room) {
		abortWithError(c, http.StatusBadRequest, "validation", "invalid room id")
		return
	}
	c.HTML(http.StatusOK, "join", gin.H{
		"Room":   room,
		"Server": baseURL(c.Request),
	})
}

// baseURL is the scheme and host the client used to reach us.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host
}
