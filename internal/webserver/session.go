package webserver

import (
	"encoding/gob"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Flash is a one-shot message shown on the next rendered page
type Flash struct {
	Level   string
	Message string
}

// used only when no session middleware is installed
var fallbackStore = sessions.NewCookieStore(securecookie.GenerateRandomKey(32))

func init() {
	gob.Register(Flash{})
}

func sessionName() string {
	if server != nil && server.config.Web.SessionName != "" {
		return server.config.Web.SessionName
	}
	return "storefront_session"
}

// Session returns the browser session, never nil
func Session(c echo.Context) *sessions.Session {
	sess, err := session.Get(sessionName(), c)
	if err != nil {
		// undecodable cookie, e.g. after a secret rotation; the store hands back a fresh session
		zap.L().Debug("discarding invalid session", zap.Error(err))
	}
	if sess == nil {
		sess = sessions.NewSession(fallbackStore, sessionName())
		sess.IsNew = true
	}
	if sess.Values == nil {
		sess.Values = map[interface{}]interface{}{}
	}
	return sess
}

func SaveSession(c echo.Context, sess *sessions.Session) error {
	return sess.Save(c.Request(), c.Response())
}

// AddFlash queues a message and saves the session
func AddFlash(c echo.Context, level, message string) {
	sess := Session(c)
	sess.AddFlash(Flash{Level: level, Message: message})
	if err := SaveSession(c, sess); err != nil {
		zap.L().Warn("save flash failed", zap.Error(err))
	}
}

// PopFlashes drains queued messages
func PopFlashes(c echo.Context) []Flash {
	sess := Session(c)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}
	if err := SaveSession(c, sess); err != nil {
		zap.L().Warn("save session failed", zap.Error(err))
	}
	return out
}
