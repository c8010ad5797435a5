package storefront

import (
	"github.com/labstack/echo/v4"
	"github.com/talkincode/storefront/internal/cart"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/webserver"
	"github.com/talkincode/storefront/pkg/common"
	"go.uber.org/zap"
)

const (
	sessionUserKey = "user_id"
	sessionCartKey = "cart_key"
	userContextKey = "user"
)

// loadUser resolves the signed-in user from the session. A user that no longer
// exists or was deactivated is signed out.
func (h *Handler) loadUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess := webserver.Session(c)
		if id, ok := sess.Values[sessionUserKey].(int64); ok {
			user, err := h.accounts.ByID(c.Request().Context(), id)
			switch {
			case err == nil:
				c.Set(userContextKey, user)
			case domain.IsNotFound(err):
				delete(sess.Values, sessionUserKey)
				if err := webserver.SaveSession(c, sess); err != nil {
					zap.L().Warn("save session failed", zap.String("namespace", "storefront"), zap.Error(err))
				}
			default:
				return err
			}
		}
		return next(c)
	}
}

func currentUser(c echo.Context) *domain.User {
	u, _ := c.Get(userContextKey).(*domain.User)
	return u
}

// identity names the cart owner of this request. Anonymous browsers get a session
// cart key on first use when allocate is set.
func (h *Handler) identity(c echo.Context, allocate bool) cart.Identity {
	if u := currentUser(c); u != nil {
		return cart.Identity{UserID: u.ID}
	}
	sess := webserver.Session(c)
	key, _ := sess.Values[sessionCartKey].(string)
	if key == "" && allocate {
		key = common.UUID()
		sess.Values[sessionCartKey] = key
		if err := webserver.SaveSession(c, sess); err != nil {
			zap.L().Warn("save session failed", zap.String("namespace", "storefront"), zap.Error(err))
		}
	}
	return cart.Identity{SessionKey: key}
}

func (h *Handler) signIn(c echo.Context, user *domain.User) error {
	sess := webserver.Session(c)
	sess.Values[sessionUserKey] = user.ID
	c.Set(userContextKey, user)
	return webserver.SaveSession(c, sess)
}

// signOut forgets the user and the anonymous cart of this browser
func (h *Handler) signOut(c echo.Context) error {
	sess := webserver.Session(c)
	delete(sess.Values, sessionUserKey)
	delete(sess.Values, sessionCartKey)
	c.Set(userContextKey, nil)
	return webserver.SaveSession(c, sess)
}
