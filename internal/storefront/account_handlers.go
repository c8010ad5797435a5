package storefront

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/storefront/internal/account"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/review"
	"github.com/talkincode/storefront/internal/webserver"
	"github.com/talkincode/storefront/pkg/metrics"
)

func (h *Handler) register(c echo.Context) error {
	if c.Request().Method == http.MethodGet {
		return h.render(c, http.StatusOK, "register.html", echo.Map{
			"Errors":   map[string]string{},
			"Username": "",
			"Email":    "",
		})
	}

	form := account.Registration{
		Username:        c.FormValue("username"),
		Email:           c.FormValue("email"),
		Password:        c.FormValue("password"),
		PasswordConfirm: c.FormValue("password_confirm"),
	}
	user, err := h.accounts.Register(c.Request().Context(), form)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return h.render(c, http.StatusOK, "register.html", echo.Map{
				"Errors":   verr.Fields,
				"Username": form.Username,
				"Email":    form.Email,
			})
		}
		return err
	}
	if err := h.signIn(c, user); err != nil {
		return err
	}
	metrics.Incr("user_register", 1)
	return h.flashRedirect(c, webserver.FlashSuccess, "Registration successful!", "/")
}

func (h *Handler) login(c echo.Context) error {
	next := c.QueryParam("next")
	if c.Request().Method == http.MethodGet {
		return h.render(c, http.StatusOK, "login.html", echo.Map{"Next": next, "Username": "", "Error": ""})
	}

	if v := c.FormValue("next"); v != "" {
		next = v
	}
	username := c.FormValue("username")
	user, err := h.accounts.Authenticate(c.Request().Context(), username, c.FormValue("password"))
	if errors.Is(err, account.ErrInvalidCredentials) {
		return h.render(c, http.StatusOK, "login.html", echo.Map{
			"Next":     next,
			"Username": username,
			"Error":    "Please enter a correct username and password.",
		})
	}
	if err != nil {
		return err
	}
	if err := h.signIn(c, user); err != nil {
		return err
	}
	return h.flashRedirect(c, webserver.FlashSuccess, fmt.Sprintf("Welcome back, %s!", user.Username), safeNext(next))
}

func (h *Handler) logout(c echo.Context) error {
	if err := h.signOut(c); err != nil {
		return err
	}
	return h.flashRedirect(c, webserver.FlashInfo, "You have been logged out.", "/")
}

func (h *Handler) addReview(c echo.Context) error {
	slug := c.Param("slug")
	user := currentUser(c)
	if user == nil {
		return h.redirect(c, "/login/?next="+url.QueryEscape(productURL(slug)))
	}

	rating, _ := strconv.Atoi(strings.TrimSpace(c.FormValue("rating")))
	sub := review.Submission{
		Rating:  rating,
		Title:   c.FormValue("title"),
		Comment: c.FormValue("comment"),
	}
	_, err := h.reviews.Submit(c.Request().Context(), slug, user.ID, sub)
	switch {
	case err == nil:
		metrics.Incr("review_submit", 1)
		return h.flashRedirect(c, webserver.FlashSuccess, "Your review has been added!", productURL(slug))
	case domain.IsDuplicateReview(err):
		return h.flashRedirect(c, webserver.FlashError, "You have already reviewed this product.", productURL(slug))
	case domain.IsValidation(err):
		return h.flashRedirect(c, webserver.FlashError, validationMessage(err), productURL(slug))
	default:
		return err
	}
}
