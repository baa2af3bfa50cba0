// internal/theme/theme.go
//
// Light/dark theme controller.
// The preference lives in the visitor's flat cache under "theme" and defaults
// to dark. Persistence failures are logged and otherwise ignored: the theme
// still applies for the rest of the session.

package theme

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/portfolio/apps/go-server/internal/kv"
)

// Theme is "dark" or "light".
type Theme string

const (
	Dark  Theme = "dark"
	Light Theme = "light"
)

// Default is used when nothing (or garbage) is persisted.
const Default = Dark

const (
	iconDark  = "☀️" // shown while dark: switch to light
	iconLight = "🌙"
)

// View is what the page applies to the document.
type View struct {
	Theme      Theme  `json:"theme"`
	RootAttr   string `json:"rootAttr"`  // value of data-theme on <html>
	BodyClass  string `json:"bodyClass"` // e.g. "dark-theme"
	Icon       string `json:"icon"`
	MobileIcon string `json:"mobileIcon"`
}

// Controller owns the visitor's theme.
type Controller struct {
	prefs kv.Store
	theme Theme
}

// Load reads the persisted preference and applies it.
func Load(ctx context.Context, prefs kv.Store) *Controller {
	c := &Controller{prefs: prefs, theme: Default}
	v, err := prefs.Get(ctx, kv.KeyTheme)
	switch {
	case err == nil:
		if t := Theme(v); t == Dark || t == Light {
			c.theme = t
		}
	case !errors.Is(err, kv.ErrNotFound):
		log.Warn().Err(err).Msg("theme: read preference")
	}
	return c
}

// Current returns the applied theme.
func (c *Controller) Current() Theme { return c.theme }

// Toggle flips the theme, persists it and returns the new view.
func (c *Controller) Toggle(ctx context.Context) View {
	if c.theme == Dark {
		c.theme = Light
	} else {
		c.theme = Dark
	}
	if err := c.prefs.Set(ctx, kv.KeyTheme, string(c.theme)); err != nil {
		log.Warn().Err(err).Str("theme", string(c.theme)).Msg("theme: persist preference")
	}
	return c.View()
}

// View projects the theme onto the document attributes and both toggle icons.
func (c *Controller) View() View {
	icon := iconDark
	if c.theme == Light {
		icon = iconLight
	}
	return View{
		Theme:      c.theme,
		RootAttr:   string(c.theme),
		BodyClass:  string(c.theme) + "-theme",
		Icon:       icon,
		MobileIcon: icon,
	}
}
