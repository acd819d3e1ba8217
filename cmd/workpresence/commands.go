package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/nhle/workpresence/internal/api"
	"github.com/nhle/workpresence/internal/credential"
	"github.com/nhle/workpresence/internal/model"
	setup "github.com/nhle/workpresence/internal/ui/config"
)

// runInit walks through the setup form, pre-filled with the current
// values, and writes the result to path.
func runInit(path string) error {
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return err
	}

	res, err := setup.Run(context.Background(), cfg, checkConnection)
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}

	if err := model.SaveConfig(path, res.Config); err != nil {
		return err
	}
	if res.Token != "" {
		if err := credential.Set(credential.TokenKey, res.Token); err != nil {
			return err
		}
	}
	fmt.Printf("Wrote %s.\n", path)
	return nil
}

// checkConnection asks the backend for the punch status with token.
func checkConnection(ctx context.Context, baseURL, token string) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	_, err := api.NewClient(baseURL, api.StaticToken(token), api.WithMaxRetries(0)).PunchStatus(ctx)
	return err
}

func runLogin() error {
	var token string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API token").
				Description("Paste the token issued by the attendance portal.").
				EchoMode(huh.EchoModePassword).
				Value(&token).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("token is required")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return fmt.Errorf("reading token: %w", err)
	}

	if err := credential.Set(credential.TokenKey, strings.TrimSpace(token)); err != nil {
		return err
	}
	fmt.Println("Token saved.")
	return nil
}

func runLogout() error {
	if err := credential.Delete(credential.TokenKey); err != nil {
		return err
	}
	fmt.Println("Token removed.")
	if os.Getenv(credential.TokenEnv) != "" {
		fmt.Printf("%s is still set and will be used.\n", credential.TokenEnv)
	}
	return nil
}

// realtimeURL returns the configured websocket URL, or derives
// ws(s)://host/realtime from the API base URL.
func realtimeURL(cfg *model.AppConfig) (string, error) {
	if cfg.Realtime.URL != "" {
		return cfg.Realtime.URL, nil
	}
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing api.base_url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("api.base_url %q: unsupported scheme %q", cfg.API.BaseURL, u.Scheme)
	}
	u.Path = "/realtime"
	u.RawQuery = ""
	return u.String(), nil
}

// originOf reduces a URL to scheme://host, the base deep links resolve against.
func originOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%q is not an absolute URL", raw)
	}
	return u.Scheme + "://" + u.Host, nil
}
