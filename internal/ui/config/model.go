// Package config is the first-run setup form: backend URL, identity and
// token, with a connection check before anything is saved.
package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/workpresence/internal/model"
)

// Validator checks that the backend accepts token before it is saved.
type Validator func(ctx context.Context, baseURL, token string) error

// Result is what the form collected.
type Result struct {
	Config *model.AppConfig
	Token  string
}

// formBindings holds the values huh writes into. It lives on the heap so
// the pointers stay valid while the form runs.
type formBindings struct {
	baseURL     string
	realtimeURL string
	userID      string
	employeeID  string
	role        string
	push        bool
	token       string
}

// Run shows the setup form pre-filled from cfg. A blank token keeps the
// stored one and skips the connection check.
func Run(ctx context.Context, cfg *model.AppConfig, validate Validator) (Result, error) {
	b := &formBindings{
		baseURL:     cfg.API.BaseURL,
		realtimeURL: cfg.Realtime.URL,
		userID:      cfg.Session.UserID,
		employeeID:  cfg.Session.EmployeeID,
		role:        cfg.Session.Role,
		push:        cfg.Push.Enabled,
	}
	if b.employeeID == b.userID {
		b.employeeID = ""
	}

	if err := buildForm(b).RunWithContext(ctx); err != nil {
		return Result{}, err
	}

	token := strings.TrimSpace(b.token)
	if token != "" && validate != nil {
		if err := validate(ctx, strings.TrimSpace(b.baseURL), token); err != nil {
			return Result{}, fmt.Errorf("connection check failed: %w", err)
		}
	}

	return Result{Config: apply(cfg, b), Token: token}, nil
}

func buildForm(b *formBindings) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Base URL").
				Description("Attendance backend API root").
				Placeholder("https://hr.example.com/api").
				Value(&b.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Realtime URL").
				Description("Optional; derived from the base URL when empty").
				Placeholder("wss://hr.example.com/realtime").
				Value(&b.realtimeURL).
				Validate(validateOptionalURL),
			huh.NewInput().
				Title("API token").
				Description("Leave empty to keep the stored token").
				EchoMode(huh.EchoModePassword).
				Value(&b.token),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("User ID").
				Value(&b.userID).
				Validate(validateRequired("User ID")),
			huh.NewInput().
				Title("Employee ID").
				Description("Optional; defaults to the user ID").
				Value(&b.employeeID),
			huh.NewSelect[string]().
				Title("Role").
				Options(
					huh.NewOption("Employee", model.RoleEmployee),
					huh.NewOption("Manager", "manager"),
					huh.NewOption("Admin", "admin"),
				).
				Value(&b.role),
			huh.NewConfirm().
				Title("Desktop notifications").
				Description("Register for push when signed in as an employee").
				Affirmative("Yes").
				Negative("No").
				Value(&b.push),
		),
	)
}

// apply copies the bindings onto a copy of cfg.
func apply(cfg *model.AppConfig, b *formBindings) *model.AppConfig {
	out := *cfg
	out.API.BaseURL = strings.TrimRight(strings.TrimSpace(b.baseURL), "/")
	out.Realtime.URL = strings.TrimSpace(b.realtimeURL)
	out.Session.UserID = strings.TrimSpace(b.userID)
	out.Session.EmployeeID = strings.TrimSpace(b.employeeID)
	if out.Session.EmployeeID == "" {
		out.Session.EmployeeID = out.Session.UserID
	}
	out.Session.Role = b.role
	out.Push.Enabled = b.push
	return &out
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}

func validateOptionalURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return validateURL(s)
}
