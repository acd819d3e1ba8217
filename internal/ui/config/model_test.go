package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/workpresence/internal/model"
)

func TestValidateURL(t *testing.T) {
	assert.NoError(t, validateURL("https://hr.example.com/api"))
	assert.Error(t, validateURL(""))
	assert.Error(t, validateURL("hr.example.com"))
	assert.Error(t, validateURL("://bad"))

	assert.NoError(t, validateOptionalURL(""))
	assert.Error(t, validateOptionalURL("nope"))
}

func TestApply(t *testing.T) {
	cfg := &model.AppConfig{Session: model.SessionConfig{Role: model.RoleEmployee}}
	b := &formBindings{
		baseURL: " https://hr.example.com/api/ ",
		userID:  "u1",
		role:    "manager",
		push:    true,
	}

	out := apply(cfg, b)

	assert.Equal(t, "https://hr.example.com/api", out.API.BaseURL)
	assert.Equal(t, "u1", out.Session.EmployeeID)
	assert.Equal(t, "manager", out.Session.Role)
	assert.True(t, out.Push.Enabled)
	assert.Equal(t, model.RoleEmployee, cfg.Session.Role, "input config is not modified")
}
