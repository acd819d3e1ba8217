package push

import (
	"context"
	"errors"

	"github.com/charmbracelet/huh"
)

// ConfirmPrompt asks on the terminal before the dashboard starts. Aborting
// the form counts as a refusal.
func ConfirmPrompt(ctx context.Context) (bool, error) {
	allow := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Allow desktop notifications?").
				Description("Todos, tickets, events and leave updates can reach you while the dashboard is closed.").
				Affirmative("Allow").
				Negative("Not now").
				Value(&allow),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return allow, nil
}
