// Package confirm gates plan execution. Auto accepts everything, Prompt asks the operator.
package confirm

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

type notifier interface {
	Notify(ctx context.Context, text string)
}

// Auto accepts every plan.
type Auto struct{}

// Confirm always returns true.
func (Auto) Confirm(context.Context, domain.ArbitragePlan) (bool, error) {
	return true, nil
}

// Prompt blocks until the operator accepts or rejects the plan.
type Prompt struct {
	notify     notifier
	accessible bool
	// ask is replaced in tests.
	ask func(ctx context.Context, title, description string) (bool, error)
}

// NewPrompt creates an interactive gate. accessible switches huh to plain line prompts
// for terminals without cursor control.
func NewPrompt(notify notifier, accessible bool) *Prompt {
	p := &Prompt{notify: notify, accessible: accessible}
	p.ask = p.askForm
	return p
}

// Confirm renders the plan and waits for a yes/no answer.
func (p *Prompt) Confirm(ctx context.Context, plan domain.ArbitragePlan) (bool, error) {
	if p.notify != nil {
		p.notify.Notify(ctx, fmt.Sprintf("Awaiting confirmation: %s", plan.String()))
	}

	title := "Confirm if you want to proceed with this trade?"
	ok, err := p.ask(ctx, title, RenderPlan(plan))
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, errors.Wrap(err, "confirmation prompt")
	}
	return ok, nil
}

func (p *Prompt) askForm(ctx context.Context, title, description string) (bool, error) {
	var confirm bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&confirm),
		),
	).WithAccessible(p.accessible).RunWithContext(ctx)
	if err != nil {
		return false, err
	}
	return confirm, nil
}
