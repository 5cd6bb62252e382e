// Package state holds the concrete session states: forms for sequential
// prompting, the in-world room state, and NPC dialogue.
package state

import (
	"github.com/etherwake/mud/internal/game/session"
)

// FormPrompt is one step of a form: the text shown to the user, the field
// name the answer is stored under, and an optional validator with the
// message shown when it rejects.
type FormPrompt struct {
	Prompt   string
	Field    string
	Validate func(value string) bool
	ErrorMsg string
	// Password suppresses client-side echo while this prompt is pending.
	Password bool
}

// FormFinishFunc receives the collected field values once every prompt has
// been answered. It runs after the form has popped itself, so it is free to
// push follow-up states.
type FormFinishFunc func(values map[string]string)

// Form walks a user through a fixed sequence of prompts, collecting one
// value per prompt. A rejected answer shows the prompt's error message and
// asks again; the form never advances past an invalid answer.
type Form struct {
	session *session.Session
	header  string
	prompts []FormPrompt
	finish  FormFinishFunc

	cursor int
	values map[string]string
}

var _ session.State = (*Form)(nil)

// NewForm creates a form over the given prompts. header is written once
// when the form starts; pass "" for no header.
//
// Precondition: prompts must be non-empty and finish must be non-nil.
func NewForm(sess *session.Session, header string, prompts []FormPrompt, finish FormFinishFunc) *Form {
	return &Form{
		session: sess,
		header:  header,
		prompts: prompts,
		finish:  finish,
		values:  make(map[string]string, len(prompts)),
	}
}

// OnStart writes the header and the first prompt.
func (f *Form) OnStart() {
	if f.header != "" {
		_ = f.session.WriteLine(f.header)
	}
	f.showPrompt()
}

// OnEnd is a no-op; forms hold no resources.
func (f *Form) OnEnd() {}

// OnPause is a no-op. Forms never have states pushed above them in
// practice, but a paused form keeps its cursor and values.
func (f *Form) OnPause() {}

// OnResume re-shows the pending prompt.
func (f *Form) OnResume() {
	f.showPrompt()
}

// HandleInput records the answer to the pending prompt. Invalid answers
// re-prompt; the final valid answer pops the form and runs the finish
// callback with all collected values.
func (f *Form) HandleInput(line string) {
	prompt := f.prompts[f.cursor]
	if prompt.Password {
		_ = f.session.RestoreEcho()
	}

	if prompt.Validate != nil && !prompt.Validate(line) {
		if prompt.ErrorMsg != "" {
			_ = f.session.WriteLine(prompt.ErrorMsg)
		}
		f.showPrompt()
		return
	}

	f.values[prompt.Field] = line
	f.cursor++
	if f.cursor < len(f.prompts) {
		f.showPrompt()
		return
	}

	f.session.Pop()
	f.finish(f.values)
}

func (f *Form) showPrompt() {
	prompt := f.prompts[f.cursor]
	_ = f.session.WritePrompt(prompt.Prompt)
	if prompt.Password {
		_ = f.session.SuppressEcho()
	}
}
