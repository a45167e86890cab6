package tui

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/devlibx/gox-base/v2/errors"
	"github.com/devlibx/gox-dozeprobe/pkg/controller"
	"github.com/devlibx/gox-dozeprobe/pkg/display"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubController struct {
	mutex      sync.Mutex
	acquires   int
	releases   int
	acquireErr error
}

func (s *stubController) Acquire(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.acquires++
	return s.acquireErr
}

func (s *stubController) Release(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.releases++
	return nil
}

func (s *stubController) Snapshot() controller.Snapshot { return controller.Snapshot{} }

func (s *stubController) Close(ctx context.Context) error { return nil }

type recordingSender struct {
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.msgs = append(r.msgs, msg)
}

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestStatusMessages(t *testing.T) {
	m := NewModel(context.Background(), &stubController{})
	assert.Equal(t, controller.MessageReleased, m.status)
	assert.Equal(t, display.Neutral, m.severity)

	m, _ = update(t, m, statusSetMsg{text: "held", severity: display.Info})
	assert.Equal(t, "held", m.status)
	assert.Equal(t, display.Info, m.severity)

	m, _ = update(t, m, statusAppendMsg{text: "!!! lost", severity: display.Error})
	assert.Equal(t, "held\n\n!!! lost", m.status)
	assert.Equal(t, display.Error, m.severity)

	m, _ = update(t, m, elapsedMsg("2:05"))
	assert.Equal(t, "2:05", m.elapsed)
	assert.Contains(t, m.View(), "Elapsed 2:05")
	assert.Contains(t, m.View(), "!!! lost")
}

func TestAcquireAndReleaseKeys(t *testing.T) {
	ctrl := &stubController{}
	m := NewModel(context.Background(), ctrl)

	m, cmd := update(t, m, keyPress('a'))
	require.NotNil(t, cmd)
	assert.Equal(t, "acquire", m.busy)

	// keys are ignored while an action runs
	m, ignored := update(t, m, keyPress('r'))
	assert.Nil(t, ignored)

	done := cmd()
	assert.Equal(t, actionDoneMsg{action: "acquire"}, done)
	assert.Equal(t, 1, ctrl.acquires)

	m, _ = update(t, m, done)
	assert.Empty(t, m.busy)

	m, cmd = update(t, m, keyPress('r'))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Equal(t, 1, ctrl.releases)
	assert.Empty(t, m.err)
}

func TestActionErrors(t *testing.T) {
	ctrl := &stubController{acquireErr: controller.ErrPermissionRequired}
	m := NewModel(context.Background(), ctrl)

	m, cmd := update(t, m, keyPress('a'))
	m, _ = update(t, m, cmd())
	assert.Empty(t, m.err, "the controller already showed the instructions")

	ctrl.acquireErr = errors.New("inhibit refused")
	m, cmd = update(t, m, keyPress('a'))
	m, _ = update(t, m, cmd())
	assert.Equal(t, "acquire failed: inhibit refused", m.err)
	assert.Contains(t, m.View(), "inhibit refused")
}

func TestQuit(t *testing.T) {
	m := NewModel(context.Background(), &stubController{})
	_, cmd := update(t, m, keyPress('q'))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestSink(t *testing.T) {
	s := NewSink()
	s.SetStatus("dropped", display.Info)

	sender := &recordingSender{}
	s.Attach(sender)
	s.SetStatus("a", display.Info)
	s.AppendStatus("b", display.Error)
	s.SetElapsed("0:01")

	assert.Equal(t, []tea.Msg{
		statusSetMsg{text: "a", severity: display.Info},
		statusAppendMsg{text: "b", severity: display.Error},
		elapsedMsg("0:01"),
	}, sender.msgs)

	var _ display.Sink = s
}
