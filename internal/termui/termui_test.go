package termui

import (
	"bytes"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestRenderPassesThroughForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, IsTerminal(&buf))
	assert.Equal(t, "**bold**", Render(&buf, "**bold**"))
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown("# Sales\n\nRevenue grew **12%**.", "notty", 80)
	assert.Contains(t, out, "Sales")
	assert.Contains(t, out, "12%")
	assert.NotContains(t, out, "**")
}

func TestStartSpinnerNoopOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	stop := StartSpinner(&buf, "thinking")
	stop()
	stop()
	assert.Empty(t, buf.String())
}

func TestSpinnerModel(t *testing.T) {
	m := newSpinner("thinking")
	assert.NotNil(t, m.Init())
	assert.Contains(t, m.View(), "thinking")

	next, cmd := m.Update(m.sp.Tick())
	assert.NotNil(t, cmd, "a tick schedules the next frame")
	assert.Contains(t, next.View(), "thinking")

	next, cmd = next.Update(stopMsg{})
	assert.Empty(t, next.View())
	assert.NotNil(t, cmd)

	_, cmd = next.Update(tea.KeyMsg{})
	assert.Nil(t, cmd)
}
