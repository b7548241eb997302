package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRenderEveryTemplate(t *testing.T) {
	r, err := NewRenderer("noreply@example.com", "Community")
	require.NoError(t, err)

	for _, name := range Templates {
		msg, err := r.Render(name, Recipient{Email: "a@example.com", Name: "alice"}, map[string]any{
			"username": "alice",
			"end_date": "8 May 2026 10:00 UTC",
			"time":     "8 May 2026 10:00 UTC",
			"forced":   false,
		})
		require.NoError(t, err, name)
		assert.Equal(t, "a@example.com", msg.To)
		assert.Contains(t, msg.Subject, "Community")
		assert.Contains(t, msg.Text, "alice")
		assert.NotContains(t, msg.Text, "<no value>")
		assert.Contains(t, msg.HTML, "<p>")
	}
}

func TestRenderFallsBackToDefaultLanguage(t *testing.T) {
	r, err := NewRenderer("noreply@example.com", "Community")
	require.NoError(t, err)

	de, err := r.Render(TemplateDeletionCompleted, Recipient{Email: "a@example.com", Language: "de-DE"},
		map[string]any{"username": "alice", "time": "now"})
	require.NoError(t, err)
	assert.Contains(t, de.Subject, "gelöscht")

	fr, err := r.Render(TemplateDeletionCompleted, Recipient{Email: "a@example.com", Language: "fr"},
		map[string]any{"username": "alice", "time": "now"})
	require.NoError(t, err)
	assert.Contains(t, fr.Subject, "deleted")
}

func TestCancelledTemplateExplainsForcedCancellation(t *testing.T) {
	r, err := NewRenderer("noreply@example.com", "Community")
	require.NoError(t, err)

	forced, err := r.Render(TemplateDeletionCancelled, Recipient{Email: "a@example.com"},
		map[string]any{"username": "alice", "forced": true})
	require.NoError(t, err)
	assert.Contains(t, forced.Text, "no longer allowed")

	voluntary, err := r.Render(TemplateDeletionCancelled, Recipient{Email: "a@example.com"},
		map[string]any{"username": "alice", "forced": false})
	require.NoError(t, err)
	assert.Contains(t, voluntary.Text, "remains active")
}

func TestEncodeMessageIsMultipart(t *testing.T) {
	raw, err := encodeMessage(&Message{From: "f@example.com", To: "t@example.com", Subject: "Hi", Text: "plain", HTML: "<p>html</p>"})
	require.NoError(t, err)
	s := string(raw)
	assert.Contains(t, s, "Subject: Hi\r\n")
	assert.Contains(t, s, "multipart/alternative")
	assert.Contains(t, s, "plain")
	assert.Contains(t, s, "<p>html</p>")
}

func TestLogMailerNeverFails(t *testing.T) {
	assert.NoError(t, NewLogMailer(zap.NewNop()).Send(context.Background(), &Message{To: "t@example.com"}))
}
