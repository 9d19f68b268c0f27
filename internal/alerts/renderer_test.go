package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexflow/internal/types"
)

func TestRenderIncludesDeadlineLink(t *testing.T) {
	r := NewRenderer("https://app.lexflow.com.br/")

	plan := types.AlertPlan{
		DeadlineID: "dl-42",
		Title:      "Prazo vence hoje: Embargos",
		Message:    "O prazo vence hoje.",
	}

	subject, bodyHTML, bodyText, err := r.Render(plan)
	require.NoError(t, err)

	assert.Equal(t, plan.Title, subject)
	assert.Contains(t, bodyHTML, "https://app.lexflow.com.br/prazos/dl-42")
	assert.Contains(t, bodyHTML, "Prazo vence hoje: Embargos")
	assert.Contains(t, bodyText, "https://app.lexflow.com.br/prazos/dl-42")
}

func TestRenderEscapesUserContent(t *testing.T) {
	r := NewRenderer("https://app.lexflow.com.br")

	plan := types.AlertPlan{
		DeadlineID: "dl-1",
		Title:      `Prazo <script>alert("x")</script>`,
		Message:    "ok",
	}

	_, bodyHTML, _, err := r.Render(plan)
	require.NoError(t, err)

	assert.NotContains(t, bodyHTML, "<script>")
}
