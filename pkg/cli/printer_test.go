package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
	"gotest.tools/v3/assert"

	"github.com/docker/angi/pkg/chunk"
	"github.com/docker/angi/pkg/dispatch"
)

func init() {
	color.NoColor = true
}

func TestFormatParams_Empty(t *testing.T) {
	assert.Equal(t, `()`, formatParams(nil))
	assert.Equal(t, `()`, formatParams(map[string]any{}))
}

func TestFormatParams_Single(t *testing.T) {
	assert.Equal(t, `(value: 5)`, formatParams(map[string]any{"value": float64(5)}))
}

func TestFormatParams_SortedKeys(t *testing.T) {
	formatted := formatParams(map[string]any{"value": "Alice", "field": "name"})

	assert.Equal(t, `(
  field: "name"
  value: "Alice"
)`, formatted)
}

func TestFormatParams_Arrays(t *testing.T) {
	assert.Equal(t, `(tags: [])`, formatParams(map[string]any{"tags": []any{}}))
	assert.Equal(t, `(tags: ["a"])`, formatParams(map[string]any{"tags": []any{"a"}}))
	assert.Equal(t, `(
  tags: [
  "a",
  "b"
]
)`, formatParams(map[string]any{"tags": []any{"a", "b"}}))
}

func TestFormatParams_Object(t *testing.T) {
	assert.Equal(t, `(address: {"city":"Paris"})`, formatParams(map[string]any{"address": map[string]any{"city": "Paris"}}))
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintText("Hel")
	p.PrintText("lo")
	p.PrintAction(chunk.Action{ComponentID: "form1", ActionName: "fillField", Params: map[string]any{"field": "name"}})
	p.PrintReport(dispatch.Report{ComponentID: "gone", ActionName: "x", Reason: dispatch.ReasonUnknownComponent})
	p.PrintError(errors.New("boom"))

	assert.Equal(t, strings.Join([]string{
		"Hello",
		`→ form1.fillField(field: "name")`,
		"⚠️ unknown_component on gone.x",
		"❌ boom",
		"",
	}, "\n"), buf.String())
}

func TestParseConfirmation(t *testing.T) {
	for in, want := range map[string]ConfirmationResult{
		"y":    ConfirmationApprove,
		"YES":  ConfirmationApprove,
		"a":    ConfirmationApproveAll,
		"n":    ConfirmationReject,
		"\x03": ConfirmationAbort,
	} {
		got, ok := parseConfirmation(in)
		assert.Assert(t, ok, in)
		assert.Equal(t, want, got)
	}

	_, ok := parseConfirmation("maybe")
	assert.Assert(t, !ok)
}
