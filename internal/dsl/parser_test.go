package dsl

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dreamtheater/internal/ir"
)

func TestParse_WorldName(t *testing.T) {
	prog := Parse(`
world TestWorld {
  scene lobby {
    description: "Start here"
    actions: ["user.start"]
  }
}`)
	assert.Equal(t, "TestWorld", prog.World)
	require.Contains(t, prog.Scenes, "lobby")
	assert.Equal(t, []string{"user.start"}, prog.Scenes["lobby"].Actions)
	assert.Empty(t, prog.Diagnostics)
}

func TestParse_WithoutWorldWrapper(t *testing.T) {
	prog := Parse(`
scene start {
  description: "No world wrapper"
  actions: ["user.go"]
}
when user.go leadsTo goto("end")
`)
	assert.Empty(t, prog.World)
	assert.Contains(t, prog.Scenes, "start")
	assert.Len(t, prog.Rules, 1)
}

func TestParse_SceneAllFields(t *testing.T) {
	prog := Parse(`
scene testScene {
  description: "Test description"
  hint: "This is a hint"
  actions: ["action.one", "action.two", "action.three"]
}`)
	scene := prog.Scenes["testScene"]
	assert.Equal(t, "testScene", scene.ID)
	assert.Equal(t, "Test description", scene.Description)
	assert.Equal(t, "This is a hint", scene.Hint)
	assert.Equal(t, []string{"action.one", "action.two", "action.three"}, scene.Actions)
	assert.Equal(t, 2, scene.Line)
}

func TestParse_SceneWithoutHint(t *testing.T) {
	prog := Parse(`
scene minimal {
  description: "No hint"
  actions: []
}`)
	assert.Empty(t, prog.Scenes["minimal"].Hint)
	assert.Equal(t, []string{}, prog.Scenes["minimal"].Actions)
}

func TestParse_ActionsTrailingComma(t *testing.T) {
	prog := Parse(`
scene trailing {
  description: "Actions with trailing comma"
  actions: ["action.one", "action.two",]
}`)
	assert.Equal(t, []string{"action.one", "action.two"}, prog.Scenes["trailing"].Actions)
}

func TestParse_ActionsBareIdentifiers(t *testing.T) {
	prog := Parse(`scene s { description: "d" actions: [user.go, "user.stop"] }`)
	assert.Equal(t, []string{"user.go", "user.stop"}, prog.Scenes["s"].Actions)
}

func TestParse_Annotations(t *testing.T) {
	tests := []struct {
		text string
		want ir.Category
	}{
		{`@flow when user.click leadsTo goto("next")`, ir.CategoryFlow},
		{`@guard when user.enter and hasKey >= 1 leadsTo goto("secret")`, ir.CategoryGuard},
		{`@effect when user.pickup leadsTo reveal("item")`, ir.CategoryEffect},
		{`@system when game.start leadsTo announce("Welcome!")`, ir.CategorySystem},
		{`@physics when player.jump and gravity > 0 leadsTo goto("falling")`, ir.CategoryGuard},
		{`@GUARD when a leadsTo block()`, ir.CategoryGuard},
		{`@whatever when a leadsTo block()`, ir.CategoryFlow},
		{`when user.action leadsTo goto("somewhere")`, ir.CategoryFlow},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			prog := Parse(tt.text)
			require.Len(t, prog.Rules, 1)
			assert.Equal(t, tt.want, prog.Rules[0].Category)
		})
	}
}

func TestParse_RuleText(t *testing.T) {
	prog := Parse(`@flow when user.click leadsTo goto("next")`)
	require.Len(t, prog.Rules, 1)
	assert.Equal(t, "user.click", prog.Rules[0].Condition)
	assert.Equal(t, `goto("next")`, prog.Rules[0].Action)
	assert.Equal(t, "flow", prog.Rules[0].Label)
	assert.Equal(t, 1, prog.Rules[0].Line)
}

func TestParse_MultipleScenes(t *testing.T) {
	prog := Parse(`
scene first {
  description: "First"
  actions: []
}
scene second {
  description: "Second"
  actions: []
}
scene third {
  description: "Third"
  actions: []
}`)
	assert.Len(t, prog.Scenes, 3)
	assert.Equal(t, []string{"first", "second", "third"}, prog.SceneOrder)
}

func TestParse_MultipleRulesKeepOrder(t *testing.T) {
	prog := Parse(`
when event.one leadsTo goto("a")
when event.two leadsTo goto("b")
@guard when event.three and x > 0 leadsTo goto("c")
@effect when event.four leadsTo reveal("item")
`)
	require.Len(t, prog.Rules, 4)
	assert.Equal(t, "event.one", prog.Rules[0].Condition)
	assert.Equal(t, "event.two", prog.Rules[1].Condition)
	assert.Equal(t, "event.three and x > 0", prog.Rules[2].Condition)
	assert.Equal(t, "event.four", prog.Rules[3].Condition)
	assert.Equal(t, []int{2, 3, 4, 5}, []int{
		prog.Rules[0].Line, prog.Rules[1].Line, prog.Rules[2].Line, prog.Rules[3].Line,
	})
}

func TestParse_SeveralRulesOnOneLine(t *testing.T) {
	prog := Parse(`when a leadsTo goto("x") when b leadsTo goto("y") @system when c leadsTo block()`)
	require.Len(t, prog.Rules, 3)
	assert.Equal(t, `goto("x")`, prog.Rules[0].Action)
	assert.Equal(t, `goto("y")`, prog.Rules[1].Action)
	assert.Equal(t, ir.CategorySystem, prog.Rules[2].Category)
}

func TestParse_CRLF(t *testing.T) {
	prog := Parse("scene test {\r\n  description: \"CRLF\"\r\n  actions: []\r\n}\r\nwhen a leadsTo goto(\"test\")\r\n")
	require.Contains(t, prog.Scenes, "test")
	require.Len(t, prog.Rules, 1)
	assert.Equal(t, `goto("test")`, prog.Rules[0].Action)
	assert.Equal(t, 5, prog.Rules[0].Line)
}

func TestParse_SceneIDs(t *testing.T) {
	prog := Parse(`
scene layer-one-beta {
  description: "Hyphenated"
  actions: []
}
scene layer_one_alpha {
  description: "Underscored"
  actions: []
}`)
	assert.Contains(t, prog.Scenes, "layer-one-beta")
	assert.Contains(t, prog.Scenes, "layer_one_alpha")
}

func TestParse_InvalidSceneID(t *testing.T) {
	prog := Parse(`scene bad.id { description: "x" }`)
	assert.NotContains(t, prog.Scenes, "bad.id")
	require.Len(t, prog.Errors(), 1)
	assert.Equal(t, ir.CodeInvalidSceneID, prog.Errors()[0].Code)
}

func TestParse_PreservesActionText(t *testing.T) {
	prog := Parse(`when test leadsTo goto("scene") >> announce("Done!")`)
	require.Len(t, prog.Rules, 1)
	assert.Equal(t, `goto("scene") >> announce("Done!")`, prog.Rules[0].Action)
}

func TestParse_ActionInsideWorldBlockOnOneLine(t *testing.T) {
	prog := Parse(`world W { when a leadsTo announce("}") }`)
	assert.Equal(t, "W", prog.World)
	require.Len(t, prog.Rules, 1)
	assert.Equal(t, `announce("}")`, prog.Rules[0].Action)
	assert.False(t, prog.HasErrors())
}

func TestParse_Comments(t *testing.T) {
	prog := Parse(`
// the entry scene
# also a comment
scene lobby {
  description: "Start" // trailing
  actions: []
}
when a leadsTo goto("lobby") // back to start
`)
	require.Contains(t, prog.Scenes, "lobby")
	require.Len(t, prog.Rules, 1)
	assert.Equal(t, `goto("lobby")`, prog.Rules[0].Action)
	assert.Empty(t, prog.Diagnostics)
}

func TestParse_StringEscapes(t *testing.T) {
	prog := Parse(`scene s { description: "say \"hi\"\nnow" }`)
	assert.Equal(t, "say \"hi\"\nnow", prog.Scenes["s"].Description)
}

func TestParse_DuplicateSceneLaterWins(t *testing.T) {
	prog := Parse(`
scene lobby { description: "first" }
scene lobby { description: "second" }
`)
	assert.Equal(t, "second", prog.Scenes["lobby"].Description)
	assert.Equal(t, []string{"lobby"}, prog.SceneOrder)
	require.Len(t, prog.Warnings(), 1)
	assert.Equal(t, ir.CodeDuplicateScene, prog.Warnings()[0].Code)
}

func TestParse_UnknownFieldIsSkipped(t *testing.T) {
	prog := Parse(`scene lobby { description: "d" mood: "eerie" tags: [a, b] actions: ["x"] }`)
	assert.Equal(t, []string{"x"}, prog.Scenes["lobby"].Actions)
	warnings := prog.Warnings()
	require.Len(t, warnings, 2)
	assert.Equal(t, ir.CodeUnknownField, warnings[0].Code)
	assert.Equal(t, ir.CodeUnknownField, warnings[1].Code)
}

func TestParse_MissingLeadsTo(t *testing.T) {
	prog := Parse(`
when user.go goto("x")
when user.ok leadsTo block()
`)
	require.Len(t, prog.Rules, 1)
	assert.Equal(t, "user.ok", prog.Rules[0].Condition)
	require.Len(t, prog.Errors(), 1)
	assert.Equal(t, ir.CodeMissingLeadsTo, prog.Errors()[0].Code)
	assert.Equal(t, 2, prog.Errors()[0].Line)
}

func TestParse_EmptyRuleParts(t *testing.T) {
	prog := Parse("when leadsTo goto(\"x\")\nwhen a leadsTo\n")
	assert.Empty(t, prog.Rules)
	errs := prog.Errors()
	require.Len(t, errs, 2)
	assert.Equal(t, ir.CodeEmptyRule, errs[0].Code)
	assert.Equal(t, ir.CodeEmptyRule, errs[1].Code)
}

func TestParse_DanglingAnnotation(t *testing.T) {
	prog := Parse(`@guard scene lobby { description: "d" }`)
	assert.Contains(t, prog.Scenes, "lobby")
	require.Len(t, prog.Warnings(), 1)
	assert.Equal(t, ir.CodeDanglingAnnotation, prog.Warnings()[0].Code)
}

func TestParse_UnterminatedBlocks(t *testing.T) {
	t.Run("world", func(t *testing.T) {
		prog := Parse(`world W { scene lobby { description: "d" }`)
		assert.Contains(t, prog.Scenes, "lobby")
		require.Len(t, prog.Errors(), 1)
		assert.Equal(t, ir.CodeSyntax, prog.Errors()[0].Code)
	})

	t.Run("scene followed by rule", func(t *testing.T) {
		prog := Parse("scene lobby {\n  description: \"d\"\nwhen a leadsTo goto(\"lobby\")\n")
		assert.Contains(t, prog.Scenes, "lobby")
		assert.Len(t, prog.Rules, 1)
		require.Len(t, prog.Errors(), 1)
		assert.Equal(t, ir.CodeSyntax, prog.Errors()[0].Code)
	})

	t.Run("string", func(t *testing.T) {
		prog := Parse("scene lobby {\n  description: \"never closed\n}\n")
		assert.Contains(t, prog.Scenes, "lobby")
		assert.True(t, prog.HasErrors())
	})
}

func TestParse_JunkReportedOncePerRun(t *testing.T) {
	prog := Parse("= = = = =\nscene lobby { description: \"d\" }\n%%%")
	assert.Contains(t, prog.Scenes, "lobby")
	warnings := prog.Warnings()
	require.Len(t, warnings, 2)
	assert.Equal(t, ir.CodeSyntax, warnings[0].Code)
	assert.Equal(t, 1, warnings[0].Line)
	assert.Equal(t, 3, warnings[1].Line)
}

func TestParse_Totality(t *testing.T) {
	inputs := []string{
		"",
		"   \n\t  ",
		"\x00\x01\x02\xff\xfe garbage \x80",
		"world",
		"world {",
		"world W {",
		"scene",
		"scene {",
		"scene x {",
		"scene x { description:",
		"scene x { actions: [\"a\",",
		"@",
		"@guard",
		"when",
		"when a leadsTo",
		`when a leadsTo goto("`,
		`"unterminated`,
		"}}}}{{{{",
		"scene x { { { } description: \"d\" }",
		"world A { world B { } }",
	}

	for i, text := range inputs {
		t.Run(fmt.Sprintf("input_%d", i), func(t *testing.T) {
			var prog *ir.Program
			require.NotPanics(t, func() { prog = Parse(text) })
			require.NotNil(t, prog)
			assert.NotNil(t, prog.Rules)
			assert.NotNil(t, prog.Scenes)
			assert.NotNil(t, prog.Diagnostics)
			assert.Len(t, prog.SceneOrder, len(prog.Scenes))
		})
	}
}
