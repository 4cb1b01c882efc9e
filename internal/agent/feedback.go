package agent

import (
	"fmt"
	"strings"

	"github.com/byewind1/gdl-agent/internal/compiler"
	"github.com/byewind1/gdl-agent/internal/generator"
	"github.com/byewind1/gdl-agent/internal/knowledge"
)

const baseSystemPrompt = `You are an expert ArchiCAD GDL developer. You write and modify
library parts as HSF XML documents containing GDL scripts.

Rules:
- Always respond with ONE complete library-part XML document in a fenced code block.
- Never respond with a fragment, a diff, or prose-only answers.
- Every 3D script must terminate with END.
- Keep IF/ENDIF, FOR/NEXT and the transformation stack balanced in every script.
- When fixing errors, return the whole corrected document, not just the changed lines.`

// systemPrompt assembles the system prompt, injecting reference material
// relevant to the instruction when a knowledge base is available.
func systemPrompt(kb *knowledge.Base, instruction string) string {
	if kb == nil {
		return baseSystemPrompt
	}
	ref := kb.Relevant(instruction, 3)
	if ref == "" {
		return baseSystemPrompt
	}
	return baseSystemPrompt + "\n\n# Reference material\n\n" + ref
}

// macroCaution warns the model about CALLed macros whose documents could not
// be found next to the source part.
func macroCaution(macros []string) string {
	var b strings.Builder
	b.WriteString("\n\n# Unresolved macros\n\nThe following macros are CALLed but their parameter signatures could not be found. Be extra careful with CALL parameters:\n")
	for _, m := range macros {
		b.WriteString("- ")
		b.WriteString(m)
		b.WriteString("\n")
	}
	return b.String()
}

// initialMessage builds the first user message of a session.
func initialMessage(task Task, sourceXML string) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(task.Instruction)
	b.WriteString("\n")
	if sourceXML != "" {
		b.WriteString("\nCurrent library part document:\n\n```xml\n")
		b.WriteString(sourceXML)
		if !strings.HasSuffix(sourceXML, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("```\n\nModify this document to satisfy the task.")
	} else {
		b.WriteString("\nThere is no existing document. Create a new library part from scratch.")
	}
	return b.String()
}

// buildMessages reconstructs the conversation for the next attempt from the
// full attempt history, so the model sees every candidate it produced and
// why each was rejected.
func buildMessages(task Task, sourceXML string, attempts []Attempt) []generator.Message {
	msgs := []generator.Message{
		{Role: "user", Content: initialMessage(task, sourceXML)},
	}
	for _, a := range attempts {
		reply := "(no usable document was produced)"
		if a.Candidate != "" {
			reply = "```xml\n" + a.Candidate + "\n```"
		}
		msgs = append(msgs,
			generator.Message{Role: "assistant", Content: reply},
			generator.Message{Role: "user", Content: a.Feedback},
		)
	}
	return msgs
}

// feedbackFor synthesizes the corrective message for a failed attempt.
// All defects and diagnostics from the attempt are batched into one message.
func feedbackFor(a Attempt) string {
	switch a.Stage {
	case StageGenerate:
		return fmt.Sprintf("The previous request failed before any document was produced (%s). Produce the complete library part document again.", a.Err)

	case StageExtract:
		return "Your reply did not contain a library part XML document. Respond with ONE complete <Symbol> document in a fenced ```xml code block."

	case StageValidate:
		var b strings.Builder
		b.WriteString("The document was rejected before compilation. Structural problems found:\n")
		for _, d := range a.Defects {
			b.WriteString("- ")
			b.WriteString(d.String())
			b.WriteString("\n")
		}
		b.WriteString("\nFix ALL of the problems above and return the complete corrected document.")
		return b.String()

	case StageCompile:
		return compileFeedback(a.Compile)

	default:
		if a.Err != "" {
			return fmt.Sprintf("The attempt failed: %s. Return the complete corrected document.", a.Err)
		}
		return "The attempt failed. Return the complete corrected document."
	}
}

func compileFeedback(res *compiler.Result) string {
	if res == nil {
		return "Compilation failed with no diagnostic output. Return the complete corrected document."
	}

	if res.Status == compiler.StatusTimeout {
		return "Compilation timed out. The scripts may contain an unbounded loop; simplify the geometry and return the complete corrected document."
	}

	var b strings.Builder
	b.WriteString("Compilation failed")
	if res.Kind != compiler.FailUnknown {
		fmt.Fprintf(&b, " (%s)", res.Kind)
	}
	b.WriteString(".\n")

	if res.Line > 0 {
		fmt.Fprintf(&b, "Reported location: line %d", res.Line)
		if res.Column > 0 {
			fmt.Fprintf(&b, ", column %d", res.Column)
		}
		b.WriteString("\n")
	}
	if res.Construct != "" {
		fmt.Fprintf(&b, "Offending construct: %s\n", res.Construct)
	}

	summary := res.Summary()
	if summary != "" {
		b.WriteString("\nCompiler output:\n")
		b.WriteString(summary)
		b.WriteString("\n")
	}

	b.WriteString("\nFix the error and return the complete corrected document.")
	return b.String()
}
