package generation

import (
	"fmt"
	"strings"

	"github.com/bozzyboy/nano-director-5/internal/project"
)

const sectionRule = "⸻"

const (
	ultrawideCandidateNote = "\nNote: Generate in cinematic ultrawide 21:9 aspect ratio"
	ultrawideRemasterNote  = ", cinematic ultrawide 21:9 aspect ratio"
)

// ScriptPrompt is the instruction for the first pass: a shot list plus one
// composite prompt filled from the contact sheet template.
func ScriptPrompt(idea string, refCount, gridSize int) string {
	total := gridSize * gridSize
	var b strings.Builder

	b.WriteString("You are an expert Director and Cinematographer.\n")
	fmt.Fprintf(&b, "The user has uploaded %d reference images.\n", refCount)
	if refCount > 0 {
		mapping := make([]string, refCount)
		for i := range mapping {
			mapping[i] = fmt.Sprintf("Image %d = @img%d", i+1, i+1)
		}
		fmt.Fprintf(&b, "Reference Mapping: %s.\n", strings.Join(mapping, ", "))
	}
	b.WriteString("\nAnalyze the images visually (if provided). Determine which are characters, environments, or style references.\n\n")
	fmt.Fprintf(&b, "Based on the User's Story Idea: \"%s\", create a %d-shot storyboard script.\n\n", idea, total)
	b.WriteString("Then, generate ONE image generation prompt following the EXACT template below.\n")
	b.WriteString("Fill in the placeholders (in brackets) based on the Story Idea.\n\n")
	b.WriteString("CRITICAL: You must define a SINGLE COHESIVE VISUAL IDENTITY for the protagonist.\n")
	b.WriteString("Describe them once in the CHARACTERS section and state they appear in every shot.\n\n")
	b.WriteString("TEMPLATE TO FILL:\n")
	fmt.Fprintf(&b, "\"Generate a precise %dx%d storyboard sheet (contact sheet) containing exactly %d distinct panels from a [INSERT GENRE/STYLE] film.\n", gridSize, gridSize, total)
	fmt.Fprintf(&b, "The layout must be a perfect grid of %d rows and %d columns.\n", gridSize, gridSize)
	b.WriteString("The imagery must feel grounded, authentic, and physically real. No animation style, no painterly rendering, no exaggerated fantasy glow. Real weight, dramatic tension, narrative depth.\n")
	b.WriteString("Use specific references: [Insert dynamic reference tags like @img1 for characters/style if applicable].\n\n")
	writeSections(&b, [][2]string{
		{"SCENE & ENVIRONMENT", "[Insert details: Lighting, time of day, weather, location specifics]"},
		{"CHARACTERS (CONSISTENCY ENFORCEMENT)", "[Define the Main Character: Name, specific Face, Hair, Outfit. State: 'The character (Name) appears in every panel with identical features and clothing.']\n[Map @img tags here if they are character references]"},
		{"ACTION & CONTINUITY", fmt.Sprintf("[Insert details: What happens in the %d shots physically, describing each panel sequentially]", total)},
		{"CAMERA & COMPOSITION", fmt.Sprintf("[Insert details: %d distinct angles, lens type, distance (Close-up, Wide, Over-shoulder)]", total)},
		{"LIGHTING & ATMOSPHERE", "[Insert details: Mood, contrast, shadows]"},
		{"TONE & FINISH", "[Insert details: Film stock, color grade, realism level]"},
	})
	b.WriteString("\"\n\nRETURN JSON ONLY.\nStructure:\n")
	b.WriteString(`{
  "title": "string",
  "logline": "string",
  "gridPrompt": "string",
  "shots": [
    { "shotNumber": 1, "description": "string", "cameraAngle": "string", "lighting": "string" }
  ]
}`)
	return b.String()
}

// RecompilePrompt turns an edited script back into a single composite prompt.
func RecompilePrompt(script *project.Script, gridSize int) string {
	total := gridSize * gridSize
	var b strings.Builder

	b.WriteString("You are a technical prompt engineer.\n\nINPUT SCRIPT:\n")
	fmt.Fprintf(&b, "Title: %s\nLogline: %s\nShots:\n", script.Title, script.Logline)
	for _, shot := range script.Shots {
		fmt.Fprintf(&b, "%d. %s (Angle: %s)\n", shot.ShotNumber, shot.Description, shot.CameraAngle)
	}
	b.WriteString("\nTASK:\n")
	fmt.Fprintf(&b, "Convert this updated script into a SINGLE image generation prompt for a %dx%d grid.\n\n", gridSize, gridSize)
	b.WriteString("Follow this EXACT TEMPLATE structure (do not add introductory text):\n")
	fmt.Fprintf(&b, "\"Generate a precise %dx%d storyboard sheet (contact sheet) containing exactly %d distinct panels... [Synthesize the Action]\n", gridSize, gridSize, total)
	writeSections(&b, [][2]string{
		{"SCENE & ENVIRONMENT", "[Synthesize from script]"},
		{"CHARACTERS", "[Synthesize from script - ENFORCE CONSISTENCY]"},
		{"ACTION & CONTINUITY", "[Synthesize from script]"},
		{"CAMERA & COMPOSITION", "[Synthesize from script]"},
		{"LIGHTING & ATMOSPHERE", "[Synthesize from script]"},
		{"TONE & FINISH", "[Synthesize from script]"},
	})
	b.WriteString("\"")
	return b.String()
}

// CandidatePrompt wraps the composite prompt with style, layout, camera, and
// negative clauses.
func CandidatePrompt(req CandidateRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "STORY & CONTENT:\n%s\n\n", req.Prompt)
	fmt.Fprintf(&b, "AESTHETIC & STYLE:\n%s\n\n", project.ResolveStyle(req.Style))
	b.WriteString("LAYOUT & COMPOSITION:\n")
	if n := req.GridSize; n > 0 {
		fmt.Fprintf(&b, "LAYOUT MANDATE: Generate a seamless %dx%d contact sheet containing exactly %d panels.\n", n, n, n*n)
		b.WriteString("The panels must be touching directly.\n")
		b.WriteString("NO DIVIDING LINES, NO GUTTERS, NO WHITE BORDERS, NO BLACK FRAMES.\n")
		fmt.Fprintf(&b, "The result should look like a single image split perfectly into %d rows and %d columns.\n", n, n)
	}
	b.WriteString("\n")
	if shots := project.JoinCameraShots(req.CameraShots); shots != "" {
		fmt.Fprintf(&b, "CAMERA TECHNIQUE OVERRIDE: %s\n\n", shots)
	}
	fmt.Fprintf(&b, "NEGATIVE PROMPT / EXCLUDED ELEMENTS:\n%s", project.ResolveNegative(req.Style))
	if req.AspectRatio == project.AspectCinematic {
		b.WriteString(ultrawideCandidateNote)
	}
	return b.String()
}

// RemasterPrompt asks for a composition-preserving enhancement of one panel.
func RemasterPrompt(req RemasterRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Context: %s.\n\n", req.ShotDescription)
	b.WriteString("Preserve the exact composition, framing, camera angle, color grade and subject placement; do not alter or add new elements.\n")
	b.WriteString("Increase resolution to true high-end cinematic clarity, with natural film-grade sharpness (no AI oversharpening).\n\n")
	fmt.Fprintf(&b, "STYLE INSTRUCTIONS:\n%s\n\n", project.ResolveStyle(req.Style))
	b.WriteString("Keep the same color temperature and color tone.\n")
	b.WriteString("Texture pass should feel physically real: skin pores, fabric weave, dust, stone, metal, wood, all enhanced without plastic smoothing.\n")
	b.WriteString("Maintain cinematic depth of field consistent with the original image (natural lens falloff, no artificial blur).\n\n")
	fmt.Fprintf(&b, "EXCLUDED:\n%s\n\n", project.ResolveNegative(req.Style))
	b.WriteString("Do not redraw. Do not stylize. Do not beautify. Only enhance realism and resolution.")
	if req.AspectRatio == project.AspectCinematic {
		b.WriteString(ultrawideRemasterNote)
	}
	return b.String()
}

// ReferencePrompt is the editor prompt with the camera clause and the
// ultrawide note appended.
func ReferencePrompt(req ReferenceRequest) string {
	prompt := req.Prompt
	if shots := project.JoinCameraShots(req.CameraShots); shots != "" {
		prompt += "\n\nCAMERA TECHNIQUE: " + shots
	}
	if req.AspectRatio == project.AspectCinematic {
		prompt += ultrawideRemasterNote
	}
	return prompt
}

// ExtractionPrompt asks for a standalone prompt describing one panel.
func ExtractionPrompt(globalContext, shotDescription string) string {
	var b strings.Builder

	b.WriteString("You are an expert film director assistant.\n")
	b.WriteString("Analyze the attached image (a specific remastered panel).\n\n")
	b.WriteString("SOURCE MATERIAL:\n")
	fmt.Fprintf(&b, "1. Global Context (Lighting, Tone, Style, Overall Action): \"%s\"\n", globalContext)
	fmt.Fprintf(&b, "2. Specific Shot Description: \"%s\"\n\n", shotDescription)
	b.WriteString("TASK:\n")
	b.WriteString("Write a \"REMASTERED SOURCE PROMPT\" for this specific image.\n")
	b.WriteString("- Visually analyze the image to identify which elements of the Global Context are actually present (e.g., specific lighting, specific character details, background elements).\n")
	b.WriteString("- Combine the Specific Shot Description with these relevant Global elements.\n")
	b.WriteString("- STRIP OUT any details from the Global Context that are NOT present in this specific image.\n")
	b.WriteString("- Ensure technical specs (Camera, Film Stock, Lighting style) matches the visual evidence.\n")
	b.WriteString("- IMPORTANT: Do NOT include references to specific image IDs (like @img1, @img2). The output should be pure, standalone descriptive text.\n\n")
	b.WriteString("Output ONLY the final prompt text.")
	return b.String()
}

func writeSections(b *strings.Builder, sections [][2]string) {
	for _, section := range sections {
		b.WriteString(sectionRule)
		b.WriteByte('\n')
		b.WriteString(section[0])
		b.WriteByte('\n')
		b.WriteString(section[1])
		b.WriteByte('\n')
	}
}
