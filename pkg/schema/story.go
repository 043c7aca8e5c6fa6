package schema

// Instruction is a fully-resolved writing directive for one scene.
type Instruction struct {
	Scene int    `json:"scene"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

type Mode string

const (
	Guided   Mode = "guided"
	Unguided Mode = "unguided"
)

type StoryRequest struct {
	Premise string   `json:"premise" jsonschema_description:"Free-text story premise, e.g. 'cat pirates'"`
	Outline []string `json:"outline,omitempty" jsonschema_description:"Compiled scene labels; a random loaded outline is used when empty"`
}

type SceneEvent struct {
	Mode      Mode   `json:"mode"`
	Scene     int    `json:"scene"`
	Label     string `json:"label,omitempty"`
	Paragraph string `json:"paragraph"`
}

type EvaluateRequest struct {
	Stories [][]string `json:"stories" jsonschema_description:"Batch of narratives with equal scene counts"`
	Method  string     `json:"method,omitempty" jsonschema:"enum=embedding,enum=lexical" jsonschema_description:"Similarity measure (default embedding)"`
}

type EvaluateResponse struct {
	Method string    `json:"method"`
	Scores []float64 `json:"scores"`
}

type CompileRequest struct {
	Facts []string `json:"facts" jsonschema_description:"Symbols shown by one solver model, e.g. scene_performs_function(0,add_twist)"`
}

type CompileResponse struct {
	Outline []string `json:"outline"`
	Line    string   `json:"line"`
	Pool    int      `json:"pool,omitempty"`
}
