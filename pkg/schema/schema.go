package schema

import (
	"github.com/invopop/jsonschema"
)

func generateSchema[T any]() *jsonschema.Schema {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return r.Reflect(v)
}

var (
	StoryRequestSchema    = generateSchema[StoryRequest]()
	EvaluateRequestSchema = generateSchema[EvaluateRequest]()
	CompileRequestSchema  = generateSchema[CompileRequest]()
)
