package graphql

import (
	"bytes"
	"encoding/json"

	gql "github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
)

// projection writes resolver results in the shape of the selection sets of one operation.
type projection struct {
	schema    *ast.Schema
	operation *gql.OperationContext
}

// fields collects the fields of selectionSet which apply to typeName. Skipped fields and fragments
// with a type condition typeName doesn't satisfy are left out, fields with the same response key are merged.
func (p *projection) fields(selectionSet ast.SelectionSet, typeName string) []gql.CollectedField {
	return gql.CollectFields(p.operation, selectionSet, p.satisfies(typeName))
}

// satisfies lists typeName and every interface and union it belongs to.
func (p *projection) satisfies(typeName string) []string {
	// inline fragments without a type condition apply to every type
	satisfies := []string{typeName, ""}

	definition := p.schema.Types[typeName]
	if definition == nil {
		return satisfies
	}
	for _, implemented := range p.schema.GetImplements(definition) {
		satisfies = append(satisfies, implemented.Name)
	}
	return satisfies
}

// write writes the JSON representation of value projected onto the selections of field.
func (p *projection) write(buf *bytes.Buffer, field gql.CollectedField, value interface{}) error {
	normalized, err := normalizeValue(value)
	if err != nil {
		return err
	}
	p.writeProjected(buf, fieldTypeName(field.Field), field.Selections, normalized)
	return nil
}

func (p *projection) writeProjected(buf *bytes.Buffer, typeName string, selections ast.SelectionSet, value interface{}) {
	switch value := value.(type) {
	case nil:
		buf.WriteString("null")
	case []interface{}:
		buf.WriteByte('[')
		for i := range value {
			if i > 0 {
				buf.WriteByte(',')
			}
			p.writeProjected(buf, typeName, selections, value[i])
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		if len(selections) == 0 {
			writeJSON(buf, value)
			return
		}

		// objects of abstract types name their concrete type
		if name, ok := value["__typename"].(string); ok && name != "" {
			typeName = name
		}

		buf.WriteByte('{')
		for i, child := range p.fields(selections, typeName) {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeKey(buf, child.Alias)
			if child.Name == "__typename" {
				writeJSON(buf, typeName)
				continue
			}
			p.writeProjected(buf, fieldTypeName(child.Field), child.Selections, value[child.Name])
		}
		buf.WriteByte('}')
	default:
		writeJSON(buf, value)
	}
}

func fieldTypeName(field *ast.Field) string {
	if field.Definition == nil || field.Definition.Type == nil {
		return ""
	}
	return field.Definition.Type.Name()
}

// normalizeValue converts arbitrary resolver results (structs, maps, slices) into the generic
// JSON representation by round tripping them through encoding/json.
func normalizeValue(value interface{}) (interface{}, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var normalized interface{}
	if err = decoder.Decode(&normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}

func writeKey(buf *bytes.Buffer, key string) {
	writeJSON(buf, key)
	buf.WriteByte(':')
}

func writeJSON(buf *bytes.Buffer, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		buf.WriteString("null")
		return
	}
	buf.Write(data)
}
