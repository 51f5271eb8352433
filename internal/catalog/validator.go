package catalog

import (
	"fmt"
	"strings"

	"github.com/pb33f/libopenapi/datamodel/high/base"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"

	"github.com/moamenhredeen/kvctl/internal/models"
)

// ValidateResult checks a response the client received against the
// documented responses of the route that served it. Results without a
// response, and routes the document does not describe, yield no findings.
func (c *Catalog) ValidateResult(result models.OperationResult) []models.ValidationError {
	if !result.Responded() {
		return nil
	}
	route, ok := c.Find(result.Method, result.Path)
	if !ok {
		return []models.ValidationError{{
			Field:   "route",
			Message: fmt.Sprintf("%s %s is not documented", result.Method, result.Path),
		}}
	}
	return route.Validate(result.StatusCode, result.Body)
}

// Validate checks a status code and body against the route's documented
// responses
func (r *Route) Validate(statusCode int, body models.Body) []models.ValidationError {
	if r.operation == nil || r.operation.Responses == nil {
		return nil
	}

	responseDef, found := findResponse(r.operation.Responses, statusCode)
	if !found {
		return []models.ValidationError{{
			Field:   "status_code",
			Message: fmt.Sprintf("unexpected status code %d, not documented", statusCode),
		}}
	}

	schema := jsonSchema(responseDef)
	if schema == nil {
		return nil
	}
	return validateBody(body, schema)
}

// findResponse looks up an exact status code, then default, then a status
// range such as 4XX
func findResponse(responses *v3.Responses, statusCode int) (*v3.Response, bool) {
	code := fmt.Sprintf("%d", statusCode)
	if responses.Codes != nil {
		for pair := responses.Codes.First(); pair != nil; pair = pair.Next() {
			if pair.Key() == code {
				return pair.Value(), true
			}
		}
	}

	if responses.Default != nil {
		return responses.Default, true
	}

	if responses.Codes != nil {
		statusRange := fmt.Sprintf("%dxx", statusCode/100)
		for pair := responses.Codes.First(); pair != nil; pair = pair.Next() {
			if strings.EqualFold(pair.Key(), statusRange) {
				return pair.Value(), true
			}
		}
	}
	return nil, false
}

func jsonSchema(responseDef *v3.Response) *base.Schema {
	if responseDef == nil || responseDef.Content == nil {
		return nil
	}
	for pair := responseDef.Content.First(); pair != nil; pair = pair.Next() {
		if !strings.Contains(pair.Key(), "json") {
			continue
		}
		if mediaType := pair.Value(); mediaType != nil && mediaType.Schema != nil {
			return mediaType.Schema.Schema()
		}
		return nil
	}
	return nil
}

// validateBody performs a shallow check: the top level type and the
// presence of required object fields
func validateBody(body models.Body, schema *base.Schema) []models.ValidationError {
	if body.Kind != models.BodyStructured {
		return []models.ValidationError{{
			Field:   "body",
			Message: fmt.Sprintf("expected a JSON document, got %s body", body.Kind),
		}}
	}

	var data any
	if err := body.Decode(&data); err != nil {
		return []models.ValidationError{{Field: "body", Message: fmt.Sprintf("failed to parse JSON response: %v", err)}}
	}

	var errs []models.ValidationError
	if len(schema.Type) > 0 {
		schemaType := schema.Type[0]
		if !matchesType(data, schemaType) {
			errs = append(errs, models.ValidationError{
				Field:   "body",
				Message: fmt.Sprintf("expected %s type, got different type", schemaType),
			})
		}
	}

	if obj, ok := data.(map[string]any); ok {
		for _, required := range schema.Required {
			if _, exists := obj[required]; !exists {
				errs = append(errs, models.ValidationError{
					Field:   "body." + required,
					Message: "missing required field: " + required,
				})
			}
		}
	}
	return errs
}

func matchesType(data any, schemaType string) bool {
	switch schemaType {
	case "object":
		_, ok := data.(map[string]any)
		return ok
	case "array":
		_, ok := data.([]any)
		return ok
	case "string":
		_, ok := data.(string)
		return ok
	case "integer", "number":
		_, ok := data.(float64)
		return ok
	case "boolean":
		_, ok := data.(bool)
		return ok
	default:
		return true
	}
}
