package codec

import "github.com/vango-dev/statetree/pkg/schema"

func schemaForTest() *schema.Descriptor {
	return schema.Object(schema.Props{
		"name":  schema.String(),
		"age":   schema.Number(),
		"admin": schema.Boolean(),
		"tags":  schema.ArrayOf(schema.String()),
		"address": schema.Object(schema.Props{
			"street": schema.String(),
			"zip":    schema.Optional(schema.String()),
		}),
	})
}
