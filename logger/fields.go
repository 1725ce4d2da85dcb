package logger

// Standard field keys used by the composition engine.
const (
	FieldComponent   = "component"
	FieldContainerID = "container_id"
	FieldParentID    = "parent_id"
	FieldExport      = "export"
	FieldType        = "type"
	FieldShape       = "shape"
	FieldMode        = "mode"
	FieldChanged     = "changed"
	FieldCount       = "count"
	FieldError       = "error"
	FieldOperation   = "operation"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	log.Debug("export removed", logger.Fields("export", name, "type", typ))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for an operation that failed.
func ErrorFields(op string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldError:     err.Error(),
	}
}
