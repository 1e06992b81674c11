package protocol

// ParamType is the declared primitive type of a tool parameter. The set
// is closed; validation is a static switch over these tags.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// Valid reports whether the tag is one of the supported primitive types.
func (t ParamType) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeArray, TypeObject:
		return true
	}
	return false
}

// ToolParameter describes one parameter of a tool.
type ToolParameter struct {
	Name        string        `json:"name"`
	Type        ParamType     `json:"type"`
	Description string        `json:"description"`
	Required    bool          `json:"required"`
	Default     interface{}   `json:"default,omitempty"`
	Enum        []interface{} `json:"enum,omitempty"`
}

// PropertySchema is the derived JSON-schema fragment for one parameter.
type PropertySchema struct {
	Type        string        `json:"type"`
	Description string        `json:"description"`
	Enum        []interface{} `json:"enum,omitempty"`
	Default     interface{}   `json:"default,omitempty"`
}

// Schema is the derived object schema for a tool's parameters. It is
// computed once at registration time.
type Schema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// ToolInfo is the wire shape of a tool definition as returned by
// list_tools. The handler is owned by the registry and never serialized.
type ToolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  []ToolParameter        `json:"parameters"`
	Returns     map[string]interface{} `json:"returns"`
	Schema      *Schema                `json:"schema"`
}

// ExecuteToolParams is the parameter object of the execute_tool built-in.
type ExecuteToolParams struct {
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}
