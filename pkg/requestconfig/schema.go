// pkg/requestconfig/schema.go
package requestconfig

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Location int

const (
	LocationInline Location = iota
	LocationRemote
	LocationDONHosted
)

var locationNames = map[string]Location{
	"inline":    LocationInline,
	"remote":    LocationRemote,
	"donhosted": LocationDONHosted,
}

func (l Location) String() string {
	switch l {
	case LocationInline:
		return "inline"
	case LocationRemote:
		return "remote"
	case LocationDONHosted:
		return "donHosted"
	}
	return "Location(" + strconv.Itoa(int(l)) + ")"
}

// UnmarshalYAML accepts the location name or its numeric code.
func (l *Location) UnmarshalYAML(node *yaml.Node) error {
	if n, err := strconv.Atoi(node.Value); err == nil {
		*l = Location(n)
		return nil
	}
	loc, ok := locationNames[strings.ToLower(node.Value)]
	if !ok {
		return fmt.Errorf("line %d: unknown location %q", node.Line, node.Value)
	}
	*l = loc
	return nil
}

type CodeLanguage int

const LanguageJavaScript CodeLanguage = 0

func (c *CodeLanguage) UnmarshalYAML(node *yaml.Node) error {
	if n, err := strconv.Atoi(node.Value); err == nil {
		*c = CodeLanguage(n)
		return nil
	}
	if strings.EqualFold(node.Value, "javascript") {
		*c = LanguageJavaScript
		return nil
	}
	return fmt.Errorf("line %d: unknown code language %q", node.Line, node.Value)
}

type ReturnType string

const (
	ReturnUint256 ReturnType = "uint256"
	ReturnInt256  ReturnType = "int256"
	ReturnString  ReturnType = "string"
	ReturnBytes   ReturnType = "bytes"
)

var returnTypeAliases = map[string]ReturnType{
	"uint":    ReturnUint256,
	"uint256": ReturnUint256,
	"int":     ReturnInt256,
	"int256":  ReturnInt256,
	"string":  ReturnString,
	"bytes":   ReturnBytes,
	"buffer":  ReturnBytes,
}

func (r *ReturnType) UnmarshalYAML(node *yaml.Node) error {
	rt, ok := returnTypeAliases[strings.ToLower(node.Value)]
	if !ok {
		return fmt.Errorf("line %d: unknown return type %q", node.Line, node.Value)
	}
	*r = rt
	return nil
}

// Config describes one Functions request: which source runs, with which
// arguments and secrets, and how its result is typed.
type Config struct {
	CodeLocation       Location     `yaml:"codeLocation"`
	CodeLanguage       CodeLanguage `yaml:"codeLanguage"`
	Source             string       `yaml:"source"`
	Args               []string     `yaml:"args"`
	BytesArgs          []string     `yaml:"bytesArgs"`
	SecretsLocation    Location     `yaml:"secretsLocation"`
	SecretsReference   string       `yaml:"secretsReference"`
	ExpectedReturnType ReturnType   `yaml:"expectedReturnType"`
}
