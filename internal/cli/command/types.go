package command

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// FieldType tells the builder how to read a field value.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt
	FieldFloatList
	FieldFile
)

// Target selects which server a command talks to.
type Target int

const (
	TargetExecution Target = iota
	TargetSupervisor
)

type Field struct {
	Name     string
	Aliases  []string
	Prompt   string
	Type     FieldType
	Required bool
}

// Command binds a REPL verb to one HTTP route.
type Command struct {
	Name    string
	Method  string
	Path    string
	Target  Target
	Summary string
	Fields  []Field
}

// RequestSpec is what BuildRequest hands to the HTTP client.
type RequestSpec struct {
	Method string
	Path   string
	Body   []byte
}

// Params maps lower-cased field names to raw values.
type Params map[string]string

func (p Params) Get(key string) string {
	return p[strings.ToLower(key)]
}

func (p Params) Set(key, value string) {
	p[strings.ToLower(key)] = value
}

// ParseParams reads key=value tokens and folds aliases onto field names.
func ParseParams(cmd Command, tokens []string) (Params, error) {
	params := Params{}
	for _, token := range tokens {
		key, value, ok := strings.Cut(token, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", token)
		}
		params.Set(key, value)
	}
	params.resolveAliases(cmd.Fields)
	return params, nil
}

func (p Params) resolveAliases(fields []Field) {
	for _, field := range fields {
		for _, alias := range field.Aliases {
			alias = strings.ToLower(alias)
			value, ok := p[alias]
			if !ok {
				continue
			}
			delete(p, alias)
			if _, set := p[field.Name]; !set {
				p[field.Name] = value
			}
		}
	}
}

func parseInt(value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	return n, nil
}

// parseFloatList reads "3, 1,0" style lists; empty items are skipped.
func parseFloatList(value string) ([]float64, error) {
	var out []float64
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		f, err := strconv.ParseFloat(item, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q in list", item)
		}
		out = append(out, f)
	}
	return out, nil
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read strategy file failed: %w", err)
	}
	return string(data), nil
}
