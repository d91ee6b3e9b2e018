package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	schemaOnce sync.Once
	schemas    map[string]*jsonschema.Schema
	schemaErr  error
)

func compileSchemas() {
	schemas = map[string]*jsonschema.Schema{}
	c := jsonschema.NewCompiler()
	names := map[string]string{
		TypeHello:   "hello",
		TypeWelcome: "welcome",
		TypeState:   "state",
		TypeEvent:   "event",
		TypeCmd:     "cmd",
		TypeResult:  "result",
	}
	for typ, name := range names {
		b, err := schemaFS.ReadFile("schemas/" + name + ".schema.json")
		if err != nil {
			schemaErr = err
			return
		}
		url := "mem://" + name + ".schema.json"
		if err := c.AddResource(url, bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("schema %s: %w", name, err)
			return
		}
		s, err := c.Compile(url)
		if err != nil {
			schemaErr = fmt.Errorf("schema %s: %w", name, err)
			return
		}
		schemas[typ] = s
	}
}

// Validate checks a raw message against the schema of its type.
func Validate(raw []byte) error {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	base, err := DecodeBase(raw)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	s, ok := schemas[strings.ToUpper(base.Type)]
	if !ok {
		return fmt.Errorf("unknown message type %q", base.Type)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
