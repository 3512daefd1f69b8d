package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const workflowCreateSchema = `{
	"type": "object",
	"required": ["name"],
	"properties": {
		"name": {"type": "string"},
		"description": {"type": ["string", "null"]}
	}
}`

const stepCreateSchema = `{
	"type": "object",
	"required": ["prompt"],
	"properties": {
		"prompt": {"type": "string"},
		"result": {"type": ["string", "null"]},
		"progress": {"type": ["integer", "null"], "minimum": 0, "maximum": 100}
	}
}`

var (
	workflowCreateValidator = mustCompile("workflow_create.json", workflowCreateSchema)
	stepCreateValidator     = mustCompile("step_create.json", stepCreateSchema)
)

func mustCompile(name, schema string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("add schema resource %q: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// bindValid decodes the request body into dst after validating it against
// schema. Malformed or invalid bodies yield 422.
func bindValid(c echo.Context, schema *jsonschema.Schema, dst any) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid JSON body: "+err.Error())
	}
	if err := schema.Validate(doc); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, validationDetail(err))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
	}
	return nil
}

func validationDetail(err error) string {
	if ve, ok := err.(*jsonschema.ValidationError); ok {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		loc := leaf.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return fmt.Sprintf("validation failed at %s: %s", loc, leaf.Message)
	}
	return err.Error()
}

// workflowID parses the {id} path parameter.
func workflowID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusUnprocessableEntity, "workflow id must be an integer")
	}
	return id, nil
}
