package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"query-orchestrator/pkg/registry"
)

const defaultRegistryPath = "configs/operations.json"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		help(out)
		return errors.New("missing command")
	}

	switch args[0] {
	case "add":
		fs := flag.NewFlagSet("add", flag.ContinueOnError)
		path := fs.String("path", defaultRegistryPath, "Path to registry file")
		id := fs.String("id", "", "Operation ID (e.g., weather)")
		ttl := fs.String("ttl", "5m", "Cache lifetime (Go duration)")
		cacheable := fs.Bool("cacheable", true, "Whether results may be cached")
		description := fs.String("description", "", "Description")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *id == "" {
			return errors.New("id is required for add")
		}
		if err := addOperation(*path, registry.Operation{ID: *id, TTL: *ttl, Cacheable: *cacheable, Description: *description}); err != nil {
			return err
		}
		fmt.Fprintf(out, "Added operation: %s\n", *id)

	case "update":
		fs := flag.NewFlagSet("update", flag.ContinueOnError)
		path := fs.String("path", defaultRegistryPath, "Path to registry file")
		id := fs.String("id", "", "Operation ID to update")
		field := fs.String("field", "", "Field to update (ttl, cacheable, description)")
		value := fs.String("value", "", "New value for the field")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *id == "" || *field == "" {
			return errors.New("id and field are required for update")
		}
		if err := updateOperation(*path, *id, *field, *value); err != nil {
			return err
		}
		fmt.Fprintf(out, "Updated operation %s, field %s to %s\n", *id, *field, *value)

	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		path := fs.String("path", defaultRegistryPath, "Path to registry file")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		reg, err := registry.LoadRegistry(*path)
		if err != nil {
			return fmt.Errorf("registry validation failed: %w", err)
		}
		fmt.Fprintf(out, "Registry validation passed (%d operations).\n", len(reg.Operations))

	default:
		help(out)
	}
	return nil
}

func addOperation(path string, op registry.Operation) error {
	reg, err := registry.LoadRegistry(path)
	if errors.Is(err, os.ErrNotExist) {
		reg = &registry.OperationRegistry{Version: "1"}
	} else if err != nil {
		return err
	}
	if _, exists := reg.Find(op.ID); exists {
		return fmt.Errorf("operation %q already exists", op.ID)
	}
	reg.Upsert(op)
	return registry.SaveRegistry(path, reg)
}

func updateOperation(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return err
	}
	op, ok := reg.Find(id)
	if !ok {
		return fmt.Errorf("operation %q not found", id)
	}

	switch field {
	case "ttl":
		op.TTL = value
	case "cacheable":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cacheable: %w", err)
		}
		op.Cacheable = b
	case "description":
		op.Description = value
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return registry.SaveRegistry(path, reg)
}

func help(out io.Writer) {
	fmt.Fprintln(out, `Usage: registry-updater <command> [flags]

Commands:
  add       Add an operation (-id, -ttl, -cacheable, -description)
  update    Change one field of an operation (-id, -field, -value)
  validate  Check the registry file`)
}
