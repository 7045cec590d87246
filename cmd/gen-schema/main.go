// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

// Command gen-schema writes the JSON Schema of every API request body.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/creatorhub/creatorhub/internal/httpapi"
)

func main() {
	outDir := pflag.StringP("out", "o", filepath.Join("schemas", "api"), "output directory")
	pflag.Parse()

	if err := generate(*outDir, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// generate writes <name>.schema.json into outDir for each request schema.
func generate(outDir string, w io.Writer) error {
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	for _, name := range httpapi.SchemaNames() {
		schema, err := httpapi.GenerateSchema(name)
		if err != nil {
			return fmt.Errorf("generating %s schema: %w", name, err)
		}

		outPath := filepath.Join(outDir, name+".schema.json")
		if err := os.WriteFile(outPath, schema, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
		fmt.Fprintf(w, "Generated %s\n", outPath)
	}
	return nil
}
