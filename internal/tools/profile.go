package tools

import (
	"context"
	"fmt"

	"tableagent/internal/dataset"
)

// Profile summarizes every column of a delimited file.
type Profile struct {
	DataDir string
}

func (p *Profile) Name() string { return "profile" }
func (p *Profile) Description() string {
	return "Loads a CSV/TSV file and returns summary statistics for every column " +
		"(count, unique, top, freq, mean, std, min, quartiles, max). " +
		"Use this first to learn the column names."
}
func (p *Profile) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file": map[string]any{
				"type":        "string",
				"description": "Path to the data file, e.g. data/sales.csv.",
			},
		},
		"required": []string{"file"},
	}
}

func (p *Profile) Execute(ctx context.Context, args map[string]any) (string, error) {
	file := stringArg(args, "file")
	if file == "" {
		return "", fmt.Errorf("file is required")
	}
	path, err := resolveInput(file, p.DataDir)
	if err != nil {
		return "", err
	}
	tbl, err := dataset.Load(ctx, path)
	if err != nil {
		return "", err
	}
	return dataset.Describe(tbl).String(), nil
}
