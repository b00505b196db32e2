// Package planfile reads plan versions from HCL or JSON definition files.
package planfile

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"premium-rating/core/rateplan"
	rerrors "premium-rating/internal/errors"
)

// hclFile is the top level of a .hcl plan file; one file may hold several versions
type hclFile struct {
	Plans []rateplan.Document `hcl:"plan,block"`
}

// jsonFile is the top level of a .json plan file holding several versions
type jsonFile struct {
	Plans []rateplan.Document `json:"plans"`
}

// Loader reads every plan file under a directory
type Loader struct {
	dir string
}

// NewLoader creates a loader for dir
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// LoadPlans implements rateplan.Source
func (l *Loader) LoadPlans(ctx context.Context) ([]*rateplan.Snapshot, error) {
	var files []string
	err := filepath.WalkDir(l.dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && IsPlanFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, rerrors.Config(fmt.Sprintf("failed to walk plan directory %s", l.dir), err)
	}
	sort.Strings(files)

	parser := hclparse.NewParser()
	var out []*rateplan.Snapshot
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		docs, err := parseFile(parser, path)
		if err != nil {
			return nil, err
		}
		snaps, err := Build(path, docs)
		if err != nil {
			return nil, err
		}
		out = append(out, snaps...)
	}
	return out, nil
}

// IsPlanFile reports whether path has a plan file extension
func IsPlanFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl", ".json":
		return true
	}
	return false
}

// ParseFile reads the plan documents in one file
func ParseFile(path string) ([]rateplan.Document, error) {
	return parseFile(hclparse.NewParser(), path)
}

func parseFile(parser *hclparse.Parser, path string) ([]rateplan.Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, rerrors.Config(fmt.Sprintf("failed to read plan file %s", path), err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(path, src)
	}
	return parseHCL(parser, path, src)
}

// ParseHCL decodes plan blocks from HCL source
func ParseHCL(filename string, src []byte) ([]rateplan.Document, error) {
	return parseHCL(hclparse.NewParser(), filename, src)
}

func parseHCL(parser *hclparse.Parser, filename string, src []byte) ([]rateplan.Document, error) {
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diagError(filename, diags)
	}
	var f hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &f); diags.HasErrors() {
		return nil, diagError(filename, diags)
	}
	return f.Plans, nil
}

// ParseJSON decodes either a single plan document or {"plans": [...]}
func ParseJSON(filename string, src []byte) ([]rateplan.Document, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(src, &probe); err != nil {
		return nil, rerrors.Wrapf(rerrors.TypeInvalidPlan, err, "plan file %s", filename)
	}
	if _, many := probe["plans"]; many {
		var f jsonFile
		if err := json.Unmarshal(src, &f); err != nil {
			return nil, rerrors.Wrapf(rerrors.TypeInvalidPlan, err, "plan file %s", filename)
		}
		return f.Plans, nil
	}
	var doc rateplan.Document
	if err := json.Unmarshal(src, &doc); err != nil {
		return nil, rerrors.Wrapf(rerrors.TypeInvalidPlan, err, "plan file %s", filename)
	}
	return []rateplan.Document{doc}, nil
}

// Build turns parsed documents into sealed snapshots
func Build(filename string, docs []rateplan.Document) ([]*rateplan.Snapshot, error) {
	out := make([]*rateplan.Snapshot, 0, len(docs))
	for i := range docs {
		snap, err := rateplan.FromDocument(&docs[i])
		if err != nil {
			if e, ok := rerrors.As(err); ok {
				return nil, e.WithContext("file", filename)
			}
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func diagError(filename string, diags hcl.Diagnostics) error {
	msgs := make([]string, 0, len(diags))
	for _, d := range diags {
		if d.Severity == hcl.DiagError {
			msgs = append(msgs, d.Error())
		}
	}
	return rerrors.Newf(rerrors.TypeInvalidPlan, "plan file %s: %s", filename, strings.Join(msgs, "; ")).
		WithContext("file", filename).
		WithContext("problems", msgs)
}
