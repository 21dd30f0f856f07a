package lenders

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// FileSource reads lender configuration from a local JSON file.
type FileSource struct {
	Path string
}

func (f FileSource) LenderConfig(_ context.Context) ([]byte, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, errors.New("lenders: file source path is empty")
	}
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("lenders: read %s: %w", f.Path, err)
	}
	return raw, nil
}

// ParamGetter reads a single named parameter.
type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// ParameterSource reads lender configuration from a parameter store entry.
type ParameterSource struct {
	getter ParamGetter
	name   string
}

func NewParameterSource(getter ParamGetter, name string) (*ParameterSource, error) {
	if getter == nil {
		return nil, errors.New("lenders: param getter must not be nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("lenders: parameter name must not be empty")
	}
	return &ParameterSource{getter: getter, name: name}, nil
}

func (p *ParameterSource) LenderConfig(ctx context.Context) ([]byte, error) {
	v, err := p.getter.GetParameter(ctx, p.name)
	if err != nil {
		return nil, fmt.Errorf("lenders: load parameter %s: %w", p.name, err)
	}
	return []byte(v), nil
}
