package mods

import (
	"fmt"

	"github.com/ehce/ehce/internal/expr"
	"github.com/ehce/ehce/internal/scripting"
	"go.uber.org/zap"
)

// NewEngine returns the formula engine registered under name.
func NewEngine(name string, log *zap.Logger) (expr.Engine, error) {
	switch name {
	case "", "hcl":
		return expr.NewHCL(), nil
	case "lua":
		return scripting.NewEngine(log), nil
	default:
		return nil, fmt.Errorf("unknown formula engine %q", name)
	}
}
