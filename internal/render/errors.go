package render

import (
	"fmt"

	"github.com/catalystcommunity/enginecore/internal/errs"
)

var (
	errNoSuchBuffer = fmt.Errorf("render: no such buffer: %w", errs.ErrNotFound)
	errNoSuchImage  = fmt.Errorf("render: no such image: %w", errs.ErrNotFound)
)
