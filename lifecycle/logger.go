package lifecycle

import (
	"log/slog"

	"github.com/gogpu/pano"
)

func logger() *slog.Logger { return pano.Logger() }
