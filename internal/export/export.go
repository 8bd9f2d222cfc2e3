// Package export runs the bake pipelines: it reads input files, hands the
// arrays to the encoders and partitioners, writes the results and reports
// what happened through the logger.
package export

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Faultbox/geobake/pkg/mesh"
)

// tileProgressEvery is how many tiles are written between progress logs.
const tileProgressEvery = 10

// ErrCanceled is returned when the context ends between pipeline stages.
var ErrCanceled = errors.New("export canceled")

// Exporter runs export pipelines.
type Exporter struct {
	log     *zap.Logger
	printer *message.Printer
}

// New creates an Exporter that logs to log. A nil log discards output.
func New(log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{
		log:     log,
		printer: message.NewPrinter(language.English),
	}
}

// Count formats n with thousands separators.
func (e *Exporter) Count(n int) string {
	return e.printer.Sprintf("%d", n)
}

func (e *Exporter) checkpoint(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		e.log.Warn("export stopped", zap.String("stage", stage), zap.Error(err))
		return errors.Join(ErrCanceled, err)
	}
	return nil
}

func (e *Exporter) warnDiagnostics(diags []mesh.Diagnostic) {
	for _, d := range diags {
		e.log.Warn("feature disabled",
			zap.String("feature", d.Feature),
			zap.String("reason", d.Reason))
	}
}
