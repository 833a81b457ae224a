// Package insight re-exports the dashboard core for applications that embed
// DataInsight without importing components/ directly.
package insight

import (
	core "github.com/goliatone/go-datainsight/components/insight"
	"github.com/goliatone/go-datainsight/components/insight/webapp"
)

// Controller exposes the underlying components/insight.Controller type.
type Controller = core.Controller

// Options re-export for convenience.
type Options = core.Options

// Dataset and Row are the tabular data model.
type (
	Dataset = core.Dataset
	Row     = core.Row
)

// WebConfig wires the web layer.
type WebConfig = webapp.Config

// NewController proxies to the internal constructor.
func NewController(opts Options) *Controller {
	return core.NewController(opts)
}

// Register proxies to webapp.Register.
var Register = webapp.Register
