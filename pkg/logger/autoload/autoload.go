// Package autoload initializes the global logger from the LOG_* environment
// on import:
//
//	import _ "github.com/plancanvas/plancanvas/pkg/logger/autoload"
package autoload

import (
	"github.com/kelseyhightower/envconfig"

	logx "github.com/plancanvas/plancanvas/pkg/logger"
)

func init() {
	var conf logx.Config
	if err := envconfig.Process("LOG", &conf); err != nil {
		conf = *logx.DefaultConfig
	}
	logx.Init(conf)
}
