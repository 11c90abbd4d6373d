package globals

import "github.com/hashicorp/go-hclog"

var AppLogger = hclog.New(&hclog.LoggerOptions{
	Name:  "lightspeed-poker",
	Level: hclog.LevelFromString("INFO"),
})
