package globals

import "github.com/hashicorp/go-hclog"

var AppLogger = hclog.New(&hclog.LoggerOptions{
	Name:  "wavechat",
	Level: hclog.LevelFromString("INFO"),
})
