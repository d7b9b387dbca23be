package toolserver

import (
	"context"
	"encoding/json"
)

func handleFileOutline(ctx context.Context, d *Dispatcher, args map[string]any) *Result {
	path := args["path"].(string)
	relativePath := args["relativePath"].(string)

	nodes, err := d.callgraph.FileOutline(path, relativePath)
	if err != nil {
		return toolErrorResult(err)
	}

	data, err := json.Marshal(map[string]any{"relativePath": relativePath, "symbols": nodes})
	if err != nil {
		return errorResult("Error: cannot encode file outline: " + err.Error())
	}
	return textResult(string(data))
}
