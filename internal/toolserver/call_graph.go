package toolserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kraklabs/satori/internal/callgraph"
)

func handleCallGraph(ctx context.Context, d *Dispatcher, args map[string]any) *Result {
	path := args["path"].(string)
	symbolRef := args["symbolRef"].(string)

	direction := callgraph.NormalizeDirection(optionalString(args, "direction"))
	if direction == "" {
		direction = string(callgraph.DirectionCallees)
	}

	result, err := d.callgraph.QueryGraph(ctx, path, symbolRef, callgraph.QueryOptions{
		Direction: callgraph.Direction(direction),
		Depth:     optionalInt(args, "depth", 0),
		Limit:     optionalInt(args, "limit", 0),
	})
	if err != nil {
		return toolErrorResult(err)
	}
	if !result.Supported {
		data, _ := json.Marshal(map[string]any{"supported": false, "reason": result.Reason, "hints": result.Hints})
		return textResult(string(data))
	}

	data, err := json.Marshal(map[string]any{
		"supported": true,
		"nodes":     result.Nodes,
		"edges":     result.Edges,
		"notes":     result.Notes,
	})
	if err != nil {
		return errorResult("Error: cannot encode call graph result: " + fmt.Sprint(err))
	}
	return textResult(string(data))
}
