package toolserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kraklabs/satori/internal/search"
)

func handleSearchCodebase(ctx context.Context, d *Dispatcher, args map[string]any) *Result {
	q := search.Query{
		Path:        args["path"].(string),
		QueryText:   args["query"].(string),
		Limit:       optionalInt(args, "limit", 0),
		Scope:       search.Scope(optionalString(args, "scope")),
		ResultMode:  search.ResultMode(optionalString(args, "resultMode")),
		GroupBy:     search.GroupBy(optionalString(args, "groupBy")),
		UseReranker: optionalBoolPtr(args, "useReranker"),
		RankingMode: optionalString(args, "rankingMode"),
		IgnoreExtra: optionalStringSlice(args, "ignorePatterns"),
		Debug:       optionalBoolValue(args, "debug"),
	}

	result := d.search.Search(ctx, q)
	if result.Status == "error" {
		return errorResult(fmt.Sprintf("Error: search_codebase failed: %s", result.Reason))
	}

	data, err := json.Marshal(result)
	if err != nil {
		return errorResult("Error: cannot encode search results: " + err.Error())
	}
	return textResult(string(data))
}
