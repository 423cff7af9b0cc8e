package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `simcatalog catalogs simulation result files and serves their time series.

Core concepts:
- Simulation: one converted result file, identified by <name>_<YYYYMMDD>_<HHMMSS>.
- Status: PENDING, CONVERTING, READY, FAILED or QUARANTINED. Only READY simulations have data.
- Variable: a named float column. Every dataset also has a "time" column in simulation seconds.

Workflow:
1) list_simulations (filter status=READY) to find an id.
2) get_variables to see which columns exist.
3) get_variable_stats for a cheap summary before pulling rows.
4) get_simulation_data with a time window, sample_rate and limit to keep responses small.

Docs: simcatalog://docs/querying
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "simcatalog://docs/querying",
		Name:        "docs_querying",
		Title:       "Querying simulation data",
		Description: "How get_simulation_data filters, downsamples and limits rows.",
		Content: `# Querying simulation data

Filters apply in a fixed order:

1. **Projection**: ` + "`variables`" + ` selects columns. Unknown names are an INVALID_PARAMETER error.
   ` + "`time`" + ` is always returned.
2. **Time window**: rows with ` + "`time_start <= time <= time_end`" + ` are kept. Both bounds are inclusive
   and optional. An empty window returns zero rows, not an error.
3. **Downsampling**: ` + "`sample_rate`" + ` N keeps the first row of every group of N rows.
4. **Limit**: at most ` + "`limit`" + ` rows are returned.

Missing values are null.

## Errors

| code | meaning |
|---|---|
| NOT_FOUND | no simulation with that id |
| NOT_READY | the simulation exists but is not READY |
| INVALID_PARAMETER | bad window, sample_rate, limit or variable name |
| TIMEOUT | the query ran out of time; narrow it |
| STORAGE_FAILURE | the catalog or dataset store is unavailable |
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
