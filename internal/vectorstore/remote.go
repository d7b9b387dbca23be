package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/kraklabs/satori/internal/errs"
	"github.com/kraklabs/satori/internal/fingerprint"
)

const (
	fieldID          = "id"
	fieldPath        = "path"
	fieldStartLine   = "start_line"
	fieldEndLine     = "end_line"
	fieldText        = "text"
	fieldScope       = "scope"
	fieldLanguage    = "language"
	fieldSparseTerms = "sparse_terms"
	fieldEmbedding   = "embedding"

	markerDocID = "__satori_index_completion_v1__"

	maxManagedCollections = 64 // Zilliz Cloud free/serverless tier default cap
)

// RemoteStore backs Milvus and Zilliz Cloud collections through the
// official gRPC client, used whenever config.VectorStore.Provider is
// "milvus" or "zilliz".
type RemoteStore struct {
	cli      client.Client
	provider fingerprint.VectorStoreProvider
}

// RemoteConfig configures the connection to a Milvus or Zilliz deployment.
type RemoteConfig struct {
	Address  string
	APIToken string
	Provider fingerprint.VectorStoreProvider
}

// OpenRemote connects to a Milvus/Zilliz endpoint.
func OpenRemote(ctx context.Context, cfg RemoteConfig) (*RemoteStore, error) {
	opts := client.Config{Address: cfg.Address}
	if cfg.APIToken != "" {
		opts.APIKey = cfg.APIToken
	}
	cli, err := client.NewClient(ctx, opts)
	if err != nil {
		return nil, errs.NewDatabaseError(
			"Cannot connect to vector store",
			fmt.Sprintf("Failed to reach %s", cfg.Address),
			"Check MILVUS_ADDRESS/MILVUS_TOKEN or ZILLIZ_API_KEY and network connectivity",
			err,
		)
	}
	provider := cfg.Provider
	if provider == "" {
		provider = fingerprint.VectorStoreMilvus
	}
	return &RemoteStore{cli: cli, provider: provider}, nil
}

func collectionSchema(collectionName string, dimension int) *entity.Schema {
	return entity.NewSchema().WithName(collectionName).WithDescription("satori hybrid code chunks").
		WithField(entity.NewField().WithName(fieldID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(128).WithIsPrimaryKey(true)).
		WithField(entity.NewField().WithName(fieldPath).WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096)).
		WithField(entity.NewField().WithName(fieldStartLine).WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName(fieldEndLine).WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName(fieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535)).
		WithField(entity.NewField().WithName(fieldScope).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
		WithField(entity.NewField().WithName(fieldLanguage).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
		WithField(entity.NewField().WithName(fieldSparseTerms).WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535)).
		WithField(entity.NewField().WithName(fieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dimension)))
}

func (r *RemoteStore) EnsureCollection(ctx context.Context, collectionName string, dimension int) error {
	exists, err := r.cli.HasCollection(ctx, collectionName)
	if err != nil {
		return errs.NewDatabaseError("Cannot check collection existence", collectionName, "", err)
	}
	if exists {
		return nil
	}

	if err := r.cli.CreateCollection(ctx, collectionSchema(collectionName, dimension), 2); err != nil {
		return errs.NewDatabaseError("Cannot create collection", collectionName, "", err)
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, 16, 64)
	if err != nil {
		return errs.NewInternalError("Cannot build index parameters", collectionName, "", err)
	}
	if err := r.cli.CreateIndex(ctx, collectionName, fieldEmbedding, idx, false); err != nil {
		return errs.NewDatabaseError("Cannot create vector index", collectionName, "", err)
	}
	if err := r.cli.LoadCollection(ctx, collectionName, false); err != nil {
		return errs.NewDatabaseError("Cannot load collection", collectionName, "", err)
	}
	return nil
}

func (r *RemoteStore) DropCollection(ctx context.Context, collectionName string) (bool, error) {
	exists, err := r.cli.HasCollection(ctx, collectionName)
	if err != nil {
		return false, errs.NewDatabaseError("Cannot check collection existence", collectionName, "", err)
	}
	if !exists {
		return false, nil
	}
	if err := r.cli.DropCollection(ctx, collectionName); err != nil {
		return false, flattenZillizError(err, "Cannot drop collection", collectionName)
	}
	return true, nil
}

func (r *RemoteStore) CollectionExists(ctx context.Context, collectionName string) (bool, error) {
	exists, err := r.cli.HasCollection(ctx, collectionName)
	if err != nil {
		return false, errs.NewDatabaseError("Cannot check collection existence", collectionName, "", err)
	}
	return exists, nil
}

func (r *RemoteStore) UpsertChunks(ctx context.Context, collectionName string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	paths := make([]string, len(chunks))
	starts := make([]int64, len(chunks))
	ends := make([]int64, len(chunks))
	texts := make([]string, len(chunks))
	scopes := make([]string, len(chunks))
	langs := make([]string, len(chunks))
	sparses := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))

	for i, c := range chunks {
		ids[i] = c.ID
		paths[i] = c.Path
		starts[i] = int64(c.StartLine)
		ends[i] = int64(c.EndLine)
		texts[i] = c.Text
		scopes[i] = c.Scope
		langs[i] = c.Language
		sparse, _ := json.Marshal(c.SparseTerms)
		sparses[i] = string(sparse)
		vectors[i] = c.Vector
	}

	columns := []entity.Column{
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnVarChar(fieldPath, paths),
		entity.NewColumnInt64(fieldStartLine, starts),
		entity.NewColumnInt64(fieldEndLine, ends),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnVarChar(fieldScope, scopes),
		entity.NewColumnVarChar(fieldLanguage, langs),
		entity.NewColumnVarChar(fieldSparseTerms, sparses),
		entity.NewColumnFloatVector(fieldEmbedding, len(vectors[0]), vectors),
	}

	if _, err := r.cli.Upsert(ctx, collectionName, "", columns...); err != nil {
		return flattenZillizError(err, "Cannot upsert chunks", collectionName)
	}
	return nil
}

func (r *RemoteStore) DeleteChunksByPath(ctx context.Context, collectionName string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	expr := pathInExpr(paths)
	if err := r.cli.Delete(ctx, collectionName, "", expr); err != nil {
		return flattenZillizError(err, "Cannot delete chunks", collectionName)
	}
	return nil
}

func pathInExpr(paths []string) string {
	expr := fieldPath + " in ["
	for i, p := range paths {
		if i > 0 {
			expr += ", "
		}
		b, _ := json.Marshal(p)
		expr += string(b)
	}
	return expr + "]"
}

func (r *RemoteStore) Search(ctx context.Context, collectionName string, q SearchQuery) ([]SearchHit, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = 10
	}
	fetchK := topK * 5

	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, errs.NewInternalError("Cannot build search parameters", "", "", err)
	}

	vectors := []entity.Vector{entity.FloatVector(q.DenseVector)}
	results, err := r.cli.Search(ctx, collectionName, nil, "", []string{
		fieldID, fieldPath, fieldStartLine, fieldEndLine, fieldText, fieldScope, fieldLanguage, fieldSparseTerms,
	}, vectors, fieldEmbedding, entity.COSINE, fetchK, sp)
	if err != nil {
		return nil, flattenZillizError(err, "Vector search failed", collectionName)
	}
	if len(results) == 0 {
		return nil, nil
	}

	var hits []SearchHit
	res := results[0]
	for i := 0; i < res.ResultCount; i++ {
		c := Chunk{}
		c.ID, _ = res.IDs.GetAsString(i)
		for _, f := range res.Fields {
			switch f.Name() {
			case fieldPath:
				if col, ok := f.(*entity.ColumnVarChar); ok {
					c.Path = col.Data()[i]
				}
			case fieldStartLine:
				if col, ok := f.(*entity.ColumnInt64); ok {
					c.StartLine = int(col.Data()[i])
				}
			case fieldEndLine:
				if col, ok := f.(*entity.ColumnInt64); ok {
					c.EndLine = int(col.Data()[i])
				}
			case fieldText:
				if col, ok := f.(*entity.ColumnVarChar); ok {
					c.Text = col.Data()[i]
				}
			case fieldScope:
				if col, ok := f.(*entity.ColumnVarChar); ok {
					c.Scope = col.Data()[i]
				}
			case fieldLanguage:
				if col, ok := f.(*entity.ColumnVarChar); ok {
					c.Language = col.Data()[i]
				}
			case fieldSparseTerms:
				if col, ok := f.(*entity.ColumnVarChar); ok {
					_ = json.Unmarshal([]byte(col.Data()[i]), &c.SparseTerms)
				}
			}
		}

		score := 1.0 / (1.0 + float64(res.Scores[i]))
		if w, ok := q.ScopeWeights[c.Scope]; ok {
			score *= w
		}
		for prefix, boost := range q.PathBoosts {
			if len(c.Path) >= len(prefix) && c.Path[:len(prefix)] == prefix {
				score *= boost
				break
			}
		}
		hits = append(hits, SearchHit{Chunk: c, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (r *RemoteStore) WriteCompletionMarker(ctx context.Context, collectionName string, marker CompletionMarker) error {
	marker.Kind = MarkerKind
	payload, err := json.Marshal(marker)
	if err != nil {
		return errs.NewInternalError("Cannot encode completion marker", "", "", err)
	}

	dim, err := r.dimension(ctx, collectionName)
	if err != nil {
		return err
	}
	zeroVec := make([]float32, dim)

	columns := []entity.Column{
		entity.NewColumnVarChar(fieldID, []string{markerDocID}),
		entity.NewColumnVarChar(fieldPath, []string{marker.CodebasePath}),
		entity.NewColumnInt64(fieldStartLine, []int64{0}),
		entity.NewColumnInt64(fieldEndLine, []int64{0}),
		entity.NewColumnVarChar(fieldText, []string{string(payload)}),
		entity.NewColumnVarChar(fieldScope, []string{"marker"}),
		entity.NewColumnVarChar(fieldLanguage, []string{""}),
		entity.NewColumnVarChar(fieldSparseTerms, []string{"{}"}),
		entity.NewColumnFloatVector(fieldEmbedding, dim, [][]float32{zeroVec}),
	}
	if _, err := r.cli.Upsert(ctx, collectionName, "", columns...); err != nil {
		return flattenZillizError(err, "Cannot write completion marker", collectionName)
	}
	return nil
}

func (r *RemoteStore) ReadCompletionMarker(ctx context.Context, collectionName string) (*CompletionMarker, error) {
	expr := fmt.Sprintf("%s == \"%s\"", fieldID, markerDocID)
	results, err := r.cli.Query(ctx, collectionName, nil, expr, []string{fieldText})
	if err != nil {
		return nil, flattenZillizError(err, "Cannot read completion marker", collectionName)
	}
	for _, col := range results {
		if col.Name() != fieldText {
			continue
		}
		varchar, ok := col.(*entity.ColumnVarChar)
		if !ok || varchar.Len() == 0 {
			return nil, nil
		}
		var marker CompletionMarker
		if err := json.Unmarshal([]byte(varchar.Data()[0]), &marker); err != nil {
			return nil, errs.NewDatabaseError("Completion marker is corrupt", collectionName, "", err)
		}
		return &marker, nil
	}
	return nil, nil
}

func (r *RemoteStore) dimension(ctx context.Context, collectionName string) (int, error) {
	desc, err := r.cli.DescribeCollection(ctx, collectionName)
	if err != nil {
		return 0, errs.NewDatabaseError("Cannot describe collection", collectionName, "", err)
	}
	for _, f := range desc.Schema.Fields {
		if f.Name == fieldEmbedding {
			if dimStr, ok := f.TypeParams["dim"]; ok {
				var dim int
				fmt.Sscanf(dimStr, "%d", &dim)
				return dim, nil
			}
		}
	}
	return 0, errs.NewInternalError("Cannot determine embedding dimension", collectionName, "", nil)
}

// CheckCollectionLimit reports whether Zilliz Cloud has capacity for one
// more Satori-managed collection. Milvus self-hosted has no such cap.
func (r *RemoteStore) CheckCollectionLimit(ctx context.Context) (bool, error) {
	if r.provider != fingerprint.VectorStoreZilliz {
		return true, nil
	}
	collections, err := r.cli.ListCollections(ctx)
	if err != nil {
		return false, errs.NewDatabaseError("Cannot list collections", "", "", err)
	}
	return len(collections) < maxManagedCollections, nil
}

func (r *RemoteStore) ListManagedCollections(ctx context.Context) ([]CollectionInfo, error) {
	collections, err := r.cli.ListCollections(ctx)
	if err != nil {
		return nil, errs.NewDatabaseError("Cannot list collections", "", "", err)
	}

	out := make([]CollectionInfo, 0, len(collections))
	for _, c := range collections {
		marker, err := r.ReadCompletionMarker(ctx, c.Name)
		info := CollectionInfo{Name: c.Name, CreatedAt: time.Unix(0, c.CreateTime)}
		if err == nil && marker != nil {
			info.CodebasePath = marker.CodebasePath
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *RemoteStore) Provider() fingerprint.VectorStoreProvider {
	return r.provider
}

func (r *RemoteStore) Close() error {
	return r.cli.Close()
}

// flattenZillizError renders any Zilliz/Milvus error that carries a
// {code, reason, details} shape as a single readable message, so callers
// never surface "[object Object]"-style output.
func flattenZillizError(err error, title, detail string) error {
	type codedErr interface {
		error
		Code() int32
	}
	if ce, ok := err.(codedErr); ok {
		return errs.NewDatabaseError(title, fmt.Sprintf("%s (code %d): %v", detail, ce.Code(), err), "", err)
	}
	return errs.NewDatabaseError(title, fmt.Sprintf("%s: %v", detail, err), "", err)
}
