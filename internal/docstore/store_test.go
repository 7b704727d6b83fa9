package docstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreListDocumentsFiltersByTypeAndLimit(t *testing.T) {
	store := NewMemStore()
	store.Add(
		SchemaDoc{Envelope: Envelope{Hash: "s1"}, Table: "ADMISSIONS"},
		GlossaryDoc{Envelope: Envelope{Hash: "g1"}, Term: "ICU"},
		SchemaDoc{Envelope: Envelope{Hash: "s2"}, Table: "ICUSTAYS"},
	)

	docs, err := store.ListDocuments(context.Background(), Filter{Types: []DocType{TypeSchema}}, 0)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = store.ListDocuments(context.Background(), Filter{Types: []DocType{TypeSchema}}, 1)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestMemStoreListDocumentsFiltersByTableScope(t *testing.T) {
	store := NewMemStore()
	store.Add(
		SchemaDoc{Envelope: Envelope{Hash: "s1"}, Table: "ADMISSIONS"},
		SchemaDoc{Envelope: Envelope{Hash: "s2"}, Table: "ICUSTAYS"},
		GlossaryDoc{Envelope: Envelope{Hash: "g1"}, Term: "unscoped doc always passes"},
	)

	docs, err := store.ListDocuments(context.Background(), Filter{TableScope: []string{"ICUSTAYS"}}, 0)
	require.NoError(t, err)

	var tables []string
	for _, d := range docs {
		if sd, ok := d.(SchemaDoc); ok {
			tables = append(tables, sd.Table)
		}
	}
	assert.Equal(t, []string{"ICUSTAYS"}, tables)
	assert.Len(t, docs, 2) // ICUSTAYS schema doc + the unscoped glossary doc
}

func TestMemStoreVectorSearchRanksByCosineSimilarityAndSkipsUnembedded(t *testing.T) {
	store := NewMemStore()
	store.Add(
		SchemaDoc{Envelope: Envelope{Hash: "close", Embedding: []float32{1, 0}}},
		SchemaDoc{Envelope: Envelope{Hash: "far", Embedding: []float32{0, 1}}},
		SchemaDoc{Envelope: Envelope{Hash: "no-embedding"}},
	)

	scored, err := store.VectorSearch(context.Background(), []float32{1, 0}, 0, Filter{})
	require.NoError(t, err)
	require.Len(t, scored, 2)
	assert.Equal(t, "close", scored[0].Doc.GetHash())
	assert.Equal(t, "far", scored[1].Doc.GetHash())
	assert.Greater(t, scored[0].Score, scored[1].Score)
}

func TestMemStoreVectorSearchRespectsK(t *testing.T) {
	store := NewMemStore()
	store.Add(
		SchemaDoc{Envelope: Envelope{Hash: "a", Embedding: []float32{1, 0}}},
		SchemaDoc{Envelope: Envelope{Hash: "b", Embedding: []float32{0.9, 0.1}}},
		SchemaDoc{Envelope: Envelope{Hash: "c", Embedding: []float32{0, 1}}},
	)

	scored, err := store.VectorSearch(context.Background(), []float32{1, 0}, 1, Filter{})
	require.NoError(t, err)
	assert.Len(t, scored, 1)
	assert.Equal(t, "a", scored[0].Doc.GetHash())
}

func TestLoadJSONLFileDecodesKnownTypes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.jsonl")
	content := `{"type":"schema","data":{"hash":"h1","table":"ADMISSIONS","columns":["HADM_ID"]}}
{"type":"glossary","data":{"hash":"h2","term":"ICU","definition":"intensive care unit"}}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	docs, err := LoadJSONLFile(path)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, TypeSchema, docs[0].Type())
	assert.Equal(t, TypeGlossary, docs[1].Type())
}

func TestLoadJSONLFileRejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"bogus","data":{}}`+"\n"), 0o644))

	_, err := LoadJSONLFile(path)
	assert.Error(t, err)
}

func TestLoadJSONLDirReadsOnlyJSONLFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.jsonl"),
		[]byte(`{"type":"schema","data":{"hash":"h1","table":"ADMISSIONS"}}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignore me"), 0o644))

	docs, err := LoadJSONLDir(dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, TypeSchema, docs[0].Type())
}

func TestFilterAllowsUnfilteredDocWhenNoTypesOrScopeSet(t *testing.T) {
	f := Filter{}
	assert.True(t, f.allows(SchemaDoc{Table: "ADMISSIONS"}))
}

func TestFilterRejectsNonMatchingTableScopeForScopedDocTypes(t *testing.T) {
	f := Filter{TableScope: []string{"ICUSTAYS"}}
	assert.False(t, f.allows(SchemaDoc{Table: "ADMISSIONS"}))
	assert.True(t, f.allows(SchemaDoc{Table: "ICUSTAYS"}))
}

func TestFilterTableScopeIgnoresDocTypesWithoutATable(t *testing.T) {
	f := Filter{TableScope: []string{"ICUSTAYS"}}
	assert.True(t, f.allows(GlossaryDoc{Term: "ICU"}))
}
