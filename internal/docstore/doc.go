// Package docstore models the retrieval unit as a tagged sum type instead
// of the original's dict with a "type" metadata string, per the "Dynamic
// typing -> tagged variants" design note in spec §9. Every concrete Doc
// struct carries the shared envelope (hash, text, embedding) plus its own
// typed fields; retrieval dispatches on a type switch, never a string
// compare.
package docstore

// DocType enumerates the closed set of retrieval-unit kinds from spec §3.
type DocType string

const (
	TypeSchema        DocType = "schema"
	TypeExample        DocType = "example"
	TypeTemplate        DocType = "template"
	TypeGlossary        DocType = "glossary"
	TypeDiagnosisMap    DocType = "diagnosis_map"
	TypeProcedureMap    DocType = "procedure_map"
	TypeLabelIntent     DocType = "label_intent"
	TypeColumnValue     DocType = "column_value"
	TypeTableProfile    DocType = "table_profile"
)

// Envelope is embedded by every concrete Doc implementation.
type Envelope struct {
	Hash      string    `json:"hash"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
}

func (e Envelope) GetHash() string       { return e.Hash }
func (e Envelope) GetText() string       { return e.Text }
func (e Envelope) GetEmbedding() []float32 { return e.Embedding }

// Doc is the interface every retrieval-unit struct satisfies. Type() lets
// callers route without touching fields; the retriever still prefers a Go
// type switch on the concrete struct when it needs type-specific fields.
type Doc interface {
	Type() DocType
	GetHash() string
	GetText() string
	GetEmbedding() []float32
}

// SchemaDoc describes one table's shape for schema-context retrieval.
type SchemaDoc struct {
	Envelope
	Table   string   `json:"table"`
	Owner   string   `json:"owner"`
	Columns []string `json:"columns"`
}

func (SchemaDoc) Type() DocType { return TypeSchema }

// ExampleDoc is a worked question->SQL exemplar.
type ExampleDoc struct {
	Envelope
	Question string `json:"question"`
	SQL      string `json:"sql"`
	Tags     []string `json:"tags,omitempty"`
}

func (ExampleDoc) Type() DocType { return TypeExample }

// TemplateDoc is a parameterized SQL skeleton for a recurring intent shape.
type TemplateDoc struct {
	Envelope
	Name     string `json:"name"`
	Skeleton string `json:"skeleton"`
}

func (TemplateDoc) Type() DocType { return TypeTemplate }

// GlossaryDoc defines one clinical or schema term.
type GlossaryDoc struct {
	Envelope
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

func (GlossaryDoc) Type() DocType { return TypeGlossary }

// DiagnosisMapDoc binds a clinical term to ICD prefixes.
type DiagnosisMapDoc struct {
	Envelope
	Term        string   `json:"term"`
	ICDPrefixes []string `json:"icd_prefixes"`
}

func (DiagnosisMapDoc) Type() DocType { return TypeDiagnosisMap }

// ProcedureMapDoc binds a procedure term to ICD procedure prefixes.
type ProcedureMapDoc struct {
	Envelope
	Term        string   `json:"term"`
	ICDPrefixes []string `json:"icd_prefixes"`
}

func (ProcedureMapDoc) Type() DocType { return TypeProcedureMap }

// LabelIntentDoc binds a clinical concept to D_ITEMS.LABEL anchor terms.
type LabelIntentDoc struct {
	Envelope
	Concept        string   `json:"concept"`
	AnchorTerms    []string `json:"anchor_terms"`
	RequiredWith   []string `json:"required_with,omitempty"`
}

func (LabelIntentDoc) Type() DocType { return TypeLabelIntent }

// ColumnValueDoc is one (table, column, value, description) dictionary row.
type ColumnValueDoc struct {
	Envelope
	Table       string `json:"table"`
	Column      string `json:"column"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

func (ColumnValueDoc) Type() DocType { return TypeColumnValue }

// TableProfileDoc is a table-level value/quality profile.
type TableProfileDoc struct {
	Envelope
	Table         string   `json:"table"`
	DistinctCols  []string `json:"distinct_cols,omitempty"`
	RowCount      int64    `json:"row_count,omitempty"`
}

func (TableProfileDoc) Type() DocType { return TypeTableProfile }

// ScoredDoc pairs a doc with the score a retrieval pass assigned it.
type ScoredDoc struct {
	Doc   Doc
	Score float64
}

// Filter narrows ListDocuments/VectorSearch to one or more types and,
// optionally, a table scope.
type Filter struct {
	Types      []DocType
	TableScope []string
}

func (f Filter) allows(d Doc) bool {
	if len(f.Types) > 0 {
		ok := false
		for _, t := range f.Types {
			if d.Type() == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.TableScope) == 0 {
		return true
	}
	table := ""
	switch v := d.(type) {
	case SchemaDoc:
		table = v.Table
	case TableProfileDoc:
		table = v.Table
	case ColumnValueDoc:
		table = v.Table
	default:
		return true
	}
	for _, t := range f.TableScope {
		if t == table {
			return true
		}
	}
	return false
}
