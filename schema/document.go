package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// The introspection document uses object identity: the first occurrence of an
// object is written inline with an "@uuid" field, later occurrences are the
// bare uuid string. node holds either form.
type node struct {
	ID  string
	Raw json.RawMessage
}

func (n *node) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		return json.Unmarshal(data, &n.ID)
	}

	var head struct {
		ID string `json:"@uuid"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	n.ID = head.ID
	n.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (n node) inline() bool { return len(n.Raw) > 0 }

func (n node) empty() bool { return n.ID == "" && !n.inline() }

type rawDocument struct {
	Catalog *struct {
		Name         string `json:"name"`
		DatabaseInfo struct {
			ProductName    string `json:"product-name"`
			ProductVersion string `json:"product-version"`
		} `json:"database-info"`
		Tables *[]rawTable `json:"tables"`
	} `json:"catalog"`
	AllTableColumns *[]rawColumn `json:"all-table-columns"`
}

type rawTable struct {
	ID               string         `json:"@uuid"`
	Name             string         `json:"name"`
	Remarks          string         `json:"remarks"`
	Attributes       map[string]any `json:"attributes"`
	TableType        node           `json:"table-type"`
	Columns          []node         `json:"columns"`
	PrimaryKey       node           `json:"primary-key"`
	Indexes          []node         `json:"indexes"`
	ForeignKeys      []node         `json:"foreign-keys"`
	Triggers         []node         `json:"triggers"`
	TableConstraints []node         `json:"table-constraints"`
}

type rawTableType struct {
	TableType string `json:"table-type"`
}

type rawColumn struct {
	ID              string         `json:"@uuid"`
	Name            string         `json:"name"`
	ShortName       string         `json:"short-name"`
	Attributes      map[string]any `json:"attributes"`
	AutoIncremented bool           `json:"auto-incremented"`
	Nullable        bool           `json:"nullable"`
	DefaultValue    *string        `json:"default-value"`
	Width           string         `json:"width"`
	ColumnDataType  node           `json:"column-data-type"`
}

type rawDataType struct {
	Name          string  `json:"name"`
	LiteralPrefix *string `json:"literal-prefix"`
	LiteralSuffix *string `json:"literal-suffix"`
}

type rawIndex struct {
	Name       string         `json:"name"`
	Unique     bool           `json:"unique"`
	Columns    []node         `json:"columns"`
	Attributes map[string]any `json:"attributes"`
}

type rawColumnReference struct {
	KeySequence      int    `json:"key-sequence"`
	ForeignKeyColumn string `json:"foreign-key-column"`
	PrimaryKeyColumn string `json:"primary-key-column"`
}

type rawForeignKey struct {
	Name             string               `json:"name"`
	DeleteRule       string               `json:"delete-rule"`
	UpdateRule       string               `json:"update-rule"`
	ColumnReferences []rawColumnReference `json:"column-references"`
}

type rawTrigger struct {
	Name                  string `json:"name"`
	ActionOrientation     string `json:"action-orientation"`
	ActionStatement       string `json:"action-statement"`
	ConditionTiming       string `json:"condition-timing"`
	EventManipulationType string `json:"event-manipulation-type"`
	ActionCondition       string `json:"action-condition"`
	ActionOrder           int    `json:"action-order"`
}

type rawConstraint struct {
	Name           string `json:"name"`
	ConstraintType string `json:"constraint-type"`
	Definition     string `json:"definition"`
}

// registry maps every inline object in the document to its uuid so that
// later string references can be resolved.
type registry map[string]json.RawMessage

func (r registry) add(n node) {
	if n.inline() && n.ID != "" {
		if _, ok := r[n.ID]; !ok {
			r[n.ID] = n.Raw
		}
	}
}

func (r registry) addAll(nodes []node) {
	for _, n := range nodes {
		r.add(n)
	}
}

// resolve decodes the object behind n into v, following the reference when n
// is a bare uuid.
func (r registry) resolve(path string, n node, v any) error {
	raw := n.Raw
	if !n.inline() {
		var ok bool
		raw, ok = r[n.ID]
		if !ok {
			return malformed(path, fmt.Sprintf("unresolved reference %q", n.ID))
		}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return malformed(path, err.Error())
	}
	return nil
}

func attrString(attrs map[string]any, key string) *string {
	v, ok := attrs[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	return &s
}
