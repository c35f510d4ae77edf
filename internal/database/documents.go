package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"
	"time"

	"github.com/google/uuid"
)

func newDocumentID() string { return uuid.New().String() }

// Document is one record from a backend collection. The system fields are
// decoded eagerly; the attribute payload stays raw so callers can parse it
// into their own typed shapes at the boundary.
type Document struct {
	ID        string
	CreatedAt time.Time
	Raw       json.RawMessage
}

// UnmarshalJSON captures both the backend's system fields and the raw
// document body.
func (d *Document) UnmarshalJSON(data []byte) error {
	var sys struct {
		ID        string    `json:"$id"`
		CreatedAt time.Time `json:"$createdAt"`
	}
	if err := json.Unmarshal(data, &sys); err != nil {
		return err
	}
	d.ID = sys.ID
	d.CreatedAt = sys.CreatedAt
	d.Raw = append(d.Raw[:0], data...)
	return nil
}

// Decode parses the document's attributes into target. Unknown attributes
// (including the backend's $-prefixed system fields) are ignored; type
// mismatches fail.
func (d *Document) Decode(target any) error {
	if err := json.Unmarshal(d.Raw, target); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Query is one encoded collection filter.
type Query string

// QueryEqual filters documents whose attribute equals value.
func QueryEqual(attribute string, value any) Query {
	encoded, _ := json.Marshal([]any{value})
	return Query(fmt.Sprintf(`equal("%s", %s)`, attribute, encoded))
}

// QueryIsNotNull filters documents whose attribute is set.
func QueryIsNotNull(attribute string) Query {
	return Query(fmt.Sprintf(`isNotNull("%s")`, attribute))
}

// CreateDocument appends a new document to a collection. Pass an empty
// documentID to let the client mint one.
func (c *Client) CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, attributes any) (*Document, error) {
	if databaseID == "" || collectionID == "" {
		return nil, fmt.Errorf("%w: database and collection IDs are required", ErrInvalidInput)
	}
	if documentID == "" {
		documentID = newDocumentID()
	}

	body := map[string]any{
		"documentId": documentID,
		"data":       attributes,
	}
	path := fmt.Sprintf("/v1/databases/%s/collections/%s/documents", databaseID, collectionID)
	data, err := c.request(ctx, http.MethodPost, path, body, nil, "")
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: unmarshal document: %v", ErrBackend, err)
	}
	return &doc, nil
}

// ListDocuments returns all documents in a collection matching the given
// filters. The backend provides no ordering guarantee.
func (c *Client) ListDocuments(ctx context.Context, databaseID, collectionID string, queries ...Query) ([]Document, error) {
	if databaseID == "" || collectionID == "" {
		return nil, fmt.Errorf("%w: database and collection IDs are required", ErrInvalidInput)
	}

	params := neturl.Values{}
	for _, q := range queries {
		params.Add("queries[]", string(q))
	}

	path := fmt.Sprintf("/v1/databases/%s/collections/%s/documents", databaseID, collectionID)
	data, err := c.request(ctx, http.MethodGet, path, nil, params, "")
	if err != nil {
		return nil, err
	}

	var list struct {
		Total     int        `json:"total"`
		Documents []Document `json:"documents"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: unmarshal document list: %v", ErrBackend, err)
	}
	return list.Documents, nil
}
