package sparql

import (
	"bytes"
	"net/http"

	"github.com/Financial-Times/sparql-client/changeset"
	"github.com/pkg/errors"
)

// ChangesetContentType is the media type Graph Stores expect PATCH bodies in.
const ChangesetContentType = "application/vnd.talis.changeset+xml"

// PatchableGraphStore is a GraphStore that also supports the optional PATCH
// method, applying changesets to a graph.
type PatchableGraphStore struct {
	*GraphStore
}

func NewPatchableGraphStore(gs *GraphStore) *PatchableGraphStore {
	return &PatchableGraphStore{GraphStore: gs}
}

// Patch sends cs as UTF-8 RDF/XML to the graph named graphURI. A nil error
// means the store accepted the changeset.
func (gs *PatchableGraphStore) Patch(graphURI string, cs *changeset.Changeset) error {
	var buf bytes.Buffer
	if err := cs.WriteRDFXML(&buf); err != nil {
		return errors.Wrap(err, "serializing changeset")
	}
	header := http.Header{}
	header.Set("Content-Type", ChangesetContentType)

	reqURL := gs.ResourceURL(graphURI)
	resp, err := gs.makeRequest("patch", "PATCH", reqURL, &buf, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return gs.expect("patch", "PATCH", resp, reqURL, http.StatusOK, http.StatusCreated, http.StatusNoContent)
}
