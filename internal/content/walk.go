package content

import (
	"io/fs"
)

// WalkResult is the outcome of reading one document during a walk.
type WalkResult struct {
	// RelativePath is content-relative, slash separated.
	RelativePath string
	Document     *Document

	// Error is set when the document could not be read or parsed. A
	// *model.ParseError here means the file is not valid YAML.
	Error error
}

// WalkDocuments reads every document and calls handler for each, in
// directory order. Per-document errors are reported through WalkResult
// rather than aborting the walk; an error returned by handler stops it.
func (s *Store) WalkDocuments(handler func(result WalkResult) error) error {
	return s.walk(func(rel string, _ fs.DirEntry) error {
		doc, err := s.ReadDocument(rel)
		if err != nil {
			return handler(WalkResult{RelativePath: rel, Error: err})
		}
		return handler(WalkResult{RelativePath: rel, Document: doc})
	})
}
