package jsonapi

// NewSingleResourceDocument creates a document with a single resource.
func NewSingleResourceDocument(r Resource) Document {
	return Document{Data: r}
}

// NewCollectionDocument creates a document with a collection. A non-nil
// pagination adds links and meta.
func NewCollectionDocument(resources []Resource, pagination *Pagination) Document {
	if resources == nil {
		resources = []Resource{}
	}
	doc := Document{Data: resources}
	if pagination != nil {
		doc.Links = pagination.Links()
		doc.Meta = pagination.Meta()
	}
	return doc
}

// NewErrorDocument creates an error document.
func NewErrorDocument(errors ...Error) Document {
	return Document{Errors: errors}
}
