package store

import (
	"fmt"
	"strings"
)

// CollectionRef addresses a collection: an odd number of path segments.
type CollectionRef struct {
	path string
	err  error
}

// DocRef addresses a document: an even number of path segments.
type DocRef struct {
	parent CollectionRef
	id     string
	err    error
}

// checkSegment rejects ids that are empty or would add path segments.
func checkSegment(id string) error {
	if id == "" {
		return fmt.Errorf("invalid path segment: empty id")
	}
	if strings.Contains(id, "/") {
		return fmt.Errorf("invalid path segment %q: contains '/'", id)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Collection returns a root-level collection reference.
func Collection(id string) CollectionRef {
	return CollectionRef{path: id, err: checkSegment(id)}
}

// Doc returns the document id inside c.
func (c CollectionRef) Doc(id string) DocRef {
	return DocRef{parent: c, id: id, err: firstErr(c.err, checkSegment(id))}
}

func (c CollectionRef) Path() string   { return c.path }
func (c CollectionRef) String() string { return c.path }

// Collection returns the sub-collection id under d.
func (d DocRef) Collection(id string) CollectionRef {
	return CollectionRef{path: d.Path() + "/" + id, err: firstErr(d.err, checkSegment(id))}
}

func (d DocRef) ID() string            { return d.id }
func (d DocRef) Parent() CollectionRef { return d.parent }
func (d DocRef) Path() string          { return d.parent.path + "/" + d.id }
func (d DocRef) String() string        { return d.Path() }

// validate reports the first bad id the reference was built from.
func (c CollectionRef) validate() error {
	if c.err != nil {
		return fmt.Errorf("invalid collection path %q: %w", c.path, c.err)
	}
	return nil
}

func (d DocRef) validate() error {
	if d.err != nil {
		return fmt.Errorf("invalid document path %q: %w", d.Path(), d.err)
	}
	return nil
}
