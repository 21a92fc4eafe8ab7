package domain

// ServerTimestamp is a field value that stores replace with their own clock's
// time when the write is applied.
const ServerTimestamp = "\x00serverTimestamp"

// DocKey addresses one document in a collection.
type DocKey struct {
	Collection string
	ID         string
}

func (k DocKey) String() string {
	return k.Collection + "/" + k.ID
}

// Document is a flattened document: dotted field paths mapped to string values.
// Nested objects are expressed as "player1.score" style paths.
type Document map[string]string

// Clone returns an independent copy.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Patch is a field-path merge. Fields listed in Clear are removed; Set wins
// when a path appears in both.
type Patch struct {
	Set   map[string]string
	Clear []string
}

func NewPatch() *Patch {
	return &Patch{Set: make(map[string]string)}
}

// Put sets a field path.
func (p *Patch) Put(field, value string) *Patch {
	p.Set[field] = value
	return p
}

// Remove clears field paths.
func (p *Patch) Remove(fields ...string) *Patch {
	p.Clear = append(p.Clear, fields...)
	return p
}

// Apply merges the patch into doc in place.
func (p *Patch) Apply(doc Document) {
	for _, f := range p.Clear {
		if _, ok := p.Set[f]; !ok {
			delete(doc, f)
		}
	}
	for k, v := range p.Set {
		doc[k] = v
	}
}

// Snapshot is one delivery of a subscription. Doc is nil when the document does
// not exist; Err is set when the listener failed.
type Snapshot struct {
	Doc Document
	Err error
}
