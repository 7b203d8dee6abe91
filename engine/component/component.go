package component

// Component is implemented by every record kept in the Store.
type Component interface {
	// Handle returns the stable handle naming this record.
	Handle() Handle
	// Type returns the record's component type tag.
	Type() Type
	// Name returns the debug name of the record.
	Name() string
	// SetName sets the debug name of the record.
	SetName(name string)
	// Destroyed reports whether the record is marked for removal at the next sweep.
	Destroyed() bool

	header() *Base
}

// Base is embedded by every record and carries its identity.
type Base struct {
	handle    Handle
	typ       Type
	name      string
	destroyed bool
}

func (b *Base) Handle() Handle      { return b.handle }
func (b *Base) Type() Type          { return b.typ }
func (b *Base) Name() string        { return b.name }
func (b *Base) SetName(name string) { b.name = name }
func (b *Base) Destroyed() bool     { return b.destroyed }
func (b *Base) header() *Base       { return b }

// defaulter is implemented by records whose zero value is not a usable initial state.
type defaulter interface {
	setDefaults()
}

// nodeRecord is implemented by every record that embeds a Transform.
type nodeRecord interface {
	node() *Transform
}
