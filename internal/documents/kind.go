package documents

import "fmt"

// Kind is the closed set of documents the pipeline issues.
type Kind uint8

const (
	KindCollectionManifest Kind = iota + 1
	KindHazardousWasteNote
	KindDataDestructionCertificate
)

type kindInfo struct {
	slug  string
	label string
	title string
	// mutable kinds keep one current document per job that is replaced on
	// regeneration; immutable kinds get a new record every time.
	mutable bool
	// public kinds carry an unguessable external id for unauthenticated access.
	public bool
}

var kindTable = map[Kind]kindInfo{
	KindCollectionManifest: {
		slug: "collection-manifest", label: "CollectionManifest", title: "Collection Manifest",
		mutable: true,
	},
	KindHazardousWasteNote: {
		slug: "hazardous-waste-note", label: "HazardousWasteNote", title: "Hazardous Waste Consignment Note",
		mutable: true,
	},
	KindDataDestructionCertificate: {
		slug: "data-destruction-certificate", label: "DataDestructionCertificate", title: "Certificate of Data Destruction",
		public: true,
	},
}

// Kinds lists every document kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindCollectionManifest, KindHazardousWasteNote, KindDataDestructionCertificate}
}

// ParseKind maps a slug such as "collection-manifest" to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, info := range kindTable {
		if info.slug == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown document kind %q", ErrInvalidInput, s)
}

func (k Kind) info() kindInfo {
	return kindTable[k]
}

// Valid reports whether k is a declared kind.
func (k Kind) Valid() bool {
	_, ok := kindTable[k]
	return ok
}

// String returns the kind's slug.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return k.info().slug
}

// Label is the CamelCase name used in stored filenames.
func (k Kind) Label() string { return k.info().label }

// Title is the heading printed on the document.
func (k Kind) Title() string { return k.info().title }

// Mutable reports whether regeneration replaces the current document.
func (k Kind) Mutable() bool { return k.info().mutable }

// Public reports whether the kind is reachable by external id without auth.
func (k Kind) Public() bool { return k.info().public }

// MarshalText encodes the kind as its slug.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid document kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a slug.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
