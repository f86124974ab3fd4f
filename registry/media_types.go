package registry

// Media types for mod artifacts.
const (
	// ArtifactType identifies mod artifacts.
	ArtifactType = "application/vnd.aldnoah.mod.v1"

	// MediaTypeMod is the layer holding the encoded mod file.
	MediaTypeMod = "application/vnd.aldnoah.mod.file.v1"
)

// Manifest annotation keys.
const (
	AnnotationName    = "io.aldnoah.mod.name"
	AnnotationAuthor  = "io.aldnoah.mod.author"
	AnnotationVersion = "io.aldnoah.mod.version"
	AnnotationKind    = "io.aldnoah.mod.kind"
	AnnotationEntries = "io.aldnoah.mod.entries"
	AnnotationMarkers = "io.aldnoah.mod.markers"
)
